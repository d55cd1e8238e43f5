package scard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	clog "github.com/charmbracelet/log"
	pcsc "github.com/ebfe/scard"
	"github.com/malivvan/pcscctl/internal/logging"
)

var (
	ErrReaderNotFound = errors.New("reader not found")
	ErrNoCard         = errors.New("no card present")
)

// Options tune a Session.
type Options struct {
	MaxDev  int           // readers considered when resolving the reader name
	Timeout time.Duration // bound for blocking reader waits, zero waits forever
	Logger  *clog.Logger
}

// conn is the part of *pcsc.Card used by a Session.
type conn interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect(d pcsc.Disposition) error
}

// Session drives one reader. It is not safe for concurrent use; the client
// only calls it from the goroutine running a group pass.
type Session struct {
	reader string
	opts   Options
	log    *clog.Logger

	connect      func(reader string) (conn, ATR, error)
	statusChange func(states []pcsc.ReaderState, timeout time.Duration) error
	cancel       func() error
	release      func() error

	card conn
	atr  ATR
}

// ListReaders returns at most limit reader names known to the PC/SC daemon.
func ListReaders(limit int) ([]string, error) {
	ctx, err := pcsc.EstablishContext()
	if err != nil {
		return nil, opErr("establish context", err)
	}
	defer ctx.Release()
	return listReaders(ctx, limit)
}

func listReaders(ctx *pcsc.Context, limit int) ([]string, error) {
	readers, err := ctx.ListReaders()
	if err != nil {
		if errors.Is(err, pcsc.ErrNoReadersAvailable) {
			return nil, nil
		}
		return nil, opErr("list readers", err)
	}
	if limit > 0 && len(readers) > limit {
		readers = readers[:limit]
	}
	return readers, nil
}

// Open establishes a PC/SC context and checks that reader is attached.
func Open(reader string, opts Options) (*Session, error) {
	ctx, err := pcsc.EstablishContext()
	if err != nil {
		return nil, opErr("establish context", err)
	}
	readers, err := listReaders(ctx, opts.MaxDev)
	if err != nil {
		ctx.Release()
		return nil, err
	}
	if !slices.Contains(readers, reader) {
		ctx.Release()
		return nil, &Error{Op: "open", Err: fmt.Errorf("%w: %q (available: %q)", ErrReaderNotFound, reader, readers)}
	}

	s := newSession(reader, opts)
	s.connect = func(reader string) (conn, ATR, error) {
		card, err := ctx.Connect(reader, pcsc.ShareShared, pcsc.ProtocolAny)
		if err != nil {
			return nil, nil, err
		}
		var atr ATR
		if status, err := card.Status(); err == nil {
			atr = status.Atr
		}
		return card, atr, nil
	}
	s.statusChange = ctx.GetStatusChange
	s.cancel = ctx.Cancel
	s.release = ctx.Release
	return s, nil
}

func newSession(reader string, opts Options) *Session {
	return &Session{
		reader: reader,
		opts:   opts,
		log:    logging.Or(opts.Logger).With("reader", reader),
	}
}

// Reader returns the reader name.
func (s *Session) Reader() string {
	return s.reader
}

// ATR returns the answer to reset of the connected card.
func (s *Session) ATR() ATR {
	return s.atr
}

// Close disconnects the card and releases the PC/SC context.
func (s *Session) Close() error {
	s.disconnect()
	if s.release == nil {
		return nil
	}
	return s.release()
}

// WaitCard blocks until a card is present, wait elapsed or ctx is done.
func (s *Session) WaitCard(ctx context.Context, wait time.Duration) error {
	stop := context.AfterFunc(ctx, func() { _ = s.cancel() })
	defer stop()

	states := []pcsc.ReaderState{{Reader: s.reader, CurrentState: pcsc.StateUnaware}}
	deadline := time.Now().Add(wait)
	for {
		timeout := time.Until(deadline)
		if wait <= 0 {
			timeout = -1
		} else if timeout <= 0 {
			return &Error{Op: "wait card", Err: ErrNoCard}
		}
		if err := s.statusChange(states, timeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, pcsc.ErrTimeout) {
				return &Error{Op: "wait card", Code: uint32(pcsc.ErrTimeout), Err: ErrNoCard}
			}
			return opErr("wait card", err)
		}
		if states[0].EventState&pcsc.StatePresent != 0 {
			return nil
		}
		states[0].CurrentState = states[0].EventState &^ pcsc.StateChanged
	}
}

// conn returns the card connection, connecting on first use.
func (s *Session) conn() (conn, error) {
	if s.card != nil {
		return s.card, nil
	}
	card, atr, err := s.connect(s.reader)
	if err != nil {
		return nil, opErr("connect", err)
	}
	s.card, s.atr = card, atr
	s.log.Debug("card connected", "atr", atr)
	return card, nil
}

func (s *Session) disconnect() {
	if s.card == nil {
		return
	}
	if err := s.card.Disconnect(pcsc.LeaveCard); err != nil {
		s.log.Debug("disconnect", "err", err)
	}
	s.card, s.atr = nil, nil
}

// transmit sends apdu and returns the response without status word. A
// removed card drops the connection so the next call reconnects.
func (s *Session) transmit(op string, apdu APDU) ([]byte, error) {
	card, err := s.conn()
	if err != nil {
		return nil, err
	}
	s.log.Debug("apdu", "op", op, "ins", fmt.Sprintf("%02X", apdu.Ins), "p2", apdu.P2, "lc", len(apdu.Data))
	resp, err := card.Transmit(apdu.Bytes())
	if err != nil {
		if errors.Is(err, pcsc.ErrRemovedCard) || errors.Is(err, pcsc.ErrResetCard) {
			s.disconnect()
		}
		return nil, opErr(op, err)
	}
	return checkStatus(op, resp)
}
