package scard

import (
	"context"
	"errors"
	"fmt"

	"github.com/malivvan/pcscctl/config"
	"github.com/malivvan/pcscctl/runner"
)

const (
	// BlockSize is the size of a MIFARE Classic block.
	BlockSize = 16
	// KeySize is the size of a MIFARE Classic sector key.
	KeySize = 6

	keyTypeA = 0x60
)

var (
	ErrKeySize      = errors.New("mifare keys must be 6 bytes")
	ErrBlockRange   = errors.New("block out of range")
	ErrTrailerBlock = errors.New("refusing plain write to a sector trailer, use a trailer command")
)

var (
	_ runner.Transport = (*Session)(nil)
	_ runner.Watcher   = (*Session)(nil)
)

// blockNumber maps sector/block to the absolute block of a 1K/4K card.
// Sectors 0-31 hold 4 blocks, sectors 32-39 hold 16. Sector 0 takes any
// block so page addressed tags stay reachable.
func blockNumber(sec, blk uint8) (int, error) {
	var n int
	if sec < 32 {
		if blk > 3 && sec > 0 {
			return 0, fmt.Errorf("%w: sector %d block %d", ErrBlockRange, sec, blk)
		}
		n = int(sec)*4 + int(blk)
	} else {
		if blk > 15 {
			return 0, fmt.Errorf("%w: sector %d block %d", ErrBlockRange, sec, blk)
		}
		n = 128 + int(sec-32)*16 + int(blk)
	}
	if n > 255 {
		return 0, fmt.Errorf("%w: sector %d block %d", ErrBlockRange, sec, blk)
	}
	return n, nil
}

func sectorOf(block int) int {
	if block < 128 {
		return block / 4
	}
	return 32 + (block-128)/16
}

func isTrailer(block int) bool {
	if block < 128 {
		return block%4 == 3
	}
	return (block-128)%16 == 15
}

// loadKey stores key in the reader's volatile key slot key.Index.
func (s *Session) loadKey(key *config.Key) error {
	if key.Len() != KeySize {
		return &Error{Op: "load key", Err: fmt.Errorf("%w: %s has %d", ErrKeySize, key.UID, key.Len())}
	}
	_, err := s.transmit("load key", APDU{Cla: 0xFF, Ins: 0x82, P1: 0x00, P2: uint8(key.Index), Data: key.Value})
	return err
}

// authenticate runs the key A authentication for block with key.
func (s *Session) authenticate(block int, key *config.Key) error {
	if err := s.loadKey(key); err != nil {
		return err
	}
	_, err := s.transmit("authenticate", APDU{Cla: 0xFF, Ins: 0x86, Data: []byte{0x01, 0x00, uint8(block), keyTypeA, uint8(key.Index)}})
	return err
}

func (s *Session) readBinary(block int) ([]byte, error) {
	return s.transmit("read", APDU{Cla: 0xFF, Ins: 0xB0, P2: uint8(block), Len: BlockSize})
}

func (s *Session) updateBinary(block int, data []byte) error {
	_, err := s.transmit("write", APDU{Cla: 0xFF, Ins: 0xD6, P2: uint8(block), Data: data})
	return err
}

// ReadBlock fills buf with len(buf)-2 data bytes starting at sec/blk,
// followed by the 0x90 0x00 status word. Reads spanning several blocks
// re-authenticate whenever a sector boundary is crossed.
func (s *Session) ReadBlock(ctx context.Context, cmd string, sec, blk uint8, buf []byte, key *config.Key) (int, error) {
	start, err := blockNumber(sec, blk)
	if err != nil {
		return 0, &Error{Op: "read", Err: err}
	}
	want := len(buf) - config.StatusLen
	if want < 0 {
		return 0, &Error{Op: "read", Err: ErrRespTooShort}
	}
	n := 0
	for block := start; n < want; block++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if block > 255 {
			return n, &Error{Op: "read", Err: fmt.Errorf("%w: %d", ErrBlockRange, block)}
		}
		if key != nil && (block == start || sectorOf(block) != sectorOf(block-1)) {
			if err := s.authenticate(block, key); err != nil {
				return n, err
			}
		}
		data, err := s.readBinary(block)
		if err != nil {
			return n, err
		}
		n += copy(buf[n:want], data)
	}
	buf[n], buf[n+1] = 0x90, 0x00
	s.log.Debug("read", "cmd", cmd, "block", start, "len", n)
	return n + config.StatusLen, nil
}

// WriteBlock writes data from sec/blk on, padding the last block with
// zeros. A failure part way through leaves the blocks already written.
func (s *Session) WriteBlock(ctx context.Context, cmd string, sec, blk uint8, data []byte, key *config.Key) error {
	start, err := blockNumber(sec, blk)
	if err != nil {
		return &Error{Op: "write", Err: err}
	}
	for off, block := 0, start; off < len(data); off, block = off+BlockSize, block+1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if block > 255 {
			return &Error{Op: "write", Err: fmt.Errorf("%w: %d", ErrBlockRange, block)}
		}
		if isTrailer(block) {
			return &Error{Op: "write", Err: fmt.Errorf("%w: block %d", ErrTrailerBlock, block)}
		}
		if key != nil && (block == start || sectorOf(block) != sectorOf(block-1)) {
			if err := s.authenticate(block, key); err != nil {
				return err
			}
		}
		chunk := make([]byte, BlockSize)
		copy(chunk, data[off:])
		if err := s.updateBinary(block, chunk); err != nil {
			return err
		}
	}
	s.log.Debug("write", "cmd", cmd, "block", start, "len", len(data))
	return nil
}

// WriteTrailer writes key A, the access bytes and key B into the trailer
// block addressed by sec/blk, authenticating with key first when given.
func (s *Session) WriteTrailer(ctx context.Context, cmd string, sec, blk uint8, key *config.Key, trailer *config.Trailer) error {
	block, err := blockNumber(sec, blk)
	if err != nil {
		return &Error{Op: "trailer", Err: err}
	}
	if !isTrailer(block) {
		return &Error{Op: "trailer", Err: fmt.Errorf("%w: block %d is not a sector trailer", ErrBlockRange, block)}
	}
	for _, k := range []*config.Key{trailer.KeyA, trailer.KeyB} {
		if k.Len() != KeySize {
			return &Error{Op: "trailer", Err: fmt.Errorf("%w: %s has %d", ErrKeySize, k.UID, k.Len())}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if key != nil {
		if err := s.authenticate(block, key); err != nil {
			return err
		}
	}
	data := make([]byte, 0, BlockSize)
	data = append(data, trailer.KeyA.Value...)
	data = append(data, trailer.Access[:]...)
	data = append(data, trailer.KeyB.Value...)
	if err := s.updateBinary(block, data); err != nil {
		return err
	}
	s.log.Debug("trailer", "cmd", cmd, "block", block, "keyA", trailer.KeyA.Fingerprint(), "keyB", trailer.KeyB.Fingerprint())
	return nil
}

// ReadUID copies the card UID into buf followed by the status word.
func (s *Session) ReadUID(ctx context.Context, cmd string, buf []byte) (int, error) {
	if len(buf) < config.StatusLen {
		return 0, &Error{Op: "uuid", Err: ErrRespTooShort}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	uid, err := s.CardUID()
	if err != nil {
		return 0, err
	}
	n := copy(buf[:len(buf)-config.StatusLen], uid)
	buf[n], buf[n+1] = 0x90, 0x00
	s.log.Debug("uuid", "cmd", cmd, "uid", fmt.Sprintf("%X", uid))
	return n + config.StatusLen, nil
}

// CardUID returns the UID of the card in the reader.
func (s *Session) CardUID() ([]byte, error) {
	return s.transmit("uuid", APDU{Cla: 0xFF, Ins: 0xCA})
}
