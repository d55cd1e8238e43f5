package scard

import (
	"context"
	"errors"
	"time"

	pcsc "github.com/ebfe/scard"
	"github.com/malivvan/pcscctl/runner"
)

// Watch reports card insertion and removal on the session reader until ctx
// is done or fn fails. The initial state is reported once on start. fn is
// always called from the calling goroutine, one call at a time.
func (s *Session) Watch(ctx context.Context, fn runner.PresenceFunc) error {
	stop := context.AfterFunc(ctx, func() { _ = s.cancel() })
	defer stop()

	states := []pcsc.ReaderState{{Reader: s.reader, CurrentState: pcsc.StateUnaware}}
	known, present := false, false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.statusChange(states, s.pollTimeout()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, pcsc.ErrTimeout) {
				continue
			}
			return opErr("monitor", err)
		}
		event := states[0].EventState
		states[0].CurrentState = event &^ pcsc.StateChanged

		now := event&pcsc.StatePresent != 0
		if known && now == present {
			continue
		}
		known, present = true, now
		if !now {
			s.disconnect()
		}
		s.log.Debug("presence", "present", now, "state", uint32(event))
		if err := fn(ctx, now); err != nil {
			return err
		}
	}
}

// pollTimeout bounds a single status wait by the configured timeout.
func (s *Session) pollTimeout() time.Duration {
	if s.opts.Timeout > 0 {
		return s.opts.Timeout
	}
	return -1
}
