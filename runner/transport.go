// Package runner executes configured card commands against a transport.
//
// Execute dispatches a single command, RunGroup runs every command of a
// group in configuration order and Monitor re-runs a group each time a card
// is presented to the reader.
package runner

import (
	"context"

	"github.com/malivvan/pcscctl/config"
)

// Transport performs the actual card I/O. Every method blocks until the card
// answered or the operation failed; cmd names the command for diagnostics.
type Transport interface {
	ReadBlock(ctx context.Context, cmd string, sec, blk uint8, buf []byte, key *config.Key) (int, error)
	WriteBlock(ctx context.Context, cmd string, sec, blk uint8, data []byte, key *config.Key) error
	WriteTrailer(ctx context.Context, cmd string, sec, blk uint8, key *config.Key, trailer *config.Trailer) error
	ReadUID(ctx context.Context, cmd string, buf []byte) (int, error)
}

// PresenceFunc is invoked with the new card presence state.
type PresenceFunc func(ctx context.Context, present bool) error

// Watcher reports card presence changes. Implementations call fn from a
// single goroutine and never before the previous call returned. Watch stops
// when ctx is done or fn returns an error.
type Watcher interface {
	Watch(ctx context.Context, fn PresenceFunc) error
}
