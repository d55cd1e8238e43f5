package runner

import (
	"context"

	"github.com/malivvan/pcscctl/config"
	"github.com/stretchr/testify/mock"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) ReadBlock(ctx context.Context, cmd string, sec, blk uint8, buf []byte, key *config.Key) (int, error) {
	args := m.Called(ctx, cmd, sec, blk, buf, key)
	return args.Int(0), args.Error(1)
}

func (m *mockTransport) WriteBlock(ctx context.Context, cmd string, sec, blk uint8, data []byte, key *config.Key) error {
	args := m.Called(ctx, cmd, sec, blk, data, key)
	return args.Error(0)
}

func (m *mockTransport) WriteTrailer(ctx context.Context, cmd string, sec, blk uint8, key *config.Key, trailer *config.Trailer) error {
	args := m.Called(ctx, cmd, sec, blk, key, trailer)
	return args.Error(0)
}

func (m *mockTransport) ReadUID(ctx context.Context, cmd string, buf []byte) (int, error) {
	args := m.Called(ctx, cmd, buf)
	return args.Int(0), args.Error(1)
}

type fakeWatcher struct {
	events []bool
	errs   []error
}

func (w *fakeWatcher) Watch(ctx context.Context, fn PresenceFunc) error {
	for _, present := range w.events {
		if err := fn(ctx, present); err != nil {
			w.errs = append(w.errs, err)
			return err
		}
	}
	return nil
}
