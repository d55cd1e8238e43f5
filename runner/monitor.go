package runner

import (
	"context"

	"github.com/malivvan/pcscctl/config"
	"github.com/malivvan/pcscctl/internal/logging"
)

// Monitor runs a group pass every time a card is presented. Its fields are
// set before Watch starts and never change afterwards.
type Monitor struct {
	Reader    string
	Transport Transport
	Table     *config.Table
	Options   Options
}

// Handle is the PresenceFunc given to a Watcher. An aborted pass is returned
// and ends monitoring.
func (m *Monitor) Handle(ctx context.Context, present bool) error {
	log := logging.Or(m.Options.Logger)
	if !present {
		log.Info("card removed, waiting for new card", "reader", m.Reader)
		return nil
	}
	log.Info("card inserted", "reader", m.Reader)
	if _, err := RunGroup(ctx, m.Transport, m.Table, m.Options); err != nil {
		log.Error("closing monitoring", "reader", m.Reader, "err", err)
		return err
	}
	if !m.Options.Verbose {
		log.Infof("exec group=%d done (--verbose for detail)", m.Options.Group)
	}
	log.Info("insert new card")
	return nil
}

// Watch runs m.Handle for every presence change reported by w.
func (m *Monitor) Watch(ctx context.Context, w Watcher) error {
	return w.Watch(ctx, m.Handle)
}
