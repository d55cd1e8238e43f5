package runner

import (
	"context"
	"fmt"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/malivvan/pcscctl/config"
	"github.com/malivvan/pcscctl/internal/logging"
)

// Options controls a group pass.
type Options struct {
	Group   int
	Forced  bool // continue after a failed command
	Verbose bool // log skipped commands
	Logger  *clog.Logger
}

type Status int

const (
	StatusSuccess Status = iota
	StatusPartial        // failures were forgiven by Forced
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartial:
		return "partial"
	default:
		return "aborted"
	}
}

// Failure records a selected command that did not complete.
type Failure struct {
	Command *config.Command
	Err     error
}

// Result summarizes one pass over the command table.
type Result struct {
	ID        string
	Group     int
	Selected  int
	Skipped   int
	Succeeded int
	Failures  []Failure
	Status    Status
}

// Selects reports whether a command tagged tag belongs to group. A negative
// tag is a ceiling: it is selected by every group up to its magnitude. A
// positive tag needs an exact match.
func Selects(group, tag int) bool {
	return group <= -tag || group == tag
}

// RunGroup executes the commands of table selected by opts.Group in
// configuration order. Without opts.Forced the pass stops at the first
// failure and returns it. ctx is checked before every command; an operation
// already handed to the transport is not interrupted.
func RunGroup(ctx context.Context, t Transport, table *config.Table, opts Options) (*Result, error) {
	log := logging.Or(opts.Logger)
	res := &Result{ID: uuid.NewString(), Group: opts.Group}
	log = log.With("pass", res.ID[:8])

	for _, cmd := range table.Commands() {
		if err := ctx.Err(); err != nil {
			res.Status = StatusAborted
			return res, err
		}
		if !Selects(opts.Group, cmd.Group) {
			res.Skipped++
			if opts.Verbose {
				log.Info("ignoring", "cmd", cmd.UID, "group", cmd.Group)
			}
			continue
		}

		res.Selected++
		if _, err := execute(ctx, t, cmd, nil, log); err != nil {
			res.Failures = append(res.Failures, Failure{Command: cmd, Err: err})
			log.Error("fail executing command", "cmd", cmd.UID, "err", err)
			if !opts.Forced {
				res.Status = StatusAborted
				return res, fmt.Errorf("cmd=%s: %w", cmd.UID, err)
			}
			continue
		}
		res.Succeeded++
	}

	if len(res.Failures) > 0 {
		res.Status = StatusPartial
		log.Warn("cmds done with failures", "group", opts.Group, "failed", len(res.Failures), "selected", res.Selected)
		return res, nil
	}
	log.Info("cmds done", "group", opts.Group, "selected", res.Selected)
	return res, nil
}
