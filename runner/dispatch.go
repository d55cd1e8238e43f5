package runner

import (
	"context"
	"fmt"

	clog "github.com/charmbracelet/log"
	"github.com/malivvan/pcscctl/config"
	"github.com/malivvan/pcscctl/internal/logging"
)

// Execute runs cmd once. Read and uuid commands return the bytes received
// from the card, status suffix included. For writes, override replaces the
// configured data when non-nil. Transport failures are returned as
// *DeviceError and never retried.
func Execute(ctx context.Context, t Transport, cmd *config.Command, override []byte) ([]byte, error) {
	return execute(ctx, t, cmd, override, logging.L)
}

func execute(ctx context.Context, t Transport, cmd *config.Command, override []byte, log *clog.Logger) ([]byte, error) {
	log.Debug("exec", "cmd", cmd.UID, "action", cmd.Action, "sec", cmd.Sector, "blk", cmd.Block, "key", keyName(cmd.Key))

	switch cmd.Action {
	case config.ActionRead:
		buf := make([]byte, cmd.WorkingLen())
		n, err := t.ReadBlock(ctx, cmd.UID, cmd.Sector, cmd.Block, buf, cmd.Key)
		if err != nil {
			return nil, deviceErr("read", cmd.UID, err)
		}
		return buf[:n], nil

	case config.ActionWrite:
		data := cmd.Data
		if override != nil {
			data = mergeWrite(cmd.Length, override)
		}
		if data == nil {
			return nil, fmt.Errorf("%w: uid=%s", ErrMissingWriteData, cmd.UID)
		}
		if err := t.WriteBlock(ctx, cmd.UID, cmd.Sector, cmd.Block, data, cmd.Key); err != nil {
			return nil, deviceErr("write", cmd.UID, err)
		}
		return nil, nil

	case config.ActionTrailer:
		if err := t.WriteTrailer(ctx, cmd.UID, cmd.Sector, cmd.Block, cmd.Key, cmd.Trailer); err != nil {
			return nil, deviceErr("trailer", cmd.UID, err)
		}
		return nil, nil

	case config.ActionUUID:
		buf := make([]byte, cmd.WorkingLen())
		n, err := t.ReadUID(ctx, cmd.UID, buf)
		if err != nil {
			return nil, deviceErr("uuid", cmd.UID, err)
		}
		return buf[:n], nil
	}
	return nil, fmt.Errorf("uid=%s: unsupported action %s", cmd.UID, cmd.Action)
}

// mergeWrite copies override into a buffer of the declared length, or of the
// override length when none was declared. Copying stops at the first zero
// byte and everything from there on is written as zero, so a NUL terminated
// string never leaks its tail onto the card.
func mergeWrite(length int, override []byte) []byte {
	if length == 0 {
		length = len(override)
	}
	buf := make([]byte, length)
	for i := 0; i < length && i < len(override); i++ {
		if override[i] == 0 {
			break
		}
		buf[i] = override[i]
	}
	return buf
}

func keyName(k *config.Key) string {
	if k == nil {
		return "-"
	}
	return k.String()
}
