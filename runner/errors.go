package runner

import (
	"errors"
	"fmt"
)

var ErrMissingWriteData = errors.New("write data mandatory")

// DeviceError wraps a failure reported by the transport.
type DeviceError struct {
	Op      string
	Command string
	Code    uint32 // transport status, zero when unknown
	Err     error
}

func (e *DeviceError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("device: cmd=%s op=%s code=0x%X: %s", e.Command, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("device: cmd=%s op=%s: %s", e.Command, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// statusCoder is implemented by transport errors carrying a numeric status.
type statusCoder interface {
	StatusCode() uint32
}

func deviceErr(op, cmd string, err error) error {
	var de *DeviceError
	if errors.As(err, &de) {
		return err
	}
	de = &DeviceError{Op: op, Command: cmd, Err: err}
	var sc statusCoder
	if errors.As(err, &sc) {
		de.Code = sc.StatusCode()
	}
	return de
}
