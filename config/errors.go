package config

import (
	"errors"
	"fmt"
)

var (
	ErrConfigParse      = errors.New("malformed configuration")
	ErrMissingCommands  = errors.New("'cmds' is mandatory when 'keys' is present")
	ErrUnknownKey       = errors.New("unknown key")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrBadTrailerLength = errors.New("trailer acls must be exactly 4 bytes")
)

// ParseError reports where in the document parsing stopped. Every ParseError
// matches ErrConfigParse with errors.Is, the cause is available via Unwrap.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %s", e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrConfigParse
}

func parseErr(path string, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{Path: path, Err: err}
}

func parseErrf(path, format string, args ...any) error {
	return &ParseError{Path: path, Err: fmt.Errorf("%w: "+format, append([]any{ErrConfigParse}, args...)...)}
}
