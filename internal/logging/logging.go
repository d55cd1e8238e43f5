package logging

import (
	"fmt"
	"os"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger shared by the client packages.
var L = clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "pcsc"})

// SetVerbosity maps a verbosity count onto a log level: 0 logs info and
// above, anything higher enables debug output.
func SetVerbosity(n int) {
	if n > 0 {
		L.SetLevel(clog.DebugLevel)
		return
	}
	L.SetLevel(clog.InfoLevel)
}

// Or returns l, or the package logger when l is nil.
func Or(l *clog.Logger) *clog.Logger {
	if l != nil {
		return l
	}
	return L
}

func Debugf(format string, v ...any) {
	L.Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	L.Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	L.Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	L.Error(fmt.Sprintf(format, v...))
}
