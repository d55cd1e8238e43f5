package logging

import (
	"bytes"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
)

// TestHelpers swaps L for a buffer-backed logger and restores it afterwards.
func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	defer func() { L = prev }()

	SetVerbosity(1)
	Debugf("hello %s", "dbg")
	Infof("info %d", 1)
	Warnf("warn")
	Errorf("err %v", "E")

	out := buf.String()
	for _, want := range []string{"hello dbg", "info 1", "warn", "err E"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q; got: %s", want, out)
		}
	}

	buf.Reset()
	SetVerbosity(0)
	Debugf("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug output at verbosity 0: %s", buf.String())
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != L {
		t.Fatal("Or(nil) should return the package logger")
	}
	l := clog.New(&bytes.Buffer{})
	if Or(l) != l {
		t.Fatal("Or(l) should return l")
	}
}
