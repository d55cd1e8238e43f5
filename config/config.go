// Package config parses and validates smart card command configurations.
//
// A configuration names a reader, a set of keys and a list of commands:
//
//	{
//	  "reader": "ACS ACR122U",
//	  "keys": [{"uid": "key-a", "idx": 0, "value": ["0xFF", "0xFF", "0xFF", "0xFF", "0xFF", "0xFF"]}],
//	  "cmds": [{"uid": "read-id", "action": "read", "sec": 1, "blk": 0, "len": 16, "key": "key-a", "group": 1}]
//	}
//
// Keys are parsed before commands so that commands and trailers can refer to
// them. Everything is immutable once Parse returns.
package config

import (
	"time"
)

// DefaultMaxDev is the number of readers considered when none is configured.
const DefaultMaxDev = 16

type Config struct {
	UID      string
	Reader   string
	Info     string
	MaxDev   int
	Verbose  int
	Timeout  int // seconds, passed through to the transport
	Keys     *Registry
	Commands *Table
}

// Parse validates a decoded document. verbosity applies unless the document
// sets "debug" or "verbose" itself. No partial Config is returned on error.
func Parse(doc any, verbosity int) (*Config, error) {
	obj, err := asObject(doc, "")
	if err != nil {
		return nil, err
	}
	if err := obj.check("uid", "info", "reader", "maxdev", "debug", "verbose", "timeout", "keys", "cmds"); err != nil {
		return nil, err
	}

	cfg := &Config{MaxDev: DefaultMaxDev, Verbose: verbosity}
	if cfg.UID, _, err = obj.str("uid", false); err != nil {
		return nil, err
	}
	if cfg.Info, _, err = obj.str("info", false); err != nil {
		return nil, err
	}
	if cfg.Reader, _, err = obj.str("reader", true); err != nil {
		return nil, err
	}
	if maxdev, ok, err := integer[int](obj, "maxdev"); err != nil {
		return nil, err
	} else if ok {
		cfg.MaxDev = maxdev
	}
	for _, name := range []string{"debug", "verbose"} {
		if v, ok, err := integer[int](obj, name); err != nil {
			return nil, err
		} else if ok {
			cfg.Verbose = v
		}
	}
	if cfg.Timeout, _, err = integer[int](obj, "timeout"); err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, parseErrf("timeout", "must not be negative")
	}
	if cfg.UID == "" {
		cfg.UID = cfg.Reader
	}

	keys, hasKeys := obj.get("keys")
	cmds, hasCmds := obj.get("cmds")
	if hasKeys && !hasCmds {
		return nil, parseErr("", ErrMissingCommands)
	}

	cfg.Keys = NewRegistry()
	if hasKeys {
		if cfg.Keys, err = ParseKeys(keys, "keys"); err != nil {
			return nil, err
		}
	}
	cfg.Commands = NewTable()
	if hasCmds {
		if cfg.Commands, err = ParseCommands(cmds, cfg.Keys, "cmds"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Lookup returns the command indexed under uid.
func (c *Config) Lookup(uid string) (*Command, error) {
	return c.Commands.Lookup(uid)
}

// TimeoutDuration returns the configured timeout, zero when unset.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
