package config

import (
	"fmt"

	"github.com/malivvan/pcscctl/value"
)

const (
	// StatusLen is reserved after read and uuid data for the card status word.
	StatusLen = 2
	// DefaultUUIDLen is used by uuid commands that do not declare a length.
	DefaultUUIDLen = 8
)

// Action is the operation a command performs on the card.
type Action int

const (
	ActionUnknown Action = iota
	ActionRead
	ActionWrite
	ActionTrailer
	ActionUUID
)

var actionLabels = map[Action]string{
	ActionRead:    "read",
	ActionWrite:   "write",
	ActionTrailer: "trailer",
	ActionUUID:    "uuid",
}

func (a Action) String() string {
	if s, ok := actionLabels[a]; ok {
		return s
	}
	return "unknown"
}

// ParseAction maps a label such as "read" or "Write" to its Action.
func ParseAction(label string) (Action, error) {
	folded := foldID(label)
	for a, s := range actionLabels {
		if s == folded {
			return a, nil
		}
	}
	return ActionUnknown, fmt.Errorf("unknown action %q", label)
}

// Command is a single validated card operation.
type Command struct {
	UID     string
	Info    string
	Action  Action
	Sector  uint8
	Block   uint8
	Length  int // declared data length, without the status suffix
	Data    []byte
	Key     *Key
	Trailer *Trailer
	Group   int
}

// WorkingLen is the size of the buffer exchanged with the transport.
func (c *Command) WorkingLen() int {
	switch c.Action {
	case ActionRead, ActionUUID:
		return c.Length + StatusLen
	case ActionWrite:
		return c.Length
	default:
		return 0
	}
}

func (c *Command) String() string {
	return fmt.Sprintf("%s(%s sec=%d blk=%d group=%d)", c.UID, c.Action, c.Sector, c.Block, c.Group)
}

// ParseCommand validates one command object against keys.
func ParseCommand(v any, keys *Registry, path string) (*Command, error) {
	obj, err := asObject(v, path)
	if err != nil {
		return nil, err
	}
	if err := obj.check("uid", "info", "action", "sec", "blk", "len", "key", "data", "trailer", "group"); err != nil {
		return nil, err
	}

	cmd := &Command{}
	if cmd.UID, _, err = obj.str("uid", true); err != nil {
		return nil, err
	}
	if cmd.Info, _, err = obj.str("info", false); err != nil {
		return nil, err
	}
	label, _, err := obj.str("action", true)
	if err != nil {
		return nil, err
	}
	if cmd.Action, err = ParseAction(label); err != nil {
		return nil, parseErrf(obj.field("action"), "uid=%s: %v", cmd.UID, err)
	}
	if cmd.Sector, _, err = integer[uint8](obj, "sec"); err != nil {
		return nil, err
	}
	if cmd.Block, _, err = integer[uint8](obj, "blk"); err != nil {
		return nil, err
	}
	length, hasLen, err := integer[uint16](obj, "len")
	if err != nil {
		return nil, err
	}
	cmd.Length = int(length)
	if cmd.Group, _, err = integer[int](obj, "group"); err != nil {
		return nil, err
	}
	keyUID, hasKey, err := obj.str("key", false)
	if err != nil {
		return nil, err
	}
	data, hasData := obj.get("data")
	trailer, hasTrailer := obj.get("trailer")

	if hasTrailer && cmd.Action != ActionTrailer {
		return nil, parseErrf(path, "uid=%s action=%s: trailer only allowed with action trailer", cmd.UID, cmd.Action)
	}

	switch cmd.Action {
	case ActionRead:
		if !hasLen || cmd.Length == 0 || hasData {
			return nil, parseErrf(path, "uid=%s action=read: len mandatory, data forbidden", cmd.UID)
		}
	case ActionUUID:
		if hasData {
			return nil, parseErrf(path, "uid=%s action=uuid: data forbidden", cmd.UID)
		}
		if cmd.Length == 0 {
			cmd.Length = DefaultUUIDLen
		}
	case ActionWrite:
		if hasData {
			if cmd.Data, err = value.Decode(data, cmd.Length); err != nil {
				return nil, parseErr(obj.field("data"), err)
			}
			cmd.Length = len(cmd.Data)
		}
	case ActionTrailer:
		if hasData || hasLen || !hasTrailer {
			return nil, parseErrf(path, "uid=%s action=trailer: trailer mandatory, len and data forbidden", cmd.UID)
		}
		if cmd.Trailer, err = ParseTrailer(trailer, keys, obj.field("trailer")); err != nil {
			return nil, err
		}
	}

	if hasKey {
		if cmd.Key, err = keys.Lookup(keyUID); err != nil {
			return nil, parseErr(obj.field("key"), fmt.Errorf("cmd=%s: %w", cmd.UID, err))
		}
	}
	return cmd, nil
}

// Table keeps commands in document order and indexes them by identifier.
// A later command with an already used identifier replaces the earlier one in
// the index while both stay in the ordered list.
type Table struct {
	cmds  []*Command
	index map[string]*Command
}

func NewTable() *Table {
	return &Table{index: make(map[string]*Command)}
}

func (t *Table) add(cmd *Command) {
	t.cmds = append(t.cmds, cmd)
	t.index[cmd.UID] = cmd
}

// Commands returns every parsed command in document order, duplicates included.
func (t *Table) Commands() []*Command {
	return t.cmds
}

// Lookup returns the command indexed under uid.
func (t *Table) Lookup(uid string) (*Command, error) {
	if cmd, ok := t.index[uid]; ok {
		return cmd, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, uid)
}

func (t *Table) Len() int {
	return len(t.cmds)
}

// ParseCommands accepts a single command object or a list of command objects.
func ParseCommands(v any, keys *Registry, path string) (*Table, error) {
	t := NewTable()
	err := each(v, path, func(elem any, path string) error {
		cmd, err := ParseCommand(elem, keys, path)
		if err != nil {
			return err
		}
		t.add(cmd)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
