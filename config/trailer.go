package config

import (
	"fmt"

	"github.com/malivvan/pcscctl/value"
)

// AccessLen is the number of access condition bytes in a sector trailer.
const AccessLen = 4

// Trailer describes the authentication block of a sector. Both keys are
// resolved against the registry when the trailer is parsed.
type Trailer struct {
	KeyA   *Key
	KeyB   *Key
	Access [AccessLen]byte
}

// ParseTrailer parses {"keyA": "...", "keyB": "...", "acls": ...}.
func ParseTrailer(v any, keys *Registry, path string) (*Trailer, error) {
	obj, err := asObject(v, path)
	if err != nil {
		return nil, err
	}
	if err := obj.check("keyA", "keyB", "acls"); err != nil {
		return nil, err
	}
	uidA, _, err := obj.str("keyA", true)
	if err != nil {
		return nil, err
	}
	uidB, _, err := obj.str("keyB", true)
	if err != nil {
		return nil, err
	}
	raw, ok := obj.get("acls")
	if !ok {
		return nil, parseErrf(path, "missing required field %q", "acls")
	}

	t := &Trailer{}
	if t.KeyA, err = keys.Lookup(uidA); err != nil {
		return nil, parseErr(obj.field("keyA"), err)
	}
	if t.KeyB, err = keys.Lookup(uidB); err != nil {
		return nil, parseErr(obj.field("keyB"), err)
	}
	acls, err := value.Decode(raw, 0)
	if err != nil {
		return nil, parseErr(obj.field("acls"), err)
	}
	if len(acls) != AccessLen {
		return nil, parseErr(obj.field("acls"), fmt.Errorf("%w: got %d bytes", ErrBadTrailerLength, len(acls)))
	}
	copy(t.Access[:], acls)
	return t, nil
}
