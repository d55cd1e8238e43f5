package config

import (
	"encoding/hex"
	"fmt"

	"github.com/malivvan/pcscctl/value"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
)

// Key is a named secret usable by commands and trailers.
type Key struct {
	UID   string
	Index int // reader key slot
	Value []byte
}

// Len returns the key length in bytes.
func (k *Key) Len() int {
	return len(k.Value)
}

// Fingerprint identifies the key value in logs without revealing it.
func (k *Key) Fingerprint() string {
	sum := blake2b.Sum256(k.Value)
	return hex.EncodeToString(sum[:4])
}

func (k *Key) String() string {
	return fmt.Sprintf("%s[%d]#%s", k.UID, k.Index, k.Fingerprint())
}

// Registry holds the keys of a configuration. Identifiers match case
// insensitively; when an identifier is defined twice the first one wins.
type Registry struct {
	keys  []*Key
	index map[string]*Key
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Key)}
}

func (r *Registry) add(k *Key) {
	r.keys = append(r.keys, k)
	id := foldID(k.UID)
	if _, ok := r.index[id]; !ok {
		r.index[id] = k
	}
}

// Lookup returns the key named uid.
func (r *Registry) Lookup(uid string) (*Key, error) {
	if k, ok := r.index[foldID(uid)]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, uid)
}

// Keys returns every parsed key in document order.
func (r *Registry) Keys() []*Key {
	return r.keys
}

func (r *Registry) Len() int {
	return len(r.keys)
}

// ParseKey parses {"uid": "...", "idx": 0, "value": ...}.
func ParseKey(v any, path string) (*Key, error) {
	obj, err := asObject(v, path)
	if err != nil {
		return nil, err
	}
	if err := obj.check("uid", "idx", "value"); err != nil {
		return nil, err
	}
	uid, _, err := obj.str("uid", true)
	if err != nil {
		return nil, err
	}
	idx, _, err := integer[int](obj, "idx")
	if err != nil {
		return nil, err
	}
	raw, ok := obj.get("value")
	if !ok {
		return nil, parseErrf(path, "missing required field %q", "value")
	}
	data, err := value.Decode(raw, 0)
	if err != nil {
		return nil, parseErr(obj.field("value"), err)
	}
	return &Key{UID: uid, Index: idx, Value: data}, nil
}

// ParseKeys accepts a single key object or a list of key objects.
func ParseKeys(v any, path string) (*Registry, error) {
	r := NewRegistry()
	err := each(v, path, func(elem any, path string) error {
		k, err := ParseKey(elem, path)
		if err != nil {
			return err
		}
		r.add(k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func foldID(s string) string {
	return cases.Fold().String(s)
}
