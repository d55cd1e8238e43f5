package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf guesses the document format from a file name.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads one document into a generic tree suitable for Parse.
func Decode(r io.Reader, format Format) (any, error) {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("%w: yaml: %v", ErrConfigParse, err)}
		}
	default:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("%w: json: %v", ErrConfigParse, err)}
		}
		if dec.More() {
			return nil, &ParseError{Err: fmt.Errorf("%w: json: trailing data after document", ErrConfigParse)}
		}
	}
	return doc, nil
}

// Load decodes one document from r and parses it.
func Load(r io.Reader, format Format, verbosity int) (*Config, error) {
	doc, err := Decode(r, format)
	if err != nil {
		return nil, err
	}
	return Parse(doc, verbosity)
}

// LoadFile decodes and parses the configuration stored at path.
func LoadFile(path string, verbosity int) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("%w: %w", ErrConfigParse, err)}
	}
	defer f.Close()
	return Load(f, FormatOf(path), verbosity)
}
