package router

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

// File is the on-disk routes document:
//
//	recoverable = ["invalid_credentials", "model_not_found"]
//
//	[[providers.deepseek]]
//	name = "deepseek-openai"
//	dialect = "openai"
//	endpoint = "https://api.deepseek.com"
//	priority = 1
//	headers = { Authorization = "Bearer ${DEEPSEEK_API_KEY}" }
type File struct {
	Recoverable []string `toml:"recoverable,omitempty"`
	Providers   Table    `toml:"providers"`
}

// ParseFile decodes a routes document. Unknown keys are rejected so typos in
// candidate tables do not silently drop settings.
func ParseFile(data []byte) (*File, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parsing routes: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing routes: unknown keys %v", undecoded)
	}
	if f.Providers == nil {
		f.Providers = Table{}
	}
	return &f, nil
}

// LoadFile reads and parses a routes document.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routes: %w", err)
	}
	return ParseFile(data)
}

// RecoverableKinds parses the recoverable list. An empty list yields nil so
// callers can fall back to DefaultRecoverable.
func (f *File) RecoverableKinds() ([]llm.ErrorKind, error) {
	if len(f.Recoverable) == 0 {
		return nil, nil
	}
	kinds := make([]llm.ErrorKind, 0, len(f.Recoverable))
	for _, s := range f.Recoverable {
		k, err := llm.ParseErrorKind(s)
		if err != nil {
			return nil, fmt.Errorf("parsing routes: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Encode renders f as TOML.
func (f *File) Encode() ([]byte, error) {
	data, err := toml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding routes: %w", err)
	}
	return data, nil
}
