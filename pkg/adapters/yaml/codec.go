package yaml

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/schema"
	"github.com/mitchellh/mapstructure"
	goyaml "gopkg.in/yaml.v3"
)

// ErrEmptyDocument is returned when the input holds no YAML mapping.
var ErrEmptyDocument = errors.New("yaml: empty document")

// Codec implements ports.Codec for YAML documents.
type Codec struct {
	strict bool
	indent int
}

// Option configures the codec.
type Option func(*Codec)

// WithStrict rejects documents carrying keys the schema does not know.
func WithStrict(strict bool) Option {
	return func(c *Codec) {
		c.strict = strict
	}
}

// WithIndent sets the indentation used by Save.
func WithIndent(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.indent = n
		}
	}
}

// New creates a YAML codec. It is strict by default.
func New(opts ...Option) *Codec {
	c := &Codec{strict: true, indent: 2}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode turns raw YAML into a document without building it.
func (c *Codec) Decode(data []byte) (*schema.Document, error) {
	var raw map[string]any
	if err := goyaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyDocument
	}

	var doc schema.Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &doc,
		ErrorUnused: c.strict,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("yaml: decode document: %w", err)
	}
	return &doc, nil
}

// Load parses a YAML document into an automaton whose events are defined in reg.
func (c *Codec) Load(ctx context.Context, r io.Reader, reg *automaton.Registry) (*automaton.Automaton, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	a, err := doc.Build(reg)
	if err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Save writes a as a YAML document.
func (c *Codec) Save(ctx context.Context, w io.Writer, a *automaton.Automaton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := goyaml.NewEncoder(w)
	enc.SetIndent(c.indent)
	if err := enc.Encode(schema.FromAutomaton(a)); err != nil {
		return fmt.Errorf("yaml: encode document: %w", err)
	}
	return enc.Close()
}
