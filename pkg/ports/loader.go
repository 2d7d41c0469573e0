package ports

import (
	"context"
	"io"

	"github.com/aretw0/desops/pkg/automaton"
)

// Loader reads an automaton from r. Events are defined in reg, so several
// loaded automata can be composed together. Structural violations are
// reported with the domain sentinel errors.
type Loader interface {
	Load(ctx context.Context, r io.Reader, reg *automaton.Registry) (*automaton.Automaton, error)
}

// Serializer writes an automaton to w.
type Serializer interface {
	Save(ctx context.Context, w io.Writer, a *automaton.Automaton) error
}

// Codec is a format that can both read and write automata.
type Codec interface {
	Loader
	Serializer
}

// Renderer turns an automaton into a textual diagram.
type Renderer interface {
	Render(a *automaton.Automaton) (string, error)
}
