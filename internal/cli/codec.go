package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/desops"
	"github.com/aretw0/desops/pkg/adapters/fsm"
	"github.com/aretw0/desops/pkg/adapters/yaml"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/ports"
	"github.com/aretw0/desops/pkg/schema"
)

// Stdio is the path that means stdin or stdout.
const Stdio = "-"

// jsonCodec reads through the YAML codec, JSON being a subset of YAML, and
// writes indented JSON.
type jsonCodec struct {
	*yaml.Codec
}

func (c jsonCodec) Save(ctx context.Context, w io.Writer, a *automaton.Automaton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(schema.FromAutomaton(a))
}

// CodecFor picks the codec for path by its extension. Stdio and paths without
// an extension use YAML.
func CodecFor(path string) (ports.Codec, error) {
	if path == Stdio {
		return yaml.New(), nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", "":
		return yaml.New(), nil
	case ".json":
		return jsonCodec{yaml.New()}, nil
	case ".fsm":
		return fsm.New(), nil
	default:
		return nil, fmt.Errorf("no codec for %q files", ext)
	}
}

// ReadAutomaton loads the automaton at path into the engine's registry.
func ReadAutomaton(ctx context.Context, engine *desops.Engine, path string) (*automaton.Automaton, error) {
	codec, err := CodecFor(path)
	if err != nil {
		return nil, err
	}
	var r io.Reader = os.Stdin
	if path != Stdio {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	a, err := engine.Load(ctx, codec, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// WriteAutomaton saves a to path, or to stdout when path is Stdio.
func WriteAutomaton(ctx context.Context, engine *desops.Engine, path string, stdout io.Writer, a *automaton.Automaton) error {
	codec, err := CodecFor(path)
	if err != nil {
		return err
	}
	if path == Stdio {
		return engine.Save(ctx, codec, stdout, a)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := engine.Save(ctx, codec, f, a); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// ResolveStates maps state names of a to their ids.
func ResolveStates(a *automaton.Automaton, names []string) (automaton.StateSet, error) {
	var set automaton.StateSet
	for _, name := range names {
		s, ok := a.FindState(name)
		if !ok {
			return nil, fmt.Errorf("state %q: %w", name, domain.ErrUnknownState)
		}
		set = append(set, s)
	}
	return automaton.NewStateSet(set...), nil
}

// StateNames maps ids of a back to their names.
func StateNames(a *automaton.Automaton, set automaton.StateSet) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		out = append(out, a.StateName(s))
	}
	return out
}
