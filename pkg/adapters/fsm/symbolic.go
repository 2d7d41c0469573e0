package fsm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/explore"
	"github.com/aretw0/desops/pkg/schema"
	"github.com/aretw0/desops/pkg/symbolic"
)

// LoadSymbolic streams an .fsm file straight into a BDD encoding. The state
// count header sizes the state variables and every transition line is OR-ed
// into the relation as it is read, so no explicit automaton is built.
//
// Events are defined in reg only once the whole stream has parsed. Each
// state block is one step of the exploration budget.
func LoadSymbolic(ctx context.Context, r io.Reader, reg *automaton.Registry, opts ...explore.Option) (*symbolic.Encoded, error) {
	if reg == nil {
		reg = automaton.NewRegistry()
	}
	g := explore.NewGuard(ctx, domain.AnalysisSymbolic, explore.Apply(opts...))
	enc, err := streamSymbolic(g, &lineReader{sc: bufio.NewScanner(r)}, reg)
	if err != nil {
		g.Finish("error", 0, err)
		return nil, err
	}
	g.Finish("encoded", g.Expanded(), nil)
	return enc, nil
}

func streamSymbolic(g *explore.Guard, r *lineReader, reg *automaton.Registry) (*symbolic.Encoded, error) {
	fields, err := r.next()
	if err != nil {
		return nil, r.errorf("missing state count: %v", err)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 || len(fields) != 1 {
		return nil, r.errorf("bad state count %q", strings.Join(fields, " "))
	}
	b, err := symbolic.NewBuilder(n)
	if err != nil {
		return nil, err
	}

	var order []string
	events := make(map[string]schema.EventSpec)
	for i := range n {
		if err := g.Step(); err != nil {
			return nil, err
		}
		fields, err := r.next()
		if err != nil {
			return nil, r.errorf("state %d of %d: %v", i+1, n, err)
		}
		if len(fields) != 3 {
			return nil, r.errorf("state header needs 3 fields, got %d", len(fields))
		}
		name := fields[0]
		marked, err := parseBit(fields[1])
		if err != nil {
			return nil, r.errorf("state %q: %v", name, err)
		}
		ntrans, err := strconv.Atoi(fields[2])
		if err != nil || ntrans < 0 {
			return nil, r.errorf("state %q: bad transition count %q", name, fields[2])
		}
		from, err := b.Declare(name, marked, i == 0)
		if err != nil {
			return nil, r.wrap(err)
		}

		for range ntrans {
			fields, err := r.next()
			if err != nil {
				return nil, r.errorf("state %q: %v", name, err)
			}
			if len(fields) != 4 {
				return nil, r.errorf("transition needs 4 fields, got %d", len(fields))
			}
			ev := fields[0]
			spec, err := eventSpec(ev, fields[2], fields[3])
			if err != nil {
				return nil, r.errorf("event %q: %v", ev, err)
			}
			if prev, ok := events[ev]; !ok {
				if err := reg.Check(ev, spec.Options()...); err != nil {
					return nil, r.errorf("event %q: %v", ev, err)
				}
				events[ev] = spec
				order = append(order, ev)
			} else if *prev.Controllable != *spec.Controllable || *prev.Observable != *spec.Observable {
				return nil, r.errorf("event %q listed with different attributes", ev)
			}
			to, err := b.State(fields[1])
			if err != nil {
				return nil, r.wrap(err)
			}
			b.Transition(from, ev, to)
		}
	}
	if fields, err := r.next(); err == nil {
		return nil, r.errorf("trailing content %q", strings.Join(fields, " "))
	} else if !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}

	for _, ev := range order {
		if _, err := reg.Define(ev, events[ev].Options()...); err != nil {
			return nil, fmt.Errorf("event %q: %w", ev, err)
		}
	}
	return b.Encoded(reg)
}
