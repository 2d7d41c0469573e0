package fsm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/schema"
)

// ErrUnsupported is returned by Save for automata the format cannot express.
var ErrUnsupported = errors.New("fsm: unsupported automaton")

// ErrSyntax is returned by Load for malformed input.
var ErrSyntax = errors.New("fsm: syntax error")

// Codec implements ports.Codec for the .fsm format.
type Codec struct{}

// New creates an .fsm codec.
func New() *Codec {
	return &Codec{}
}

type lineReader struct {
	sc   *bufio.Scanner
	line int
}

// next returns the fields of the next non-blank line.
func (r *lineReader) next() ([]string, error) {
	for r.sc.Scan() {
		r.line++
		fields := strings.Fields(r.sc.Text())
		if len(fields) > 0 {
			return fields, nil
		}
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

func (r *lineReader) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, r.line, fmt.Sprintf(format, args...))
}

// wrap is errorf for an error whose sentinel must survive.
func (r *lineReader) wrap(err error) error {
	return fmt.Errorf("%w: line %d: %w", ErrSyntax, r.line, err)
}

// Load parses an .fsm stream into an automaton whose events are defined in reg.
func (c *Codec) Load(ctx context.Context, r io.Reader, reg *automaton.Registry) (*automaton.Automaton, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := parse(&lineReader{sc: bufio.NewScanner(r)})
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

func parse(r *lineReader) (*schema.Document, error) {
	fields, err := r.next()
	if err != nil {
		return nil, r.errorf("missing state count: %v", err)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 || len(fields) != 1 {
		return nil, r.errorf("bad state count %q", strings.Join(fields, " "))
	}

	doc := &schema.Document{Kind: automaton.DFA.String()}
	events := make(map[string]schema.EventSpec)
	targets := make(map[[2]string]string)
	nondeterministic := false

	for i := range n {
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
		doc.States = append(doc.States, schema.StateSpec{Name: name, Marked: marked, Initial: i == 0})

		for range ntrans {
			fields, err := r.next()
			if err != nil {
				return nil, r.errorf("state %q: %v", name, err)
			}
			if len(fields) != 4 {
				return nil, r.errorf("transition needs 4 fields, got %d", len(fields))
			}
			ev, target := fields[0], fields[1]
			spec, err := eventSpec(ev, fields[2], fields[3])
			if err != nil {
				return nil, r.errorf("event %q: %v", ev, err)
			}
			if prev, ok := events[ev]; ok && (*prev.Controllable != *spec.Controllable || *prev.Observable != *spec.Observable) {
				return nil, r.errorf("event %q listed with different attributes", ev)
			}
			events[ev] = spec

			key := [2]string{name, ev}
			if prev, ok := targets[key]; ok && prev != target {
				nondeterministic = true
			}
			targets[key] = target
			if ev == automaton.EpsilonName {
				nondeterministic = true
			}
			doc.Transitions = append(doc.Transitions, schema.TransitionSpec{From: name, Event: ev, To: target})
		}
	}
	if fields, err := r.next(); err == nil {
		return nil, r.errorf("trailing content %q", strings.Join(fields, " "))
	}

	if nondeterministic {
		doc.Kind = automaton.NFA.String()
	}
	for _, name := range slices.Sorted(maps.Keys(events)) {
		doc.Events = append(doc.Events, events[name])
	}
	return doc, nil
}

func parseBit(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("marked flag must be 0 or 1, got %q", s)
}

func eventSpec(name, ctrl, obs string) (schema.EventSpec, error) {
	spec := schema.EventSpec{Name: name}
	var c, o bool
	switch ctrl {
	case "c":
		c = true
	case "uc":
	default:
		return spec, fmt.Errorf("controllability must be c or uc, got %q", ctrl)
	}
	switch obs {
	case "o":
		o = true
	case "uo":
	default:
		return spec, fmt.Errorf("observability must be o or uo, got %q", obs)
	}
	spec.Controllable, spec.Observable = &c, &o
	return spec, nil
}

// Save writes a in .fsm form. The initial state is written first and the
// others follow in ascending order; transitions are sorted by event name.
func (c *Codec) Save(ctx context.Context, w io.Writer, a *automaton.Automaton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Kind() == automaton.PFA {
		return fmt.Errorf("%w: probabilistic automata have no .fsm form", ErrUnsupported)
	}
	init, err := a.InitialState()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if err := expressible(a); err != nil {
		return err
	}

	order := []automaton.StateID{init}
	for _, s := range a.States() {
		if s != init {
			order = append(order, s)
		}
	}
	for _, s := range order {
		if strings.ContainsFunc(a.StateName(s), isSpace) {
			return fmt.Errorf("%w: state name %q contains whitespace", ErrUnsupported, a.StateName(s))
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n\n", len(order))
	for _, s := range order {
		var lines []string
		for _, e := range a.Enabled(s) {
			for _, t := range a.Successors(s, e) {
				lines = append(lines, fmt.Sprintf("%s\t%s\t%s\t%s\n", e.Name(), a.StateName(t), ctrlFlag(e), obsFlag(e)))
			}
		}
		fmt.Fprintf(bw, "%s\t%s\t%d\n", a.StateName(s), bit(a.IsMarked(s)), len(lines))
		for _, l := range lines {
			bw.WriteString(l)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// expressible rejects what a reload would lose: the format lists no alphabet
// and no fault labels, so events are only known through their transitions.
func expressible(a *automaton.Automaton) error {
	used := make(map[*automaton.Event]bool)
	for _, t := range a.Transitions() {
		used[t.Event] = true
	}
	for _, e := range a.Alphabet() {
		if e.IsEpsilon() {
			continue
		}
		if e.IsFault() {
			return fmt.Errorf("%w: event %q carries fault label %q", ErrUnsupported, e.Name(), e.Fault())
		}
		if !used[e] {
			return fmt.Errorf("%w: event %q has no transition", ErrUnsupported, e.Name())
		}
	}
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func ctrlFlag(e *automaton.Event) string {
	if e.Controllable() {
		return "c"
	}
	return "uc"
}

func obsFlag(e *automaton.Event) string {
	if e.Observable() {
		return "o"
	}
	return "uo"
}
