package graph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/desops/pkg/automaton"
)

// Overlay marks states to highlight on the diagram.
type Overlay struct {
	// Highlight states get the "highlight" class (e.g. secret or bad states).
	Highlight automaton.StateSet
	// Current is drawn with the "current" class when set.
	Current automaton.StateID
}

// NoOverlay draws the plain diagram.
var NoOverlay = Overlay{Current: automaton.NoState}

// GenerateMermaid produces a Mermaid flowchart of a.
// It applies semantic styling:
// - Marked: (((Double circle)))
// - Default: ("Rounded")
// - Initial: an arrow from an unnamed dot
// - Controllable events: solid arrows; uncontrollable: dotted arrows
// - Unobservable events: label in parentheses
// Transitions between the same pair of states share one arrow.
func GenerateMermaid(a *automaton.Automaton, overlay Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, s := range a.States() {
		opener, closer := "(", ")"
		if a.IsMarked(s) {
			opener, closer = "(((", ")))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", nodeID(s), opener, escape(a.StateName(s)), closer)
	}
	for i, s := range a.Initial() {
		fmt.Fprintf(&sb, "    init%d(( )) --> %s\n", i, nodeID(s))
	}

	type arc struct {
		from, to     automaton.StateID
		controllable bool
	}
	labels := make(map[arc][]string)
	var order []arc
	for _, t := range a.Transitions() {
		k := arc{from: t.From, to: t.To, controllable: t.Event.Controllable()}
		if _, seen := labels[k]; !seen {
			order = append(order, k)
		}
		labels[k] = append(labels[k], eventLabel(a, t))
	}
	for _, k := range order {
		text := strings.Join(labels[k], ", ")
		if k.controllable {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", nodeID(k.from), text, nodeID(k.to))
		} else {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", nodeID(k.from), text, nodeID(k.to))
		}
	}

	if len(overlay.Highlight) > 0 || overlay.Current != automaton.NoState {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast regardless of theme
		sb.WriteString("    classDef highlight fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, s := range overlay.Highlight {
			if a.Has(s) {
				fmt.Fprintf(&sb, "    class %s highlight;\n", nodeID(s))
			}
		}
		if a.Has(overlay.Current) {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(overlay.Current))
		}
	}

	return sb.String()
}

func eventLabel(a *automaton.Automaton, t automaton.Transition) string {
	label := escape(t.Event.Name())
	if !t.Event.Observable() {
		label = "(" + label + ")"
	}
	if a.Kind() == automaton.PFA {
		label += " " + strconv.FormatFloat(t.Prob, 'g', 4, 64)
	}
	return label
}

func nodeID(s automaton.StateID) string {
	return "s" + strconv.Itoa(int(s))
}

func escape(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}

// Renderer implements ports.Renderer with Mermaid output.
type Renderer struct {
	Overlay Overlay
}

// NewRenderer creates a renderer that highlights the given states.
func NewRenderer(highlight ...automaton.StateID) *Renderer {
	return &Renderer{Overlay: Overlay{Highlight: slices.Clone(highlight), Current: automaton.NoState}}
}

// Render returns the Mermaid flowchart of a.
func (r *Renderer) Render(a *automaton.Automaton) (string, error) {
	if a == nil {
		return "", fmt.Errorf("graph: nil automaton")
	}
	return GenerateMermaid(a, r.Overlay), nil
}
