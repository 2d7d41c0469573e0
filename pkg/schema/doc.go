// Package schema defines Document, the portable form of an automaton.
//
// A Document refers to states and events by name, so it can be written as
// YAML or JSON and rebuilt against any registry. Loaders decode into a
// Document and call Build; serializers call FromAutomaton.
//
// Basic usage:
//
//	doc := schema.Document{
//	    Kind:   "dfa",
//	    Events: []schema.EventSpec{{Name: "a"}},
//	    States: []schema.StateSpec{{Name: "s0", Initial: true, Marked: true}},
//	    Transitions: []schema.TransitionSpec{
//	        {From: "s0", Event: "a", To: "s0"},
//	    },
//	}
//
//	a, err := doc.Build(automaton.NewRegistry())
//	if err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        fmt.Println(e)
//	    }
//	}
//
// Build reports every structural problem it finds at once as an
// AggregateError. Each ValidationError wraps the matching domain sentinel, so
// callers can still test with errors.Is.
package schema
