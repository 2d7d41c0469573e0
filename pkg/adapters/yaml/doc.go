// Package yaml reads and writes automata as YAML documents.
//
// The layout is the one of schema.Document:
//
//	kind: dfa
//	events:
//	  - {name: a}
//	  - {name: f, controllable: false, observable: false, fault: F1}
//	states:
//	  - {name: s0, initial: true, marked: true}
//	transitions:
//	  - {from: s0, event: a, to: s0}
//
// Every attribute survives a round trip, including fault labels and PFA
// probabilities. Since YAML is a superset of JSON, JSON documents load too.
package yaml
