package symbolic

import (
	"math/big"
)

// Node is a reference to a BDD node owned by a Manager.
// Two nodes of the same Manager denote the same function iff they are equal.
type Node int32

// Var is a variable index; lower indices sit closer to the root.
type Var int

const (
	False Node = 0
	True  Node = 1
)

type nodeRec struct {
	v      Var
	lo, hi Node
}

type iteKey struct{ f, g, h Node }

// Manager owns a reduced ordered BDD with a fixed variable order.
// It is not safe for concurrent use.
type Manager struct {
	nvars  int
	nodes  []nodeRec
	unique map[nodeRec]Node
	ite    map[iteKey]Node
}

// NewManager creates a manager over nvars variables ordered 0 < 1 < ... < nvars-1.
func NewManager(nvars int) *Manager {
	m := &Manager{
		nvars:  nvars,
		unique: make(map[nodeRec]Node),
		ite:    make(map[iteKey]Node),
	}
	// terminals sit below every variable
	m.nodes = append(m.nodes, nodeRec{v: Var(nvars)}, nodeRec{v: Var(nvars)})
	return m
}

// NumVars returns the number of variables.
func (m *Manager) NumVars() int { return m.nvars }

// Grow appends k variables at the bottom of the order and returns the first
// of them. Existing nodes keep their meaning; they do not depend on the new
// variables.
func (m *Manager) Grow(k int) Var {
	first := Var(m.nvars)
	m.nvars += k
	m.nodes[False].v = Var(m.nvars)
	m.nodes[True].v = Var(m.nvars)
	return first
}

// Size returns the number of nodes allocated so far, terminals included.
func (m *Manager) Size() int { return len(m.nodes) }

func (m *Manager) level(n Node) Var { return m.nodes[n].v }

func (m *Manager) mk(v Var, lo, hi Node) Node {
	if lo == hi {
		return lo
	}
	key := nodeRec{v: v, lo: lo, hi: hi}
	if n, ok := m.unique[key]; ok {
		return n
	}
	n := Node(len(m.nodes))
	m.nodes = append(m.nodes, key)
	m.unique[key] = n
	return n
}

// Var returns the function that is true iff variable v is set.
func (m *Manager) Var(v Var) Node {
	return m.mk(v, False, True)
}

// NVar returns the negation of Var(v).
func (m *Manager) NVar(v Var) Node {
	return m.mk(v, True, False)
}

// Literal returns Var(v) or NVar(v) depending on value.
func (m *Manager) Literal(v Var, value bool) Node {
	if value {
		return m.Var(v)
	}
	return m.NVar(v)
}

func (m *Manager) cofactors(n Node, v Var) (lo, hi Node) {
	if m.level(n) != v {
		return n, n
	}
	r := m.nodes[n]
	return r.lo, r.hi
}

// ITE computes if f then g else h. All boolean connectives reduce to it.
func (m *Manager) ITE(f, g, h Node) Node {
	switch {
	case f == True:
		return g
	case f == False:
		return h
	case g == h:
		return g
	case g == True && h == False:
		return f
	}
	key := iteKey{f, g, h}
	if r, ok := m.ite[key]; ok {
		return r
	}
	v := min(m.level(f), m.level(g), m.level(h))
	f0, f1 := m.cofactors(f, v)
	g0, g1 := m.cofactors(g, v)
	h0, h1 := m.cofactors(h, v)
	r := m.mk(v, m.ITE(f0, g0, h0), m.ITE(f1, g1, h1))
	m.ite[key] = r
	return r
}

func (m *Manager) Not(f Node) Node    { return m.ITE(f, False, True) }
func (m *Manager) And(f, g Node) Node { return m.ITE(f, g, False) }
func (m *Manager) Or(f, g Node) Node  { return m.ITE(f, True, g) }
func (m *Manager) Xor(f, g Node) Node { return m.ITE(f, m.Not(g), g) }

// Implies reports whether f entails g.
func (m *Manager) Implies(f, g Node) bool {
	return m.And(f, m.Not(g)) == False
}

// Exists quantifies the given variables away.
func (m *Manager) Exists(f Node, vars []Var) Node {
	if len(vars) == 0 {
		return f
	}
	set := make(map[Var]bool, len(vars))
	maxVar := Var(0)
	for _, v := range vars {
		set[v] = true
		maxVar = max(maxVar, v)
	}
	memo := make(map[Node]Node)
	var rec func(Node) Node
	rec = func(n Node) Node {
		if n == True || n == False || m.level(n) > maxVar {
			return n
		}
		if r, ok := memo[n]; ok {
			return r
		}
		r := m.nodes[n]
		lo, hi := rec(r.lo), rec(r.hi)
		var out Node
		if set[r.v] {
			out = m.Or(lo, hi)
		} else {
			out = m.mk(r.v, lo, hi)
		}
		memo[n] = out
		return out
	}
	return rec(f)
}

// Rename substitutes variables according to mapping. The mapping need not
// preserve the order; targets must not occur in f outside the mapping.
func (m *Manager) Rename(f Node, mapping map[Var]Var) Node {
	memo := make(map[Node]Node)
	var rec func(Node) Node
	rec = func(n Node) Node {
		if n == True || n == False {
			return n
		}
		if r, ok := memo[n]; ok {
			return r
		}
		r := m.nodes[n]
		v := r.v
		if to, ok := mapping[v]; ok {
			v = to
		}
		out := m.ITE(m.Var(v), rec(r.hi), rec(r.lo))
		memo[n] = out
		return out
	}
	return rec(f)
}

// Eval evaluates f under an assignment; unset variables read as false.
func (m *Manager) Eval(f Node, assign func(Var) bool) bool {
	for f != True && f != False {
		r := m.nodes[f]
		if assign(r.v) {
			f = r.hi
		} else {
			f = r.lo
		}
	}
	return f == True
}

// NodeCount returns the number of distinct nodes reachable from f, terminals included.
func (m *Manager) NodeCount(f Node) int {
	seen := make(map[Node]bool)
	var rec func(Node)
	rec = func(n Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		if n == True || n == False {
			return
		}
		rec(m.nodes[n].lo)
		rec(m.nodes[n].hi)
	}
	rec(f)
	return len(seen)
}

// SatCount returns the number of satisfying assignments over all variables.
func (m *Manager) SatCount(f Node) *big.Int {
	memo := make(map[Node]*big.Int)
	// count(n) is the number of models over variables level(n)..nvars-1
	var count func(Node) *big.Int
	count = func(n Node) *big.Int {
		if n == False {
			return big.NewInt(0)
		}
		if n == True {
			return big.NewInt(1)
		}
		if c, ok := memo[n]; ok {
			return c
		}
		r := m.nodes[n]
		lo := new(big.Int).Lsh(count(r.lo), uint(m.level(r.lo)-r.v-1))
		hi := new(big.Int).Lsh(count(r.hi), uint(m.level(r.hi)-r.v-1))
		c := lo.Add(lo, hi)
		memo[n] = c
		return c
	}
	return new(big.Int).Lsh(count(f), uint(m.level(f)))
}
