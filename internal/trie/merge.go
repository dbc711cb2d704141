package trie

import "fmt"

// AcceptResolver decides the accept tag of a merged branch node when the
// inputs being merged disagree. It is handed the set of distinct accept
// tags seen across the merged nodes (NotAccept included when one of the
// inputs was non-accepting).
type AcceptResolver func(seen map[AcceptKind]bool) AcceptKind

// NoMerge is the default resolver: any unresolved accept-type collision is
// an internal consistency violation, so it panics rather than guessing.
func NoMerge(seen map[AcceptKind]bool) AcceptKind {
	panic(fmt.Sprintf("trie: cannot merge accept types %v", seen))
}

// Merge recursively unions a multiset of nodes under structural identity:
// Empty inputs are dropped first (Empty is the zero of the merge); a single
// node is returned unchanged; zero nodes collapse to Empty; a set
// of label nodes must all share the same key and value, merging on their
// successors; otherwise children maps are unioned key-wise, recursing on
// colliding keys, and the accept tags are reconciled by resolve.
func Merge(in *Interner, nodes []*Node, resolve AcceptResolver) *Node {
	live := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n != Empty {
			live = append(live, n)
		}
	}
	nodes = live

	switch len(nodes) {
	case 0:
		return Empty
	case 1:
		return nodes[0]
	}

	if nodes[0].IsLabel {
		key, value := nodes[0].Key, nodes[0].Value
		nexts := make([]*Node, len(nodes))
		for i, n := range nodes {
			if !n.IsLabel {
				panic(fmt.Sprintf("trie: merging label %q with a branch node", key))
			}
			if n.Key != key || !valuesEqual(n.Value, value) {
				panic(fmt.Sprintf("trie: merging labels with different key/value: %v=%v vs %v=%v", n.Key, n.Value, key, value))
			}
			nexts[i] = n.Next
		}
		return in.Label(key, value, Merge(in, nexts, resolve))
	}

	byKey := make(map[Token][]*Node)
	seen := make(map[AcceptKind]bool)
	for _, n := range nodes {
		if n.IsLabel {
			panic("trie: merging a label node with branch nodes")
		}
		seen[n.Accept] = true
		for tok, child := range n.Children {
			byKey[tok] = append(byKey[tok], child)
		}
	}

	children := make(map[Token]*Node, len(byKey))
	for tok, subnodes := range byKey {
		children[tok] = Merge(in, subnodes, resolve)
	}

	var accept AcceptKind
	if len(seen) == 1 {
		for a := range seen {
			accept = a
		}
	} else {
		accept = resolve(seen)
	}
	return in.Branch(children, accept)
}

func valuesEqual(a, b any) bool {
	return a == b
}
