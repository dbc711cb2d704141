package enc

import "github.com/petrhosek/x86-decoder/internal/trie"

// Label is a (key, value) annotation to be threaded onto a trie path via
// trie.Interner.Label/Labels.
type Label struct {
	Key   trie.LabelKey
	Value any
}

func applyLabels(in *trie.Interner, labels []Label, next *trie.Node) *trie.Node {
	for i := len(labels) - 1; i >= 0; i-- {
		next = in.Label(labels[i].Key, labels[i].Value, next)
	}
	return next
}
