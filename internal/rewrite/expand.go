package rewrite

import "github.com/petrhosek/x86-decoder/internal/trie"

// ExpandWildcards replaces every wildcard child with 256 explicit children
// pointing at the same (expanded) subtree (spec 4.4.2). Run after
// StripLabels, since far fewer nodes carry wildcards once labels are gone.
func ExpandWildcards(in *trie.Interner, root *trie.Node) *trie.Node {
	cache := make(map[*trie.Node]*trie.Node)
	var walk func(*trie.Node) *trie.Node
	walk = func(node *trie.Node) *trie.Node {
		if cached, ok := cache[node]; ok {
			return cached
		}
		if node.IsLabel {
			result := in.Label(node.Key, node.Value, walk(node.Next))
			cache[node] = result
			return result
		}
		var children map[trie.Token]*trie.Node
		if dest, ok := node.Children[trie.Wildcard]; ok {
			if len(node.Children) != 1 {
				panic("rewrite: wildcard child coexists with concrete children")
			}
			expanded := walk(dest)
			children = make(map[trie.Token]*trie.Node, 256)
			for b := 0; b < 256; b++ {
				children[trie.Token(b)] = expanded
			}
		} else {
			children = make(map[trie.Token]*trie.Node, len(node.Children))
			for tok, child := range node.Children {
				children[tok] = walk(child)
			}
		}
		result := in.Branch(children, node.Accept)
		cache[node] = result
		return result
	}
	return walk(root)
}
