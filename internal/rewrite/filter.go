package rewrite

import "github.com/petrhosek/x86-decoder/internal/trie"

// FilterTestKeep drops every branch reached only through a test_keep=false
// label, contracting it to the empty node (spec 4.4.3). Used to shrink the
// cross-check instruction list to a representative subset: roughly one
// ModR/M and one SIB variant per instruction, since disassembling every
// variant is intractable.
func FilterTestKeep(in *trie.Interner, root *trie.Node) *trie.Node {
	cache := make(map[*trie.Node]*trie.Node)
	var walk func(*trie.Node) *trie.Node
	walk = func(node *trie.Node) *trie.Node {
		if cached, ok := cache[node]; ok {
			return cached
		}
		var result *trie.Node
		if node.IsLabel {
			if node.Key == trie.TestKeep && node.Value == false {
				result = trie.Empty
			} else {
				result = in.Label(node.Key, node.Value, walk(node.Next))
			}
		} else {
			children := make(map[trie.Token]*trie.Node)
			for tok, child := range node.Children {
				if v := walk(child); v != trie.Empty {
					children[tok] = v
				}
			}
			result = in.Branch(children, node.Accept)
		}
		cache[node] = result
		return result
	}
	return walk(root)
}

// FilterPrefix restricts a trie to the branches whose initial bytes match
// the given sequence, used by the cross-check harness to exhaustively
// exercise ModR/M behavior under a fixed opcode prefix (spec 4.4.4).
func FilterPrefix(in *trie.Interner, prefix []byte, node *trie.Node) *trie.Node {
	if len(prefix) == 0 {
		return node
	}
	if node.IsLabel {
		return in.Label(node.Key, node.Value, FilterPrefix(in, prefix, node.Next))
	}
	child, ok := node.Children[trie.Token(prefix[0])]
	if !ok {
		child = trie.Empty
	}
	next := FilterPrefix(in, prefix[1:], child)
	return in.Branch(map[trie.Token]*trie.Node{trie.Token(prefix[0]): next}, node.Accept)
}

// FilterPrefixRex is FilterPrefix, but also accepts the prefix preceded by
// any of the 16 REX bytes — used because the cross-check harness does not
// know in advance which REX value a given instruction's representative
// encoding carries.
func FilterPrefixRex(in *trie.Interner, prefix []byte, root *trie.Node) *trie.Node {
	nodes := []*trie.Node{FilterPrefix(in, prefix, root)}
	for rexBits := 0; rexBits < 0x10; rexBits++ {
		withRex := append([]byte{byte(0x40 | rexBits)}, prefix...)
		nodes = append(nodes, FilterPrefix(in, withRex, root))
	}
	return trie.Merge(in, nodes, trie.NoMerge)
}
