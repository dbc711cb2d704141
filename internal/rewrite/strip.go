// Package rewrite implements the passes that turn the labeled transducer
// the enc package builds into the pure byte acceptor the runtime consumes:
// stripping labels into typed accept states, expanding wildcard edges, and
// restricting a trie to a test-harness subset or byte prefix.
package rewrite

import (
	"fmt"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

type stripKey struct {
	node    *trie.Node
	accept  trie.AcceptKind
	replace *trie.Node
}

// stripper holds the interner and the fixup-sequence cache used while
// stripping one trie.
type stripper struct {
	in    *trie.Interner
	cache map[stripKey]*trie.Node
	fixup map[int]*trie.Node
}

// stackFixup returns the interned "add %r15, %esp-or-%ebp" byte sequence a
// requires_fixup(reg) label rewrites into: 4c 01 f8|reg, then accept.
func (s *stripper) stackFixup(reg int) *trie.Node {
	if reg != 4 && reg != 5 {
		panic(fmt.Sprintf("rewrite: stack fixup only applies to esp/ebp, got reg %d", reg))
	}
	if n, ok := s.fixup[reg]; ok {
		return n
	}
	n := trie.TrieOfBytes(s.in, []byte{0x4c, 0x01, byte(0xf8 | reg)}, trie.AcceptNode)
	s.fixup[reg] = n
	return n
}

func jumpRelKind(n int) trie.AcceptKind {
	switch n {
	case 1:
		return trie.JumpRel1
	case 2:
		return trie.JumpRel2
	case 4:
		return trie.JumpRel4
	default:
		panic(fmt.Sprintf("rewrite: unsupported relative_jump width %d", n))
	}
}

func (s *stripper) strip(node *trie.Node, accept trie.AcceptKind, replace *trie.Node) *trie.Node {
	key := stripKey{node: node, accept: accept, replace: replace}
	if cached, ok := s.cache[key]; ok {
		return cached
	}

	var result *trie.Node
	if node.IsLabel {
		switch node.Key {
		case trie.RelativeJump:
			if accept != trie.Normal {
				panic("rewrite: relative_jump label seen outside a normal_inst path")
			}
			accept = jumpRelKind(node.Value.(int))
		case trie.RequiresFixup:
			if accept != trie.Normal {
				panic("rewrite: requires_fixup label seen outside a normal_inst path")
			}
			accept = trie.StripReplace
			replace = s.stackFixup(node.Value.(int))
		}
		next := s.strip(node.Next, accept, replace)
		switch node.Key {
		case trie.RequiresZeroExtend, trie.ZeroExtends:
			next = s.in.Label(node.Key, node.Value, next)
		}
		result = next
	} else {
		var acceptTag trie.AcceptKind
		if node.Accept != trie.NotAccept {
			if accept == trie.StripReplace {
				if len(node.Children) != 0 {
					panic("rewrite: requires_fixup accept state must have no children")
				}
				result = s.strip(replace, trie.Normal, nil)
				s.cache[key] = result
				return result
			}
			acceptTag = accept
		} else {
			acceptTag = trie.NotAccept
		}
		children := make(map[trie.Token]*trie.Node, len(node.Children))
		for tok, child := range node.Children {
			children[tok] = s.strip(child, accept, replace)
		}
		result = s.in.Branch(children, acceptTag)
	}
	s.cache[key] = result
	return result
}

// StripLabels converts a labeled transducer into a pure acceptor (spec
// 4.4.1). relative_jump and requires_fixup labels are consumed into accept
// kinds and fixup substitutions; requires_zeroextend and zeroextends
// survive as interned label nodes; every other label is dropped.
func StripLabels(in *trie.Interner, root *trie.Node) *trie.Node {
	s := &stripper{in: in, cache: make(map[stripKey]*trie.Node), fixup: make(map[int]*trie.Node)}
	return s.strip(root, trie.Normal, nil)
}
