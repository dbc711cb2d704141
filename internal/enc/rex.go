package enc

import (
	"github.com/petrhosek/x86-decoder/internal/trie"
)

var legacyPrefixBytes = map[byte]bool{0x66: true, 0xf2: true, 0xf3: true}

// splitPrefixes splits a byte sequence into the run of legacy size/segment
// prefixes it starts with (here {66, f2, f3}) and the remaining bytes, so
// REX can be inserted between the two (spec 4.2.7).
func splitPrefixes(bytes []byte) (legacy, rest []byte) {
	i := 0
	for i < len(bytes) && legacyPrefixBytes[bytes[i]] {
		i++
	}
	return bytes[:i], bytes[i:]
}

func bytesToTokens(bs []byte) []trie.Token {
	toks := make([]trie.Token, len(bs))
	for i, b := range bs {
		toks[i] = trie.Token(b)
	}
	return toks
}

// GetRexRoot builds the root for one policy, covering the no-REX case and
// all 16 REX byte values 0x40-0x4f (spec 4.2.7). Only REX bits 0, 7, 8, and
// f are kept for cross-check sampling (test_keep); the rest still
// contribute to the DFA, just not to the representative instruction list.
func GetRexRoot(b *Builder, pol Policy) *trie.Node {
	var nodes []*trie.Node
	for _, pn := range GetCoreRoot(b, RexBits{}, pol) {
		nodes = append(nodes, trie.TrieOfSequence(b.In, bytesToTokens(pn.Bytes), pn.Node))
	}
	for rexBits := 0; rexBits < 0x10; rexBits++ {
		rex := RexBits{
			HasREX: true,
			W:      (rexBits >> 3) & 1,
			R:      (rexBits >> 2) & 1,
			X:      (rexBits >> 1) & 1,
			B:      rexBits & 1,
		}
		for _, pn := range GetCoreRoot(b, rex, pol) {
			legacy, rest := splitPrefixes(pn.Bytes)
			keep := rexBits == 0 || rexBits == 7 || rexBits == 8 || rexBits == 0xf
			inner := trie.TrieOfSequence(b.In, bytesToTokens(rest), pn.Node)
			labeled := b.In.Label(trie.TestKeep, keep, inner)
			prefixed := append(append([]byte{}, legacy...), byte(0x40|rexBits))
			nodes = append(nodes, trie.TrieOfSequence(b.In, bytesToTokens(prefixed), labeled))
		}
	}
	return trie.Merge(b.In, nodes, trie.NoMerge)
}

// GetRoot builds the complete labeled transducer: unprefixed/REX-prefixed
// core instructions plus the LOCK-prefixed subset restricted to memory
// destinations in the LOCK whitelist (spec 4.6).
func GetRoot(b *Builder, naclMode bool) *trie.Node {
	core := GetRexRoot(b, Policy{NaclMode: naclMode})

	lockRoot := GetRexRoot(b, Policy{NaclMode: naclMode, MemAccessOnly: true, LockableOnly: true})
	lock := trie.TrieOfSequence(b.In, bytesToTokens([]byte{0xf0}), b.In.Label(trie.LockPrefix, nil, lockRoot))

	return trie.Merge(b.In, []*trie.Node{core, lock}, trie.NoMerge)
}
