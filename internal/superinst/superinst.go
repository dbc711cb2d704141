// Package superinst enumerates the multi-byte "superinstruction" idioms the
// NaCl sandbox treats as indivisible — indirect-branch masking, the
// stack-pointer restore idiom, long NOPs, and string-op address fixups —
// and grafts them into an already-built DFA (spec 4.5).
package superinst

import "github.com/petrhosek/x86-decoder/internal/trie"

// Sequences returns every superinstruction as a concrete byte sequence.
func Sequences() [][]byte {
	var out [][]byte

	for reg := 0; reg < 8; reg++ {
		mask := []byte{0x83, byte(0xe0 | reg), 0xe0, 0x4c, 0x01, byte(0xf8 | reg)}
		jmp := []byte{0xff, byte(0xe0 | reg)}
		call := []byte{0xff, byte(0xd0 | reg)}
		out = append(out, concat(mask, jmp), concat(mask, call))

		// Top-bit-set registers, via REX.B. r15 is excluded: jumping
		// through it would trash the sandbox base register.
		if reg != 7 {
			maskRex := []byte{0x41, 0x83, byte(0xe0 | reg), 0xe0, 0x4d, 0x01, byte(0xf8 | reg)}
			jmpRex := []byte{0x41, 0xff, byte(0xe0 | reg)}
			callRex := []byte{0x41, 0xff, byte(0xd0 | reg)}
			out = append(out, concat(maskRex, jmpRex), concat(maskRex, callRex))
		}
	}

	out = append(out, []byte{0x48, 0x89, 0xe5}) // mov %rsp, %rbp
	out = append(out, []byte{0x48, 0x89, 0xec}) // mov %rbp, %rsp

	// Canonical multi-byte NOP encodings, 3 to 15 bytes.
	longNops := [][]byte{
		{0x0f, 0x1f, 0x00},
		{0x0f, 0x1f, 0x40, 0x00},
		{0x0f, 0x1f, 0x44, 0x00, 0x00},
		{0x66, 0x0f, 0x1f, 0x44, 0x00, 0x00},
		{0x0f, 0x1f, 0x80, 0x00, 0x00, 0x00, 0x00},
		{0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x66, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x66, 0x2e, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x66, 0x66, 0x2e, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x66, 0x66, 0x66, 0x2e, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x66, 0x66, 0x66, 0x66, 0x2e, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x66, 0x66, 0x66, 0x66, 0x66, 0x2e, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x2e, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
	}
	out = append(out, longNops...)

	fixRsi := []byte{0x89, 0xf6, 0x49, 0x8d, 0x34, 0x37} // mov esi, esi; lea rsi, [r15+rsi]
	fixRdi := []byte{0x89, 0xff, 0x49, 0x8d, 0x3c, 0x3f} // mov edi, edi; lea rdi, [r15+rdi]

	stringOps := []struct {
		opcode byte
		name   string
		fixes  []byte
	}{
		{0xa4, "movs", concat(fixRsi, fixRdi)},
		{0xaa, "stos", fixRdi},
		{0xa6, "cmps", concat(fixRsi, fixRdi)},
		{0xae, "scas", fixRdi},
	}
	reps := []struct {
		prefix []byte
		name   string
	}{
		{nil, ""},
		{[]byte{0xf2}, "repnz "},
		{[]byte{0xf3}, "rep "},
	}
	for _, s := range stringOps {
		for _, r := range reps {
			if r.name+s.name == "repnz movs" || r.name+s.name == "repnz stos" {
				continue
			}
			out = append(out, concat(s.fixes, r.prefix, []byte{s.opcode})) // 8-bit
			if len(r.prefix) == 0 {
				out = append(out, concat(s.fixes, []byte{0x66}, r.prefix, []byte{s.opcode + 1})) // 16-bit
			}
			out = append(out, concat(s.fixes, r.prefix, []byte{s.opcode + 1}))       // 32-bit
			out = append(out, concat(s.fixes, r.prefix, []byte{0x48, s.opcode + 1})) // 64-bit
		}
	}

	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// copyInLabel walks the already-built DFA alongside a superinstruction's
// own bytes, replicating any zeroextends label it finds at the matching
// position. This keeps the superinstruction's chain shaped so that Graft's
// merge unifies labels with labels instead of colliding a label with a
// plain branch (spec 4.5).
func copyInLabel(in *trie.Interner, bytes []byte, node *trie.Node) *trie.Node {
	if node.IsLabel {
		if node.Key != trie.ZeroExtends {
			panic("superinst: unexpected label along a superinstruction path: " + string(node.Key))
		}
		return in.Label(node.Key, node.Value, copyInLabel(in, bytes, node.Next))
	}
	if len(bytes) == 0 {
		return trie.AcceptNode
	}
	child, ok := node.Children[trie.Token(bytes[0])]
	if !ok {
		child = trie.Empty
	}
	return trie.TrieOfBytes(in, bytes[:1], copyInLabel(in, bytes[1:], child))
}

// mergeAcceptTypes resolves the one collision the grafter expects: an
// ordinary instruction's accept state that also happens to be the start of
// a superinstruction becomes superinst_start (spec 4.5).
func mergeAcceptTypes(seen map[trie.AcceptKind]bool) trie.AcceptKind {
	if len(seen) == 2 && seen[trie.Normal] && seen[trie.NotAccept] {
		return trie.SuperinstStart
	}
	panic("superinst: cannot merge accept kinds")
}

// Graft merges every superinstruction idiom into dfaRoot (a stripped,
// wildcard-expanded acceptor), returning the combined DFA.
func Graft(in *trie.Interner, dfaRoot *trie.Node) *trie.Node {
	nodes := []*trie.Node{dfaRoot}
	for _, bytes := range Sequences() {
		nodes = append(nodes, copyInLabel(in, bytes, dfaRoot))
	}
	return trie.Merge(in, nodes, mergeAcceptTypes)
}
