package superinst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

func TestSequencesIncludesIndirectBranchMasking(t *testing.T) {
	seqs := Sequences()
	found := make(map[string]bool)
	for _, s := range seqs {
		found[string(s)] = true
	}

	// reg=0 (rax), jmp through the masked register.
	assert.True(t, found[string([]byte{0x83, 0xe0, 0xe0, 0x4c, 0x01, 0xf8, 0xff, 0xe0})])
	// reg=1 via REX.B (r9), call through the masked register.
	assert.True(t, found[string([]byte{0x41, 0x83, 0xe1, 0xe0, 0x4d, 0x01, 0xf9, 0x41, 0xff, 0xd1})])
}

func TestSequencesExcludesR15FromRexBForms(t *testing.T) {
	for _, s := range Sequences() {
		if len(s) >= 2 && s[0] == 0x41 && s[1] == 0x83 {
			assert.NotEqual(t, byte(0xe7), s[2], "masking via r15 would clobber the sandbox base register")
		}
	}
}

func TestSequencesIncludesStackPointerRestore(t *testing.T) {
	seqs := Sequences()
	assert.Contains(t, seqs, []byte{0x48, 0x89, 0xe5})
	assert.Contains(t, seqs, []byte{0x48, 0x89, 0xec})
}

func TestSequencesExcludesRepnzMovsAndStos(t *testing.T) {
	movsStos := map[byte]bool{0xa4: true, 0xa5: true, 0xaa: true, 0xab: true}
	for _, s := range Sequences() {
		// The string opcode is last, optionally preceded by REX.W (48) and
		// then by the rep/repnz prefix.
		op, rest := s[len(s)-1], s[:len(s)-1]
		if len(rest) > 0 && rest[len(rest)-1] == 0x48 {
			rest = rest[:len(rest)-1]
		}
		if movsStos[op] && len(rest) > 0 && rest[len(rest)-1] == 0xf2 {
			t.Fatalf("repnz movs/stos must not appear as a superinstruction: %x", s)
		}
	}
}

func TestCopyInLabelEndsInNormalAccept(t *testing.T) {
	in := trie.NewInterner()
	dfa := trie.TrieOfBytes(in, []byte{0x01, 0xc1}, trie.AcceptNode)

	got := copyInLabel(in, []byte{0x01, 0xc1}, dfa)
	require.False(t, got.IsLabel)
	child := got.Children[0x01].Children[0xc1]
	require.NotNil(t, child)
	assert.Equal(t, trie.Normal, child.Accept)
}

func TestCopyInLabelPreservesZeroExtendsLabel(t *testing.T) {
	in := trie.NewInterner()
	labeled := in.Label(trie.ZeroExtends, 0, trie.AcceptNode)
	dfa := in.Branch(map[trie.Token]*trie.Node{0x89: labeled}, trie.NotAccept)

	got := copyInLabel(in, []byte{0x89}, dfa)
	inner := got.Children[0x89]
	require.True(t, inner.IsLabel)
	assert.Equal(t, trie.ZeroExtends, inner.Key)
}

func TestCopyInLabelRejectsOtherLabelKinds(t *testing.T) {
	in := trie.NewInterner()
	labeled := in.Label(trie.InstrName, "mov", trie.AcceptNode)
	dfa := in.Branch(map[trie.Token]*trie.Node{0x89: labeled}, trie.NotAccept)

	assert.Panics(t, func() { copyInLabel(in, []byte{0x89}, dfa) })
}

func TestMergeAcceptTypesResolvesNormalAndNotAccept(t *testing.T) {
	got := mergeAcceptTypes(map[trie.AcceptKind]bool{trie.Normal: true, trie.NotAccept: true})
	assert.Equal(t, trie.SuperinstStart, got)
}

func TestMergeAcceptTypesPanicsOnUnexpectedCollision(t *testing.T) {
	assert.Panics(t, func() {
		mergeAcceptTypes(map[trie.AcceptKind]bool{trie.Normal: true, trie.JumpRel4: true})
	})
}

func TestGraftMarksOverlapAsSuperinstStart(t *testing.T) {
	in := trie.NewInterner()
	// "and eax, 0xffffffe0" (83 e0 e0) ends right where the indirect-branch
	// masking idiom for rax continues into its fixup bytes.
	dfa := trie.TrieOfBytes(in, []byte{0x83, 0xe0, 0xe0}, trie.AcceptNode)

	grafted := Graft(in, dfa)
	n := grafted
	for _, b := range []trie.Token{0x83, 0xe0, 0xe0} {
		n = n.Children[b]
		require.NotNil(t, n)
	}
	assert.Equal(t, trie.SuperinstStart, n.Accept)
}
