package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

func TestStripLabelsDropsConstructionLabels(t *testing.T) {
	in := trie.NewInterner()
	labeled := in.Label(trie.InstrName, "add",
		in.Label(trie.Args, "rm,reg",
			in.Branch(map[trie.Token]*trie.Node{1: trie.AcceptNode}, trie.NotAccept)))

	stripped := StripLabels(in, labeled)
	require.False(t, stripped.IsLabel)
	child := stripped.Children[1]
	require.NotNil(t, child)
	assert.Equal(t, trie.Normal, child.Accept)
}

func TestStripLabelsRelativeJumpBecomesAcceptKind(t *testing.T) {
	in := trie.NewInterner()
	labeled := in.Label(trie.RelativeJump, 4,
		in.Branch(map[trie.Token]*trie.Node{2: trie.AcceptNode}, trie.NotAccept))

	stripped := StripLabels(in, labeled)
	assert.Equal(t, trie.JumpRel4, stripped.Children[2].Accept)
}

func TestStripLabelsRequiresFixupSubstitutesSequence(t *testing.T) {
	in := trie.NewInterner()
	// A single accepting branch, reached via requires_fixup(4) (esp).
	labeled := in.Label(trie.RequiresFixup, 4, in.Branch(nil, trie.Normal))

	stripped := StripLabels(in, labeled)
	// Expect the byte chain 4c 01 fc (0xf8|4), then accept.
	n := stripped
	for _, b := range []trie.Token{0x4c, 0x01, 0xfc} {
		require.NotNil(t, n.Children[b], "missing byte %x", b)
		n = n.Children[b]
	}
	assert.Equal(t, trie.Normal, n.Accept)
}

func TestStripLabelsKeepsZeroExtendLabel(t *testing.T) {
	in := trie.NewInterner()
	labeled := in.Label(trie.RequiresZeroExtend, 3, in.Branch(map[trie.Token]*trie.Node{5: trie.AcceptNode}, trie.NotAccept))

	stripped := StripLabels(in, labeled)
	require.True(t, stripped.IsLabel)
	assert.Equal(t, trie.RequiresZeroExtend, stripped.Key)
	assert.Equal(t, 3, stripped.Value)
}

func TestExpandWildcardsProduces256Children(t *testing.T) {
	in := trie.NewInterner()
	wild := in.Branch(map[trie.Token]*trie.Node{trie.Wildcard: trie.AcceptNode}, trie.NotAccept)

	expanded := ExpandWildcards(in, wild)
	assert.Len(t, expanded.Children, 256)
	for b := 0; b < 256; b++ {
		assert.Equal(t, trie.Normal, expanded.Children[trie.Token(b)].Accept)
	}
}

func TestFilterTestKeepDropsFalseBranch(t *testing.T) {
	in := trie.NewInterner()
	kept := in.Label(trie.TestKeep, true, trie.AcceptNode)
	dropped := in.Label(trie.TestKeep, false, trie.AcceptNode)
	root := in.Branch(map[trie.Token]*trie.Node{1: kept, 2: dropped}, trie.NotAccept)

	filtered := FilterTestKeep(in, root)
	assert.Contains(t, filtered.Children, trie.Token(1))
	assert.NotContains(t, filtered.Children, trie.Token(2))
}

func TestFilterPrefixRestrictsToMatchingBytes(t *testing.T) {
	in := trie.NewInterner()
	root := trie.TrieOfBytes(in, []byte{0x01, 0xc1}, trie.AcceptNode)
	root = trie.Merge(in, []*trie.Node{root, trie.TrieOfBytes(in, []byte{0x02, 0xc1}, trie.AcceptNode)}, trie.NoMerge)

	filtered := FilterPrefix(in, []byte{0x01}, root)
	assert.Contains(t, filtered.Children, trie.Token(0x01))
	assert.NotContains(t, filtered.Children, trie.Token(0x02))
}
