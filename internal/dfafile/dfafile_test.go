package dfafile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

func TestRoundTripSimpleBranch(t *testing.T) {
	in := trie.NewInterner()
	root := trie.TrieOfBytes(in, []byte{0x01, 0xc1}, trie.AcceptNode)

	var buf bytes.Buffer
	require.NoError(t, WriteTrie(&buf, root))

	out := trie.NewInterner()
	got, err := ReadTrie(&buf, out)
	require.NoError(t, err)

	n := got
	for _, b := range []trie.Token{0x01, 0xc1} {
		n = n.Children[b]
		require.NotNil(t, n)
	}
	assert.Equal(t, trie.Normal, n.Accept)
}

func TestRoundTripPreservesLabel(t *testing.T) {
	in := trie.NewInterner()
	root := in.Label(trie.ZeroExtends, 3, trie.AcceptNode)

	var buf bytes.Buffer
	require.NoError(t, WriteTrie(&buf, root))

	out := trie.NewInterner()
	got, err := ReadTrie(&buf, out)
	require.NoError(t, err)
	require.True(t, got.IsLabel)
	assert.Equal(t, trie.ZeroExtends, got.Key)
	assert.Equal(t, 3, got.Value)
}

func TestRoundTripSharesStructure(t *testing.T) {
	in := trie.NewInterner()
	shared := trie.AcceptNode
	root := in.Branch(map[trie.Token]*trie.Node{0x01: shared, 0x02: shared}, trie.NotAccept)

	var buf bytes.Buffer
	require.NoError(t, WriteTrie(&buf, root))

	out := trie.NewInterner()
	got, err := ReadTrie(&buf, out)
	require.NoError(t, err)
	assert.Same(t, got.Children[0x01], got.Children[0x02])
}

func TestReadTrieRejectsBadMagic(t *testing.T) {
	_, err := ReadTrie(bytes.NewReader([]byte("nope")), trie.NewInterner())
	assert.Error(t, err)
}
