package enc_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrhosek/x86-decoder/internal/enc"
	"github.com/petrhosek/x86-decoder/internal/rewrite"
	"github.com/petrhosek/x86-decoder/internal/trie"
)

// buildOnce builds the full labeled transducer and its stripped DFA once
// and shares them across subtests, the way a single GetRoot build is
// shared across every downstream consumer in the real pipeline.
var buildOnce = sync.OnceValues(func() (*enc.Builder, *trie.Node, *trie.Node) {
	b := enc.NewBuilder()
	labeled := enc.GetRoot(b, true)
	dfa := rewrite.ExpandWildcards(b.In, rewrite.StripLabels(b.In, labeled))
	return b, labeled, dfa
})

// walkLabeled follows bytes through a labeled (pre-strip) trie, passing
// transparently through label nodes, and returns the reached node plus
// every label seen along the way, or nil if the path doesn't exist.
func walkLabeled(n *trie.Node, bytes []trie.Token) (*trie.Node, enc.LabelMap) {
	labels := enc.LabelMap{}
	for n.IsLabel {
		labels[n.Key] = n.Value
		n = n.Next
	}
	for _, b := range bytes {
		child, ok := n.Children[b]
		if !ok {
			return nil, nil
		}
		n = child
		for n.IsLabel {
			labels[n.Key] = n.Value
			n = n.Next
		}
	}
	return n, labels
}

func walkDFA(n *trie.Node, bytes []byte) *trie.Node {
	for n.IsLabel {
		n = n.Next
	}
	for _, b := range bytes {
		child, ok := n.Children[trie.Token(b)]
		if !ok {
			return nil
		}
		n = child
		for n.IsLabel {
			n = n.Next
		}
	}
	return n
}

func toks(bs ...byte) []trie.Token {
	out := make([]trie.Token, len(bs))
	for i, b := range bs {
		out[i] = trie.Token(b)
	}
	return out
}

func TestAddRegRegAcceptsWithExpectedText(t *testing.T) {
	_, labeled, dfa := buildOnce()

	n, labels := walkLabeled(labeled, toks(0x01, 0xc1))
	require.NotNil(t, n, "01 c1 should be a reachable path")
	assert.NotEqual(t, trie.NotAccept, n.Accept)
	assert.Equal(t, "add ecx, eax", enc.InstrFromLabels(labels))

	stripped := walkDFA(dfa, []byte{0x01, 0xc1})
	require.NotNil(t, stripped)
	assert.Equal(t, trie.Normal, stripped.Accept)
}

func TestProtectedRegisterWriteNotAcceptedWithoutFixup(t *testing.T) {
	_, _, dfa := buildOnce()

	stripped := walkDFA(dfa, []byte{0x01, 0xc4})
	require.NotNil(t, stripped, "the path must still exist, pending the fixup suffix")
	assert.Equal(t, trie.NotAccept, stripped.Accept)
}

func TestProtectedRegisterWriteAcceptsWithFixupSuffix(t *testing.T) {
	_, _, dfa := buildOnce()

	stripped := walkDFA(dfa, []byte{0x01, 0xc4, 0x4c, 0x01, 0xfc})
	require.NotNil(t, stripped)
	assert.Equal(t, trie.Normal, stripped.Accept)
}

func TestShortConditionalJumpAcceptsAsJumpRel1(t *testing.T) {
	_, _, dfa := buildOnce()

	stripped := walkDFA(dfa, []byte{0x74, 0x11})
	require.NotNil(t, stripped)
	assert.Equal(t, trie.JumpRel1, stripped.Accept)

	_, labeled, _ := buildOnce()
	n, labels := walkLabeled(labeled, append(toks(0x74), trie.Wildcard))
	require.NotNil(t, n)
	assert.Equal(t, "je JUMP_DEST", enc.InstrFromLabels(labels))
}

func TestLockPrefixOnRegisterFormNotAccepted(t *testing.T) {
	_, _, dfa := buildOnce()

	stripped := walkDFA(dfa, []byte{0xf0, 0x01, 0xc1})
	assert.Nil(t, stripped, "lock requires a memory destination")
}

func TestLockPrefixOnMemoryFormAccepted(t *testing.T) {
	_, _, dfa := buildOnce()

	stripped := walkDFA(dfa, []byte{0xf0, 0x41, 0x01, 0x07})
	require.NotNil(t, stripped)
	assert.Equal(t, trie.Normal, stripped.Accept)
}

func TestRipRelativeLoadAcceptsWithExpectedText(t *testing.T) {
	_, labeled, _ := buildOnce()

	bytes := append(toks(0x48, 0x8b, 0x05), trie.Wildcard, trie.Wildcard, trie.Wildcard, trie.Wildcard)
	n, labels := walkLabeled(labeled, bytes)
	require.NotNil(t, n)
	assert.NotEqual(t, trie.NotAccept, n.Accept)
	assert.Contains(t, enc.InstrFromLabels(labels), "[rip+VALUE32]")
}
