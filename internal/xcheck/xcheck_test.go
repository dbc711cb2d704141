package xcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

func TestConcretizeFillsWildcardsWithSentinelByte(t *testing.T) {
	got := Concretize([]trie.Token{0x01, trie.Wildcard, trie.Wildcard, 0xc1})
	assert.Equal(t, []byte{0x01, 0x11, 0x11, 0xc1}, got)
}

func TestNormalizeCollapsesSentinelRuns(t *testing.T) {
	assert.Equal(t, "mov eax, VALUE32", Normalize("mov eax, 0x11111111"))
	assert.Equal(t, "push VALUE8", Normalize("push 0x11"))
}

func TestNormalizeCanonicalizesWhitespaceAndStripsComments(t *testing.T) {
	assert.Equal(t, "add ecx, eax", Normalize("  add   ecx,   eax   # comment"))
}

func TestNormalizeStripsNonCanonicalSuffix(t *testing.T) {
	assert.Equal(t, "add ecx, eax", Normalize("add ecx, eax.s"))
}

func TestDecodeRendersSimpleAddRegReg(t *testing.T) {
	text, err := Decode([]byte{0x01, 0xc1})
	assert.NoError(t, err)
	assert.Contains(t, text, "add")
}

func TestRunReportsMismatchWithoutAborting(t *testing.T) {
	pairs := []Pair{
		{Tokens: []trie.Token{0x01, 0xc1}, Text: "add ecx, eax"},
		{Tokens: []trie.Token{0x01, 0xc1}, Text: "totally wrong text"},
	}
	mismatches, err := Run(pairs)
	assert.NoError(t, err)
	assert.Len(t, mismatches, 1)
	assert.Equal(t, "totally wrong text", mismatches[0].Want)
}
