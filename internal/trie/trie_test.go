package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchInterning(t *testing.T) {
	in := NewInterner()
	a := in.Branch(map[Token]*Node{1: AcceptNode}, Normal)
	b := in.Branch(map[Token]*Node{1: AcceptNode}, Normal)
	assert.Same(t, a, b, "two constructor calls with equal arguments must return the same node")

	c := in.Branch(map[Token]*Node{1: AcceptNode}, NotAccept)
	assert.NotSame(t, a, c, "differing accept tag must not be canonicalized together")
}

func TestLabelInterning(t *testing.T) {
	in := NewInterner()
	next := in.Branch(nil, Normal)
	a := in.Label(ZeroExtends, 4, next)
	b := in.Label(ZeroExtends, 4, next)
	assert.Same(t, a, b)

	c := in.Label(ZeroExtends, 5, next)
	assert.NotSame(t, a, c)
}

func TestLabelWithIncomparableValueIsNotShared(t *testing.T) {
	in := NewInterner()
	next := in.Branch(nil, Normal)
	type arg struct{ s string }
	value := []arg{{"rm"}, {"reg"}}
	a := in.Label(Args, value, next)
	b := in.Label(Args, value, next)
	assert.NotSame(t, a, b, "incomparable label values are never hash-consed")
	assert.Equal(t, a.Value, b.Value)
}

func TestEmptyIsZeroOfMerge(t *testing.T) {
	in := NewInterner()
	n := in.Branch(map[Token]*Node{1: AcceptNode}, Normal)
	merged := Merge(in, []*Node{n, Empty}, NoMerge)
	assert.Same(t, n, merged)
}

func TestMergeUnionsChildren(t *testing.T) {
	in := NewInterner()
	a := TrieOfBytes(in, []byte{0x01}, AcceptNode)
	b := TrieOfBytes(in, []byte{0x02}, AcceptNode)
	merged := Merge(in, []*Node{a, b}, NoMerge)
	require.Len(t, merged.Children, 2)
	assert.Equal(t, Normal, merged.Children[Token(1)].Accept)
	assert.Equal(t, Normal, merged.Children[Token(2)].Accept)
}

func TestMergeCommutative(t *testing.T) {
	in := NewInterner()
	a := TrieOfBytes(in, []byte{0x01}, AcceptNode)
	b := TrieOfBytes(in, []byte{0x02}, AcceptNode)
	c := TrieOfBytes(in, []byte{0x03}, AcceptNode)

	left := Merge(in, []*Node{Merge(in, []*Node{a, b}, NoMerge), c}, NoMerge)
	right := Merge(in, []*Node{a, Merge(in, []*Node{b, c}, NoMerge)}, NoMerge)
	all := Merge(in, []*Node{a, b, c}, NoMerge)
	assert.Same(t, left, right)
	assert.Same(t, left, all)
}

func TestMergeConflictingAcceptPanicsByDefault(t *testing.T) {
	in := NewInterner()
	a := in.Branch(nil, Normal)
	b := in.Branch(map[Token]*Node{2: AcceptNode}, NotAccept)
	assert.Panics(t, func() { Merge(in, []*Node{a, b}, NoMerge) })
}

func TestMergeConflictingAcceptUsesCustomResolver(t *testing.T) {
	in := NewInterner()
	a := in.Branch(nil, Normal)
	b := in.Branch(map[Token]*Node{2: AcceptNode}, NotAccept)
	resolve := func(seen map[AcceptKind]bool) AcceptKind {
		if seen[Normal] && seen[NotAccept] {
			return SuperinstStart
		}
		t.Fatalf("unexpected accept set %v", seen)
		return NotAccept
	}
	merged := Merge(in, []*Node{a, b}, resolve)
	assert.Equal(t, SuperinstStart, merged.Accept)
}

func TestWildcardExclusivity(t *testing.T) {
	in := NewInterner()
	assert.Panics(t, func() {
		in.Branch(map[Token]*Node{Wildcard: AcceptNode, 1: AcceptNode}, NotAccept)
	})
}

func TestTrieOfSequence(t *testing.T) {
	in := NewInterner()
	n := TrieOfSequence(in, []Token{1, 2, Wildcard}, AcceptNode)
	require.NotNil(t, n.Children[Token(1)])
	mid := n.Children[Token(1)].Children[Token(2)]
	require.NotNil(t, mid)
	assert.Same(t, AcceptNode, mid.Children[Wildcard])
}
