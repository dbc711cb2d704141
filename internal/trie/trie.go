// Package trie implements the interned prefix-tree/transducer used to
// describe the x86-64 encoding space.
//
// A Node is one of two tagged variants (see Node.IsLabel): a Branch node
// with either up to 256 concrete byte children or a single wildcard child,
// and an accept tag; or a Label node, a single-edge annotation that is
// transparent to byte consumption. Nodes are immutable once built and are
// hash-consed by an Interner so that structural equality implies pointer
// identity: two constructor calls with equal arguments return the same
// *Node, and thereafter `==` is enough to compare trees.
package trie

import (
	"fmt"
	"sort"
	"strings"
)

// Token is a single edge label: a concrete byte value (0-255) or Wildcard.
type Token int32

// Wildcard stands for "any byte" at positions holding a displacement or
// immediate value. A branch node with a wildcard child has no other
// children (wildcards are exclusive at their level).
const Wildcard Token = -1

func (t Token) String() string {
	if t == Wildcard {
		return "XX"
	}
	return fmt.Sprintf("%02x", int(t))
}

// ByteToken converts a raw byte value to its Token.
func ByteToken(b byte) Token { return Token(b) }

// AcceptKind tags a branch node as accepting (and how) or rejecting.
type AcceptKind uint8

const (
	// NotAccept marks a non-accepting branch node.
	NotAccept AcceptKind = iota
	// Normal is a complete, ordinary instruction.
	Normal
	// JumpRel1 is a complete instruction whose tail is a 1-byte relative
	// jump displacement.
	JumpRel1
	// JumpRel2 is the 2-byte counterpart (never produced by the enumerator
	// directly, but reserved so the accept-kind space matches the runtime's).
	JumpRel2
	// JumpRel4 is the 4-byte counterpart.
	JumpRel4
	// SuperinstStart marks a state that is both a normal accept and the
	// start of a multi-instruction sandboxing idiom.
	SuperinstStart
	// StripReplace is a transient accept kind used only by the rewrite
	// package during label stripping; it never appears in a node produced
	// by a public constructor.
	StripReplace
)

func (a AcceptKind) String() string {
	switch a {
	case NotAccept:
		return "false"
	case Normal:
		return "normal_inst"
	case JumpRel1:
		return "jump_rel1"
	case JumpRel2:
		return "jump_rel2"
	case JumpRel4:
		return "jump_rel4"
	case SuperinstStart:
		return "superinst_start"
	case StripReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// LabelKey names the closed set of semantic annotations a Label node may
// carry. Category (a) keys survive label stripping into the final DFA;
// category (b) keys exist only during construction and testing and are
// dropped by the strip pass.
type LabelKey string

const (
	// RequiresZeroExtend marks that the validator must enforce a prior
	// zero-extending write to the named register before this path may be
	// taken. Survives stripping.
	RequiresZeroExtend LabelKey = "requires_zeroextend"
	// ZeroExtends marks that this instruction zero-extends the named
	// 32-bit register. Survives stripping.
	ZeroExtends LabelKey = "zeroextends"
	// RequiresFixup marks that, at strip time, the accepting node must be
	// replaced by an inline register-fixup byte sequence. Consumed (not
	// preserved) by stripping: it becomes a `replace` accept-kind.
	RequiresFixup LabelKey = "requires_fixup"
	// RelativeJump marks the accept kind as a relative jump of the given
	// byte width. Consumed by stripping.
	RelativeJump LabelKey = "relative_jump"

	// RmArg records the rendered r/m operand text. Construction/testing only.
	RmArg LabelKey = "rm_arg"
	// RegArg records the rendered reg operand text. Construction/testing only.
	RegArg LabelKey = "reg_arg"
	// MemArg records a rendered absolute memory operand. Construction/testing only.
	MemArg LabelKey = "mem_arg"
	// Args records the ordered operand rendering plan. Construction/testing only.
	Args LabelKey = "args"
	// InstrName records the mnemonic. Construction/testing only.
	InstrName LabelKey = "instr_name"
	// TestKeep marks whether this branch survives ModR/M test-subset filtering.
	TestKeep LabelKey = "test_keep"
	// LockPrefix marks that the path is reached only via the 0xf0 LOCK prefix.
	LockPrefix LabelKey = "lock_prefix"
	// GSPrefix marks that the path is reached only via the 0x65 %gs override.
	GSPrefix LabelKey = "gs_prefix"
)

// survivesStrip reports whether a label of this key is preserved verbatim
// in the stripped acceptor, as opposed to being consumed or discarded.
func (k LabelKey) survivesStrip() bool {
	return k == RequiresZeroExtend || k == ZeroExtends
}

// Node is an interned trie node: either a Branch (Children/Accept valid)
// or a Label (Key/Value/Next valid). Treat it as immutable; callers must
// go through an Interner to build new nodes.
type Node struct {
	IsLabel bool

	// Branch fields.
	Children map[Token]*Node
	Accept   AcceptKind

	// Label fields.
	Key   LabelKey
	Value any
	Next  *Node
}

// Empty is the distinguished dead (non-accepting, no-children) node; it is
// the zero of the merge operation.
var Empty = &Node{Children: map[Token]*Node{}, Accept: NotAccept}

// AcceptNode is a branch node with no children that accepts immediately;
// used as the tail of zero-length operand chains.
var AcceptNode = &Node{Children: map[Token]*Node{}, Accept: Normal}

// Interner hash-conses Branch and Label nodes. It is written many times
// during construction and is safe to treat as read-only afterwards; per
// the single-threaded batch model this package does not lock it.
type Interner struct {
	branches map[string]*Node
	labels   map[labelKey]*Node
}

// NewInterner returns a fresh interning context seeded with Empty.
func NewInterner() *Interner {
	in := &Interner{
		branches: make(map[string]*Node),
		labels:   make(map[labelKey]*Node),
	}
	in.branches[branchCacheKey(nil, NotAccept)] = Empty
	return in
}

type labelKey struct {
	key   LabelKey
	value any
	next  *Node
}

// Branch returns the canonical node for the given children map and accept
// tag. The children map is not retained; callers may reuse/mutate it after
// the call returns.
func (in *Interner) Branch(children map[Token]*Node, accept AcceptKind) *Node {
	// Drop dead subtrees so that two branches differing only in dead
	// children still canonicalize to the same node.
	live := make(map[Token]*Node, len(children))
	for tok, next := range children {
		if next != Empty {
			live[tok] = next
		}
	}
	if _, hasWildcard := live[Wildcard]; hasWildcard && len(live) != 1 {
		panic(fmt.Sprintf("trie: wildcard child is not exclusive: %v", keysOf(live)))
	}
	key := branchCacheKey(live, accept)
	if n, ok := in.branches[key]; ok {
		return n
	}
	n := &Node{Children: live, Accept: accept}
	in.branches[key] = n
	return n
}

// Label returns the canonical single-edge annotation node wrapping next.
// Values that are not comparable (e.g. the operand-rendering slice
// carried by the Args key) cannot be used as Go map keys, so such labels
// are constructed fresh on every call instead of being hash-consed; they
// are few in number (one per enumerated encoding) and are stripped before
// the trie is merged at scale, so the lost sharing does not matter.
func (in *Interner) Label(key LabelKey, value any, next *Node) *Node {
	if !isComparable(value) {
		return &Node{IsLabel: true, Key: key, Value: value, Next: next}
	}
	lk := labelKey{key: key, value: value, next: next}
	if n, ok := in.labels[lk]; ok {
		return n
	}
	n := &Node{IsLabel: true, Key: key, Value: value, Next: next}
	in.labels[lk] = n
	return n
}

// Labels wraps next in a chain of labels, outermost first in the slice
// (i.e. labels[0] is applied last, ending up as the outermost node).
func (in *Interner) Labels(labels []struct {
	Key   LabelKey
	Value any
}, next *Node) *Node {
	for i := len(labels) - 1; i >= 0; i-- {
		next = in.Label(labels[i].Key, labels[i].Value, next)
	}
	return next
}

// TrieOfSequence right-folds a sequence of byte-or-wildcard tokens into a
// linear chain ending at tail.
func TrieOfSequence(in *Interner, tokens []Token, tail *Node) *Node {
	node := tail
	for i := len(tokens) - 1; i >= 0; i-- {
		node = in.Branch(map[Token]*Node{tokens[i]: node}, NotAccept)
	}
	return node
}

// TrieOfBytes is TrieOfSequence specialised to concrete bytes.
func TrieOfBytes(in *Interner, bytes []byte, tail *Node) *Node {
	toks := make([]Token, len(bytes))
	for i, b := range bytes {
		toks[i] = Token(b)
	}
	return TrieOfSequence(in, toks, tail)
}

func isComparable(v any) bool {
	switch v.(type) {
	case nil, bool, int, int64, uint, uint64, string:
		return true
	default:
		return false
	}
}

func keysOf(m map[Token]*Node) []Token {
	ks := make([]Token, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

// branchCacheKey builds a content hash key from the children map (by child
// pointer identity, which is valid because children are already interned)
// and the accept tag.
func branchCacheKey(children map[Token]*Node, accept AcceptKind) string {
	toks := keysOf(children)
	var b strings.Builder
	fmt.Fprintf(&b, "%d|", accept)
	for _, t := range toks {
		fmt.Fprintf(&b, "%d:%p;", t, children[t])
	}
	return b.String()
}

// NodeCount returns the number of distinct interned nodes reachable from
// root, counting each shared node once.
func NodeCount(root *Node) int {
	seen := make(map[*Node]bool)
	var rec func(n *Node)
	rec = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		if n.IsLabel {
			rec(n.Next)
			return
		}
		for _, child := range n.Children {
			rec(child)
		}
	}
	rec(root)
	return len(seen)
}

// Size returns the number of distinct byte strings accepted by the trie
// rooted at root. If expandWildcards is true, a wildcard edge is counted
// as 256 distinct continuations instead of 1.
func Size(root *Node, expandWildcards bool) int64 {
	memo := make(map[*Node]int64)
	var rec func(n *Node) int64
	rec = func(n *Node) int64 {
		if v, ok := memo[n]; ok {
			return v
		}
		var x int64
		if n.IsLabel {
			x = rec(n.Next)
		} else {
			if n.Accept != NotAccept {
				x++
			}
			if expandWildcards {
				if dest, ok := n.Children[Wildcard]; ok {
					x += 256 * rec(dest)
					memo[n] = x
					return x
				}
			}
			for _, child := range n.Children {
				x += rec(child)
			}
		}
		memo[n] = x
		return x
	}
	return rec(root)
}
