package enc

import "github.com/petrhosek/x86-decoder/internal/trie"

// Builder holds the trie.Interner and the memoization caches shared across
// an entire GetRoot build. The underlying ModR/M/SIB/immediate helpers are
// pure functions of their arguments (REX bits, sizes, the already-interned
// tail node), so caching them by argument tuple avoids rebuilding
// identical subtrees across the many instructions and REX/policy
// combinations that share a shape — the same role Python's module-level
// @Memoize decorators played in generator.py.
type Builder struct {
	In *trie.Interner

	sibCache           map[sibKey]*trie.Node
	modrmMemCache      map[modrmMemKey][]modrmAlt
	modrmRegCache      map[modrmRegKey][]modrmAlt
	modrmSingleArgCache map[modrmSingleArgKey]*trie.Node
	immediateCache     map[Size]*trie.Node
}

// NewBuilder returns a Builder with fresh, empty memoization caches.
func NewBuilder() *Builder {
	return &Builder{
		In:                  trie.NewInterner(),
		sibCache:            make(map[sibKey]*trie.Node),
		modrmMemCache:       make(map[modrmMemKey][]modrmAlt),
		modrmRegCache:       make(map[modrmRegKey][]modrmAlt),
		modrmSingleArgCache: make(map[modrmSingleArgKey]*trie.Node),
		immediateCache:      make(map[Size]*trie.Node),
	}
}

type sibKey struct {
	rexX, rexB int
	mod        int
	rmSize     Size
	dispSize   int
	dispStr    string
	tail       *trie.Node
}

type modrmMemKey struct {
	rexX, rexB int
	rmSize     Size
	tail       *trie.Node
}

type modrmRegKey struct {
	hasREX bool
	rexB   int
	rmSize Size
	attrs  *OperandAttrs
	tail   *trie.Node
}

type modrmSingleArgKey struct {
	hasREX                      bool
	rexX, rexB                  int
	rmSize                      Size
	attrs                       *OperandAttrs
	allowReg, allowMem          bool
	opcode                      int
	tail                        *trie.Node
}

// modrmAlt is one (mod, r/m-field) alternative produced by ModR/M/SIB
// expansion, still awaiting the reg field (or opcode extension) byte.
type modrmAlt struct {
	Mod  int
	Reg2 int
	Node *trie.Node
}
