// Package pipeline orchestrates the build stages spec.md §4.6 and §2
// describe: enumerate, filter a test subset, strip, expand, and graft —
// shared by every x86gen subcommand so generate/verify/stats all run the
// same construction exactly once. Serialization is left to the caller.
package pipeline

import (
	"github.com/pkg/errors"

	"github.com/petrhosek/x86-decoder/internal/config"
	"github.com/petrhosek/x86-decoder/internal/enc"
	"github.com/petrhosek/x86-decoder/internal/rewrite"
	"github.com/petrhosek/x86-decoder/internal/superinst"
	"github.com/petrhosek/x86-decoder/internal/trie"
)

// Built holds every intermediate and final trie the pipeline produces, so
// callers can pick whichever stage they need without rebuilding it.
type Built struct {
	Builder *enc.Builder

	// Labeled is the full labeled transducer (spec 4.2-4.6), before any
	// filtering or stripping.
	Labeled *trie.Node
	// TestSubset is Labeled restricted to test_keep=true branches, used
	// for examples.list and its cross-check.
	TestSubset *trie.Node
	// ModRMSubset is Labeled restricted to the opcode prefix 01 (plus
	// every REX byte), used for examples-modrm.list and its cross-check.
	ModRMSubset *trie.Node
	// DFA is the final stripped, wildcard-expanded, superinstruction-
	// grafted acceptor (spec 4.4-4.5).
	DFA *trie.Node
}

// Build runs every pipeline stage once.
func Build(cfg config.Config) (*Built, error) {
	b := enc.NewBuilder()

	labeled := enc.GetRoot(b, true)
	if n := trie.NodeCount(labeled); n > cfg.MaxNodes {
		return nil, errors.Errorf("pipeline: node count %d exceeds limit %d while building the labeled trie", n, cfg.MaxNodes)
	}

	testSubset := rewrite.FilterTestKeep(b.In, labeled)
	modrmSubset := rewrite.FilterPrefixRex(b.In, []byte{0x01}, labeled)

	dfa := rewrite.StripLabels(b.In, labeled)
	dfa = rewrite.ExpandWildcards(b.In, dfa)
	dfa = superinst.Graft(b.In, dfa)

	if n := trie.NodeCount(dfa); n > cfg.MaxNodes {
		return nil, errors.Errorf("pipeline: node count %d exceeds limit %d while building the final DFA", n, cfg.MaxNodes)
	}

	return &Built{
		Builder:     b,
		Labeled:     labeled,
		TestSubset:  testSubset,
		ModRMSubset: modrmSubset,
		DFA:         dfa,
	}, nil
}
