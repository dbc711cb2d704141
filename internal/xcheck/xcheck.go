// Package xcheck cross-checks the enumerator's model of an instruction's
// text rendering against a native x86-64 decoder (spec 6.2). The original
// generator shelled out to gcc and objdump; this repository decodes
// in-process with golang.org/x/arch/x86/x86asm instead (see SPEC_FULL.md
// §9), keeping the same sentinel-substitution and normalization contract.
package xcheck

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

// wildcardFill is the byte substituted for every wildcard token before
// decoding, matching the original harness's determinism trick: a run of
// 0x11 bytes decodes to an immediate whose value is easy to recognize and
// substitute back out as a VALUEn sentinel.
const wildcardFill = 0x11

// Mismatch records one instruction whose native-decoder rendering didn't
// match the generator's own text, after normalization.
type Mismatch struct {
	Bytes []byte
	Want  string
	Got   string
}

// Concretize replaces every wildcard token with the deterministic fill
// byte, producing the literal byte string the decoder receives.
func Concretize(tokens []trie.Token) []byte {
	out := make([]byte, len(tokens))
	for i, t := range tokens {
		if t == trie.Wildcard {
			out[i] = wildcardFill
		} else {
			out[i] = byte(t)
		}
	}
	return out
}

// sentinelRuns maps a run length of the fill byte to the VALUEn
// sentinel the generator's own rendering uses for that operand width.
var sentinelRuns = []struct {
	hex  string
	repl string
}{
	{strings.Repeat("11", 8), "VALUE64"},
	{strings.Repeat("11", 4), "VALUE32"},
	{strings.Repeat("11", 2), "VALUE16"},
	{strings.Repeat("11", 1), "VALUE8"},
}

// Normalize canonicalizes a disassembler's rendering of one instruction so
// it can be compared against the generator's own text (spec 6.2):
// substitute the canonical 0x1111... sentinel of each width with its
// VALUEn tag, canonicalize whitespace, strip a trailing ".s"
// non-canonical-encoding suffix, strip comments.
func Normalize(s string) string {
	if i := strings.Index(s, "#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".s")
	for _, run := range sentinelRuns {
		s = strings.ReplaceAll(s, "0x"+run.hex, run.repl)
		s = strings.ReplaceAll(s, "$0x"+run.hex, run.repl)
	}
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Decode decodes one concrete byte string in 64-bit mode and renders it in
// the generator's Intel-like style via x86asm.IntelSyntax, then
// normalizes the result.
func Decode(bytes []byte) (string, error) {
	inst, err := x86asm.Decode(bytes, 64)
	if err != nil {
		return "", errors.Wrapf(err, "decode % x", bytes)
	}
	text := x86asm.IntelSyntax(inst, 0, nil)
	return Normalize(strings.ToLower(text)), nil
}

// Pair is one (tokens, expected-text) entry as produced by enc.GetAll.
type Pair struct {
	Tokens []trie.Token
	Text   string
}

// FromEncPairs adapts enc.GetAll's (tokens, text) pairs into Pairs.
func FromEncPairs(pairs [][2]interface{}) []Pair {
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = Pair{Tokens: p[0].([]trie.Token), Text: p[1].(string)}
	}
	return out
}

// Run decodes every pair natively and reports every mismatch after
// normalizing both sides. It never aborts on a single mismatch (spec 7:
// cross-check mismatches are reported, not fatal); a decode error on a
// well-formed encoding is itself reported as a mismatch rather than
// bubbled up, since well-formedness of the generator's own output is an
// invariant this harness exists to test.
func Run(pairs []Pair) ([]Mismatch, error) {
	var mismatches []Mismatch
	for _, p := range pairs {
		bytes := Concretize(p.Tokens)
		want := Normalize(p.Text)
		got, err := Decode(bytes)
		if err != nil {
			mismatches = append(mismatches, Mismatch{Bytes: bytes, Want: want, Got: fmt.Sprintf("<decode error: %v>", err)})
			continue
		}
		if got != want {
			mismatches = append(mismatches, Mismatch{Bytes: bytes, Want: want, Got: got})
		}
	}
	return mismatches, nil
}
