package enc

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

// LabelMap is the set of labels collected along one path from the root of
// a labeled trie to an accepting node.
type LabelMap map[trie.LabelKey]any

// flattenTrie walks every accepting path of a labeled (pre-strip) trie in
// byte-lexicographic order, yielding the token sequence and the label map
// gathered along the way (spec 5, "flatten the trie in byte-lexicographic
// order"). Tokens, not raw bytes: a path may still carry wildcard edges
// (unresolved immediates/displacements) at this pre-strip stage.
func flattenTrie(node *trie.Node, prefix []trie.Token, labels LabelMap, yield func([]trie.Token, LabelMap)) {
	if node.IsLabel {
		next := make(LabelMap, len(labels)+1)
		for k, v := range labels {
			next[k] = v
		}
		next[node.Key] = node.Value
		flattenTrie(node.Next, prefix, next, yield)
		return
	}
	if node.Accept != trie.NotAccept {
		yield(append([]trie.Token(nil), prefix...), labels)
	}
	if len(node.Children) == 0 {
		return
	}
	keys := make([]trie.Token, 0, len(node.Children))
	for k := range node.Children {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		flattenTrie(node.Children[k], append(prefix, k), labels, yield)
	}
}

// FlattenTrie returns every (tokens, labels) pair reachable in the trie, in
// byte-lexicographic order.
func FlattenTrie(node *trie.Node) [][2]any {
	var out [][2]any
	flattenTrie(node, nil, LabelMap{}, func(tokens []trie.Token, labels LabelMap) {
		out = append(out, [2]any{tokens, labels})
	})
	return out
}

// TokensToHex renders a token sequence the way the instruction listing
// does: space-separated, each token either a two-digit hex byte or "XX".
func TokensToHex(tokens []trie.Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

func expandArg(a outArg, labels LabelMap) string {
	if !a.Expand {
		return a.Value
	}
	var key trie.LabelKey
	switch a.Value {
	case "rm":
		key = trie.RmArg
	case "reg":
		key = trie.RegArg
	default:
		panic("enc: unknown expand-arg kind " + a.Value)
	}
	return labels[key].(string)
}

// InstrFromLabels renders the instruction text for one accepting path,
// given the labels gathered along it (spec 6.3).
func InstrFromLabels(labels LabelMap) string {
	name, _ := labels[trie.InstrName].(string)
	args, _ := labels[trie.Args].([]outArg)

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = " " + expandArg(a, labels)
	}
	instr := name + strings.Join(parts, ",")
	if _, locked := labels[trie.LockPrefix]; locked {
		instr = "lock " + instr
	}
	return instr
}

// GetAll renders every accepting path of a labeled trie to its (tokens,
// text) pair, in byte-lexicographic order.
func GetAll(node *trie.Node) [][2]interface{} {
	var out [][2]interface{}
	for _, pair := range FlattenTrie(node) {
		tokens := pair[0].([]trie.Token)
		labels := pair[1].(LabelMap)
		out = append(out, [2]interface{}{tokens, InstrFromLabels(labels)})
	}
	return out
}

// WriteInstructionList renders every accepting path of a labeled trie as
// one line of the form "<hex bytes>:<instruction text>{ {key:value}...}",
// matching the original generator's examples.list/examples-modrm.list
// format (spec 6.1).
func WriteInstructionList(w io.Writer, node *trie.Node) error {
	for _, pair := range FlattenTrie(node) {
		tokens := pair[0].([]trie.Token)
		labels := pair[1].(LabelMap)
		var suffix strings.Builder
		for _, key := range []trie.LabelKey{trie.RequiresFixup, trie.RequiresZeroExtend, trie.ZeroExtends} {
			if v, ok := labels[key]; ok {
				fmt.Fprintf(&suffix, " {%s:%v}", key, v)
			}
		}
		if _, err := fmt.Fprintf(w, "%s:%s%s\n", TokensToHex(tokens), InstrFromLabels(labels), suffix.String()); err != nil {
			return err
		}
	}
	return nil
}
