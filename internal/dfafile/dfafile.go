// Package dfafile serializes and deserializes the final DFA to the binary
// format described in spec 6.4: a topologically ordered dump of nodes,
// each a 256-entry byte transition table (plus accept tag) for a branch
// node, or a (key, value, next) triple for a residual label node. The
// original (trie_to_c.py) only ever emitted a C source array; this
// repository adds the reader half so the format round-trips (SPEC_FULL.md
// §10).
package dfafile

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

const magic = "X86G"
const version = 1

const (
	tagBranch byte = 0
	tagLabel  byte = 1
)

const (
	valueNil    byte = 0
	valueBool   byte = 1
	valueInt    byte = 2
	valueString byte = 3
)

// WriteTrie serializes root to w. Node index 0 is always the empty node,
// so that a zero transition-table entry unambiguously means "no edge".
func WriteTrie(w io.Writer, root *trie.Node) error {
	order, index := topoOrder(root)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return errors.Wrap(err, "dfafile: write magic")
	}
	if err := bw.WriteByte(version); err != nil {
		return errors.Wrap(err, "dfafile: write version")
	}
	if err := writeUint32(bw, uint32(len(order))); err != nil {
		return errors.Wrap(err, "dfafile: write node count")
	}

	// Index 0 (trie.Empty) is implicit: it is counted but not written, and
	// ReadTrie seeds it before reading the first record.
	for _, n := range order[1:] {
		if err := writeNode(bw, n, index); err != nil {
			return errors.Wrap(err, "dfafile: write node")
		}
	}
	return bw.Flush()
}

func writeNode(w *bufio.Writer, n *trie.Node, index map[*trie.Node]uint32) error {
	if n.IsLabel {
		if err := w.WriteByte(tagLabel); err != nil {
			return err
		}
		if err := writeString(w, string(n.Key)); err != nil {
			return err
		}
		if err := writeValue(w, n.Value); err != nil {
			return err
		}
		return writeUint32(w, index[n.Next])
	}

	if err := w.WriteByte(tagBranch); err != nil {
		return err
	}
	if err := w.WriteByte(byte(n.Accept)); err != nil {
		return err
	}
	for b := 0; b < 256; b++ {
		child := n.Children[trie.Token(b)]
		var idx uint32
		if child != nil {
			idx = index[child]
		}
		if err := writeUint32(w, idx); err != nil {
			return err
		}
	}
	return nil
}

func writeValue(w *bufio.Writer, v any) error {
	switch x := v.(type) {
	case nil:
		return w.WriteByte(valueNil)
	case bool:
		if err := w.WriteByte(valueBool); err != nil {
			return err
		}
		b := byte(0)
		if x {
			b = 1
		}
		return w.WriteByte(b)
	case int:
		if err := w.WriteByte(valueInt); err != nil {
			return err
		}
		return writeUint32(w, uint32(int32(x)))
	case string:
		if err := w.WriteByte(valueString); err != nil {
			return err
		}
		return writeString(w, x)
	default:
		return errors.Errorf("dfafile: unsupported label value type %T", v)
	}
}

func writeString(w *bufio.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func writeUint32(w *bufio.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// topoOrder returns every reachable node in an order where every child
// precedes its parents (a post-order DFS), plus the index each node was
// assigned. trie.Empty is always assigned index 0, even if unreachable,
// so a zero table entry always means "no edge" on read-back.
func topoOrder(root *trie.Node) ([]*trie.Node, map[*trie.Node]uint32) {
	index := make(map[*trie.Node]uint32)
	order := []*trie.Node{trie.Empty}
	index[trie.Empty] = 0

	var visit func(n *trie.Node)
	visit = func(n *trie.Node) {
		if _, ok := index[n]; ok {
			return
		}
		if n.IsLabel {
			visit(n.Next)
		} else {
			for b := 0; b < 256; b++ {
				if child, ok := n.Children[trie.Token(b)]; ok {
					visit(child)
				}
			}
		}
		index[n] = uint32(len(order))
		order = append(order, n)
	}
	visit(root)
	return order, index
}

// ReadTrie deserializes a DFA previously written by WriteTrie, rebuilding
// it through in as an interned tree so identical subtrees are shared
// exactly as they were before the round trip.
func ReadTrie(r io.Reader, in *trie.Interner) (*trie.Node, error) {
	br := bufio.NewReader(r)

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, errors.Wrap(err, "dfafile: read magic")
	}
	if string(gotMagic[:]) != magic {
		return nil, errors.Errorf("dfafile: bad magic %q", gotMagic)
	}
	v, err := br.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "dfafile: read version")
	}
	if v != version {
		return nil, errors.Errorf("dfafile: unsupported version %d", v)
	}

	count, err := readUint32(br)
	if err != nil {
		return nil, errors.Wrap(err, "dfafile: read node count")
	}
	if count == 0 {
		return trie.Empty, nil
	}

	nodes := make([]*trie.Node, count)
	nodes[0] = trie.Empty
	for i := uint32(1); i < count; i++ {
		n, err := readNode(br, in, nodes[:i])
		if err != nil {
			return nil, errors.Wrapf(err, "dfafile: read node %d", i)
		}
		nodes[i] = n
	}
	return nodes[count-1], nil
}

func readNode(r *bufio.Reader, in *trie.Interner, prior []*trie.Node) (*trie.Node, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagLabel:
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		value, err := readValue(r)
		if err != nil {
			return nil, err
		}
		nextIdx, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		return in.Label(trie.LabelKey(key), value, prior[nextIdx]), nil
	case tagBranch:
		acceptByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		children := make(map[trie.Token]*trie.Node, 256)
		for b := 0; b < 256; b++ {
			idx, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			if idx != 0 {
				children[trie.Token(b)] = prior[idx]
			}
		}
		return in.Branch(children, trie.AcceptKind(acceptByte)), nil
	default:
		return nil, errors.Errorf("dfafile: unknown node tag %d", tag)
	}
}

func readValue(r *bufio.Reader) (any, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case valueNil:
		return nil, nil
	case valueBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case valueInt:
		v, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		return int(int32(v)), nil
	case valueString:
		return readString(r)
	default:
		return nil, errors.Errorf("dfafile: unknown value tag %d", tag)
	}
}

func readString(r *bufio.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readUint32(r *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
