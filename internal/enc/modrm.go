package enc

import (
	"strings"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

// formatMemAccess renders a memory operand, e.g. "DWORD PTR [rax+rcx*4+VALUE32]".
func formatMemAccess(size Size, parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return memSizes[size] + "[" + strings.Join(kept, "+") + "]"
}

func byteNode(in *trie.Interner, b byte, next *trie.Node) *trie.Node {
	return in.Branch(map[trie.Token]*trie.Node{trie.Token(b): next}, trie.NotAccept)
}

func wildcards(in *trie.Interner, n int, tail *trie.Node) *trie.Node {
	toks := make([]trie.Token, n)
	for i := range toks {
		toks[i] = trie.Wildcard
	}
	return trie.TrieOfSequence(in, toks, tail)
}

// sib expands the SIB byte (spec 4.2.2): for every (index, base) pair
// consistent with the addressing mode, compute the rendered memory operand
// and the zero-extend/base-register constraints the NaCl policy demands.
func (b *Builder) sib(rexX, rexB, mod int, rmSize Size, dispSize int, dispStr string, tail *trie.Node) *trie.Node {
	key := sibKey{rexX: rexX, rexB: rexB, mod: mod, rmSize: rmSize, dispSize: dispSize, dispStr: dispStr, tail: tail}
	if n, ok := b.sibCache[key]; ok {
		return n
	}

	var nodes []*trie.Node
	for _, index := range getExtendedRegs(rexX, regs64[:]) {
		indexReg, indexName := index.Reg, index.Name
		if indexReg == 4 && rexX == 0 {
			// %esp is not accepted in the position '(reg, %esp)'; in this
			// context register 4 is %riz, an always-zero value.
			indexName = "riz"
		}
		for scale := 0; scale < 4; scale++ {
			for _, base := range getExtendedRegs(rexB, regs64[:]) {
				baseReg, baseName := base.Reg, base.Name
				var labels []Label
				var indexResult string
				if indexName == "riz" && baseReg == 4 && scale == 0 {
					indexResult = ""
				} else {
					indexResult = indexName + "*" + []string{"1", "2", "4", "8"}[scale]
					if !rmSize.unsandboxedMem() {
						labels = append(labels, Label{Key: trie.RequiresZeroExtend, Value: indexReg + (rexX << 3)})
					}
				}
				extra, dispSize2 := "", 0
				if baseReg == 5 && mod == 0 {
					baseName = ""
					extra = "VALUE32"
					dispSize2 = 4
				}
				// NaCl constraint: every sandboxed memory base must be
				// r15/rsp/rbp.
				if !rmSize.unsandboxedMem() && !naclBaseRegs[baseName] {
					continue
				}
				parts := []string{baseName, indexResult, extra, dispStr}
				var desc string
				if indexName == "riz" && baseReg == 5 && mod == 0 && scale == 0 {
					desc = memSizes[rmSize] + "ds:VALUE32"
				} else {
					desc = formatMemAccess(rmSize, parts)
				}
				sibByte := byte((scale << 6) | (indexReg << 3) | baseReg)
				labels = append(labels,
					Label{Key: trie.TestKeep, Value: indexReg == 1 && scale == 0 && dispSize == 1},
					Label{Key: trie.RmArg, Value: desc},
				)
				node := byteNode(b.In, sibByte,
					applyLabels(b.In, labels, wildcards(b.In, dispSize+dispSize2, tail)))
				nodes = append(nodes, node)
			}
		}
	}
	result := trie.Merge(b.In, nodes, trie.NoMerge)
	b.sibCache[key] = result
	return result
}

// modrmMem expands the memory forms of the ModR/M r/m field (spec 4.2.1):
// RIP-relative, base+disp, and the SIB escape.
func (b *Builder) modrmMem(rexX, rexB int, rmSize Size, tail *trie.Node) []modrmAlt {
	key := modrmMemKey{rexX: rexX, rexB: rexB, rmSize: rmSize, tail: tail}
	if alts, ok := b.modrmMemCache[key]; ok {
		return alts
	}

	var got []modrmAlt
	ripNode := wildcards(b.In, 4, b.In.Label(trie.RmArg, memSizes[rmSize]+"[rip+VALUE32]", tail))
	got = append(got, modrmAlt{Mod: 0, Reg2: 5, Node: ripNode})

	type modCase struct {
		mod      int
		dispSize int
		dispStr  string
	}
	for _, mc := range []modCase{{0, 0, ""}, {1, 1, "VALUE8"}, {2, 4, "VALUE32"}} {
		for _, base := range getExtendedRegs(rexB, regs64[:]) {
			reg2, name2 := base.Reg, base.Name
			if !rmSize.unsandboxedMem() && !naclBaseRegs[name2] {
				continue
			}
			if reg2 == 4 {
				// %esp is not accepted here; 4 escapes to the SIB byte.
				continue
			}
			if reg2 == 5 && mc.mod == 0 {
				continue
			}
			node := wildcards(b.In, mc.dispSize,
				b.In.Label(trie.RmArg, formatMemAccess(rmSize, []string{name2, mc.dispStr}), tail))
			got = append(got, modrmAlt{Mod: mc.mod, Reg2: reg2, Node: node})
		}
		got = append(got, modrmAlt{Mod: mc.mod, Reg2: 4, Node: b.sib(rexX, rexB, mc.mod, rmSize, mc.dispSize, mc.dispStr, tail)})
	}
	b.modrmMemCache[key] = got
	return got
}

// modrmReg expands the register form of the ModR/M r/m field (mod=3).
func (b *Builder) modrmReg(hasREX bool, rexB int, rmSize Size, rmAttrs *OperandAttrs, tail *trie.Node) []modrmAlt {
	key := modrmRegKey{hasREX: hasREX, rexB: rexB, rmSize: rmSize, attrs: rmAttrs, tail: tail}
	if alts, ok := b.modrmRegCache[key]; ok {
		return alts
	}
	var got []modrmAlt
	for _, r := range getOperandRegs(rmAttrs, rexB, regsBySize(hasREX, rmSize)) {
		node := applyLabels(b.In, r.Labels,
			b.In.Label(trie.TestKeep, r.Reg == 2 || len(r.Labels) != 0,
				b.In.Label(trie.RmArg, r.Name, tail)))
		got = append(got, modrmAlt{Mod: 3, Reg2: r.Reg, Node: node})
	}
	b.modrmRegCache[key] = got
	return got
}

// modrm1 is the r/m half of ModR/M expansion: memory alternatives first
// (if allowed), then register alternatives (if allowed).
func (b *Builder) modrm1(hasREX bool, rexX, rexB int, rmSize Size, rmAttrs *OperandAttrs, allowReg, allowMem bool, tail *trie.Node) []modrmAlt {
	var got []modrmAlt
	if allowMem {
		got = append(got, b.modrmMem(rexX, rexB, rmSize, tail)...)
	}
	if allowReg {
		got = append(got, b.modrmReg(hasREX, rexB, rmSize, rmAttrs, tail)...)
	}
	return got
}

// modrm expands a full ModR/M byte: the reg field (register operand) times
// the r/m field (register-or-memory operand).
func (b *Builder) modrm(hasREX bool, rexR, rexX, rexB int, regSize Size, regAttrs *OperandAttrs,
	rmSize Size, rmAttrs *OperandAttrs, allowReg, allowMem bool, tail *trie.Node) []*trie.Node {
	var out []*trie.Node
	for _, r := range getOperandRegs(regAttrs, rexR, regsBySize(hasREX, regSize)) {
		for _, alt := range b.modrm1(hasREX, rexX, rexB, rmSize, rmAttrs, allowReg, allowMem, tail) {
			modrmByte := byte((alt.Mod << 6) | (r.Reg << 3) | alt.Reg2)
			node := applyLabels(b.In, r.Labels,
				b.In.Label(trie.TestKeep, r.Reg == 3 || len(r.Labels) != 0,
					b.In.Label(trie.RegArg, r.Name, alt.Node)))
			out = append(out, byteNode(b.In, modrmByte, node))
		}
	}
	return out
}

// modrmNode is modrm merged into a single interned node (Add calls this
// when both reg and r/m operands come from the ModR/M byte).
func (b *Builder) modrmNode(hasREX bool, rexR, rexX, rexB int, regSize Size, regAttrs *OperandAttrs,
	rmSize Size, rmAttrs *OperandAttrs, allowReg, allowMem bool, tail *trie.Node) *trie.Node {
	return trie.Merge(b.In, b.modrm(hasREX, rexR, rexX, rexB, regSize, regAttrs, rmSize, rmAttrs, allowReg, allowMem, tail), trie.NoMerge)
}

// modrmSingleArg is modrmNode for opcode-extension forms: the reg field is
// fixed to the given opcode extension, so only r/m alternatives vary
// (spec 4.2.4).
func (b *Builder) modrmSingleArg(hasREX bool, rexX, rexB int, rmSize Size, rmAttrs *OperandAttrs,
	allowReg, allowMem bool, opcode int, tail *trie.Node) *trie.Node {
	key := modrmSingleArgKey{hasREX: hasREX, rexX: rexX, rexB: rexB, rmSize: rmSize, attrs: rmAttrs, allowReg: allowReg, allowMem: allowMem, opcode: opcode, tail: tail}
	if n, ok := b.modrmSingleArgCache[key]; ok {
		return n
	}
	var nodes []*trie.Node
	for _, alt := range b.modrm1(hasREX, rexX, rexB, rmSize, rmAttrs, allowReg, allowMem, tail) {
		modrmByte := byte((alt.Mod << 6) | (opcode << 3) | alt.Reg2)
		nodes = append(nodes, byteNode(b.In, modrmByte, alt.Node))
	}
	result := trie.Merge(b.In, nodes, trie.NoMerge)
	b.modrmSingleArgCache[key] = result
	return result
}

// pushLabels pushes labels below a ModR/M byte's children rather than
// above them. Used when the instruction name or operand format depends on
// the decoded ModR/M contents (single-arg forms), so the labels must be
// applied after the ModR/M byte is consumed rather than before it.
func pushLabels(in *trie.Interner, labels []Label, node *trie.Node) *trie.Node {
	children := make(map[trie.Token]*trie.Node, len(node.Children))
	for key, value := range node.Children {
		children[key] = applyLabels(in, labels, value)
	}
	return in.Branch(children, node.Accept)
}

// immediateNode returns the (cached) trie fragment for an immediate of the
// given bit width: that many wildcard bytes, then accept.
func (b *Builder) immediateNode(bits int) *trie.Node {
	sz := Size(bits)
	if n, ok := b.immediateCache[sz]; ok {
		return n
	}
	n := wildcards(b.In, bits/8, trie.AcceptNode)
	b.immediateCache[sz] = n
	return n
}
