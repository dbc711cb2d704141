package enc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/petrhosek/x86-decoder/internal/trie"
)

// Policy selects which subset of the core instruction table GetCoreRoot
// enumerates (spec 4.2).
type Policy struct {
	NaclMode      bool
	MemAccessOnly bool
	LockableOnly  bool
	GSAccessOnly  bool
}

// RexBits is the REX prefix state a core-root build is parameterized by.
type RexBits struct {
	HasREX  bool
	W, R, X, B int
}

func (r RexBits) rexSize(size Size) Size {
	if r.W != 0 {
		return Size64
	}
	return size
}

// PrefixedNode is one top-level (prefix-bytes, subtree) pair produced by
// GetCoreRoot; callers thread it through GetRexRoot.
type PrefixedNode struct {
	Bytes []byte
	Node  *trie.Node
}

type outArg struct {
	Expand bool
	Value  string
}

func simpleArg(v string) outArg { return outArg{Value: v} }
func expandOutArg(kind string) outArg { return outArg{Expand: true, Value: kind} }

// coreBuilder accumulates the top-level nodes of one GetCoreRoot call.
type coreBuilder struct {
	*Builder
	rex RexBits
	pol Policy

	top []PrefixedNode
}

func parseHexBytes(s string) []byte {
	fields := strings.Fields(s)
	out := make([]byte, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			panic(fmt.Sprintf("enc: bad hex byte %q", f))
		}
		out[i] = byte(v)
	}
	return out
}

// add is the workhorse of the instruction table: given an opcode byte
// sequence, a mnemonic, and its operand list, it builds the trie fragment
// for every permitted encoding and appends it to c.top.
func (c *coreBuilder) add(bytesHex, instrName string, args []Arg, modrmOpcode int, data16 bool) {
	if instrName == "cmp" {
		for i := range args {
			args[i].ReadOnly = true
		}
	}

	if c.pol.LockableOnly {
		if !lockWhitelist[instrName] {
			return
		}
		switch args[0].Kind {
		case KindRM, KindMem:
		default:
			return
		}
	}

	bytes := strings.Fields(bytesHex)

	if c.pol.NaclMode {
		if c.pol.GSAccessOnly && ((instrName != "mov" && instrName != "cmp") || data16) {
			return
		}
		if data16 && (bytes[0] == "f2" || bytes[0] == "f3") {
			return
		}
		if data16 {
			switch instrName {
			case "xadd", "cmpxchg", "shld", "shrd", "bsf", "bsr", "jmp":
				return
			}
		}
	}

	immediateSize := 0
	var rmSize Size
	rmSet := false
	var rmAttrs *OperandAttrs
	rmAllowReg := !c.pol.MemAccessOnly
	rmAllowMem := true
	var regSize Size
	regSet := false
	var regAttrs *OperandAttrs
	var outArgs []outArg
	var labels []Label
	memAccess := false

	if zeroExtendWhitelist[instrName] && len(args) > 0 {
		args = append([]Arg(nil), args...)
		args[0].CanZeroExtend = true
	}

	for _, a := range args {
		switch a.Kind {
		case KindImm, KindImm8:
			immediateSize += int(a.Size)
			outArgs = append(outArgs, simpleArg(fmt.Sprintf("VALUE%d", a.Size)))
		case KindRM:
			if rmSet {
				panic("enc: duplicate rm operand")
			}
			rmSize, rmSet = a.Size, true
			rmAttrs = makeInternedAttrs(a.ReadOnly, a.CanZeroExtend)
			outArgs = append(outArgs, expandOutArg("rm"))
			memAccess = true
		case KindLeaMem:
			if rmSet {
				panic("enc: duplicate rm operand")
			}
			rmSize, rmSet = SizeLeaMem, true
			rmAllowReg = false
			outArgs = append(outArgs, expandOutArg("rm"))
		case KindMem:
			if rmSet {
				panic("enc: duplicate rm operand")
			}
			rmSize, rmSet = a.Size, true
			rmAllowReg = false
			outArgs = append(outArgs, expandOutArg("rm"))
			memAccess = true
		case KindReg2:
			if rmSet {
				panic("enc: duplicate rm operand")
			}
			rmSize, rmSet = a.Size, true
			rmAttrs = makeInternedAttrs(a.ReadOnly, a.CanZeroExtend)
			rmAllowMem = false
			outArgs = append(outArgs, expandOutArg("rm"))
		case KindReg:
			if regSet {
				panic("enc: duplicate reg operand")
			}
			regSize, regSet = a.Size, true
			regAttrs = makeInternedAttrs(a.ReadOnly, a.CanZeroExtend)
			outArgs = append(outArgs, expandOutArg("reg"))
		case KindAddr:
			// Absolute-displacement addressing is not permitted in 64-bit
			// NaCl mode; see the "addr kind" open question.
			return
		case KindJumpDest:
			if immediateSize != 0 {
				panic("enc: jump_dest combined with another immediate")
			}
			immediateSize = int(a.Size)
			outArgs = append(outArgs, simpleArg("JUMP_DEST"))
			labels = append(labels, Label{Key: trie.RelativeJump, Value: int(a.Size) / 8})
		case KindAx:
			outArgs = append(outArgs, simpleArg(regsBySize(c.rex.HasREX, a.Size)[0]))
		case KindOne:
			outArgs = append(outArgs, simpleArg("1"))
		case KindCl:
			outArgs = append(outArgs, simpleArg("cl"))
		case KindSt:
			outArgs = append(outArgs, simpleArg("st"))
		case KindFixReg:
			regName := regsBySize(c.rex.HasREX, a.Size)[a.RegNum+(c.rex.B<<3)]
			if !a.ReadOnly && naclUnwritableReg[regName] {
				return
			}
			outArgs = append(outArgs, simpleArg(regName))
		default:
			panic("enc: unknown arg kind")
		}
	}

	if c.pol.MemAccessOnly && !memAccess {
		return
	}

	labels = append(labels, Label{Key: trie.Args, Value: outArgs}, Label{Key: trie.InstrName, Value: instrName})

	var node *trie.Node
	switch {
	case rmSet && regSet:
		if modrmOpcode != -1 {
			panic("enc: modrm_opcode given with both reg and rm operands")
		}
		node = c.modrmNode(c.rex.HasREX, c.rex.R, c.rex.X, c.rex.B, regSize, regAttrs,
			rmSize, rmAttrs, rmAllowReg, rmAllowMem, c.immediateNode(immediateSize))
		if !(rmAllowReg && rmAllowMem) {
			node = pushLabels(c.In, labels, node)
			labels = nil
		}
	case rmSet && !regSet:
		if modrmOpcode == -1 {
			panic("enc: rm operand without modrm_opcode")
		}
		node = c.modrmSingleArg(c.rex.HasREX, c.rex.X, c.rex.B, rmSize, rmAttrs,
			rmAllowReg, rmAllowMem, modrmOpcode, c.immediateNode(immediateSize))
		node = pushLabels(c.In, labels, node)
		labels = nil
	case !rmSet && !regSet:
		if modrmOpcode != -1 {
			panic("enc: modrm_opcode given with no ModR/M operands")
		}
		node = c.immediateNode(immediateSize)
	default:
		panic("enc: reg operand without rm operand")
	}

	if data16 {
		bytes = append([]string{"66"}, bytes...)
	}
	c.top = append(c.top, PrefixedNode{
		Bytes: parseHexBytes(strings.Join(bytes, " ")),
		Node:  applyLabels(c.In, labels, node),
	})
}

func byteHex(b int) string { return fmt.Sprintf("%02x", b) }

// addLW emits the data16 (16-bit) and plain (32-bit, or 64-bit under
// REX.W) forms of an instruction (spec 4.2.5).
func (c *coreBuilder) addLW(opcode int, instr string, format []Arg, modrmOpcode int) {
	c.add(byteHex(opcode), instr, substSize(format, c.rex.rexSize(Size16)), modrmOpcode, true)
	c.add(byteHex(opcode), instr, substSize(format, c.rex.rexSize(Size32)), modrmOpcode, false)
}

// addLW2 is addLW but the opcode is already a full hex string (used for
// multi-byte opcodes behind the 0f escape byte, e.g. "0f a3").
func (c *coreBuilder) addLW2(opcodeHex string, instr string, format []Arg, modrmOpcode int) {
	c.add(opcodeHex, instr, substSize(format, c.rex.rexSize(Size16)), modrmOpcode, true)
	c.add(opcodeHex, instr, substSize(format, c.rex.rexSize(Size32)), modrmOpcode, false)
}

// addLWPushPop is addLW, except the non-data16 form is always 64-bit:
// push/pop never operate on a 32-bit operand in 64-bit mode.
func (c *coreBuilder) addLWPushPop(opcode int, instr string, format []Arg, modrmOpcode int) {
	c.add(byteHex(opcode), instr, substSize(format, c.rex.rexSize(Size16)), modrmOpcode, true)
	c.add(byteHex(opcode), instr, substSize(format, Size64), modrmOpcode, false)
}

// addPair emits an 8-bit form at opcode and an addLW pair at opcode+1.
func (c *coreBuilder) addPair(opcode int, instr string, format []Arg, modrmOpcode int) {
	c.add(byteHex(opcode), instr, substSize(format, Size8), modrmOpcode, false)
	c.addLW(opcode+1, instr, format, modrmOpcode)
}

// addPair2 is addPair with a leading opcode byte (the 0f escape).
func (c *coreBuilder) addPair2(prefix string, opcode int, instr string, format []Arg, modrmOpcode int) {
	c.add(prefix+" "+byteHex(opcode), instr, substSize(format, Size8), modrmOpcode, false)
	c.addLW2(prefix+" "+byteHex(opcode+1), instr, format, modrmOpcode)
}

// formArg converts one element of an AddForm operand template (spec's AMD-manual
// mnemonic letters: V/W/P/Q/M/G/R/U plus a size suffix) into an Arg.
func formArg(token string, rexW int) Arg {
	switch token {
	case "Ib":
		return Imm8()
	case "Gd":
		return Reg(Size32)
	case "Gq":
		return Reg(Size64)
	case "Ed":
		return RM(Size32)
	case "Eq":
		return RM(Size64)
	case "Md":
		return Mem(Size32)
	case "Mq":
		return Mem(Size64)
	case "Mdq":
		return Mem(SizeXMM)
	case "Pd", "Pq":
		return Reg(SizeMMX)
	case "Vd":
		return Reg(SizeXMM32)
	case "Nq":
		return Reg2(SizeMMX)
	case "Qd":
		return RM(SizeMMX32)
	case "Qq":
		return RM(SizeMMX64)
	}
	if len(token) >= 2 {
		pos, size := token[:1], token[1:]
		if size == "d/q" {
			s := Size32
			if rexW != 0 {
				s = Size64
			}
			switch pos {
			case "E":
				return RM(s)
			case "G":
				return Reg(s)
			default:
				panic("enc: bad d/q form kind")
			}
		}
		var sz Size
		switch size {
		case "dq", "pd", "ps":
			sz = SizeXMM
		case "sd":
			sz = SizeXMM64
		case "ss":
			sz = SizeXMM32
		case "q":
			sz = SizeXMM64
		default:
			panic("enc: unknown form size suffix " + size)
		}
		switch pos {
		case "R", "U":
			return Reg2(sz)
		case "V":
			return Reg(sz)
		case "W":
			return RM(sz)
		}
	}
	panic("enc: unknown form token " + token)
}

// addForm emits an instruction whose operand template is given in the AMD
// manual's mnemonic-letter notation (spec 4.2, AddForm).
func (c *coreBuilder) addForm(bytesHex, instrName, format string, modrmOpcode int) {
	tokens := strings.Fields(format)
	args := make([]Arg, len(tokens))
	for i, t := range tokens {
		args[i] = formArg(t, c.rex.W)
	}
	c.add(bytesHex, instrName, args, modrmOpcode, false)
}

// addSSEMMXPair emits the MMX (Pq Qq) and, under the 66 prefix, the SSE
// (Vdq Wdq) forms of the same opcode.
func (c *coreBuilder) addSSEMMXPair(opcodeHex, name string) {
	c.addForm(opcodeHex, name, "Pq Qq", -1)
	c.addForm("66 "+opcodeHex, name, "Vdq Wdq", -1)
}

var x87Formats = map[string][]Arg{
	"st reg": {St(), Reg2(SizeX87)},
	"reg st": {Reg2(SizeX87), St()},
	"reg":    {Reg2(SizeX87)},
}

func (c *coreBuilder) addFPMem(bytesHex, instrName string, modrmOpcode int, size Size) {
	c.add(bytesHex, instrName, []Arg{Mem(size)}, modrmOpcode, false)
}

func (c *coreBuilder) addFPReg(bytesHex, instrName string, modrmOpcode int, format string) {
	c.add(bytesHex, instrName, x87Formats[format], modrmOpcode, false)
}

func (c *coreBuilder) addFPRM(bytesHex, instrName string, modrmOpcode int, format string, size Size) {
	c.addFPMem(bytesHex, instrName, modrmOpcode, size)
	c.addFPReg(bytesHex, instrName, modrmOpcode, format)
}

// add3DNow builds the small opcode-in-immediate-position trie the 3DNow!
// family uses: "0f 0f" ModR/M <final-byte-as-secondary-opcode> (spec 4.2.6).
func (c *coreBuilder) add3DNow(instrs map[int]string) {
	if c.pol.LockableOnly {
		return
	}
	if c.pol.NaclMode && c.pol.GSAccessOnly {
		return
	}
	children := make(map[trie.Token]*trie.Node, len(instrs))
	for opcode, name := range instrs {
		children[trie.Token(opcode)] = c.In.Label(trie.InstrName, name, trie.AcceptNode)
	}
	tail := c.In.Branch(children, trie.NotAccept)
	rmAllowReg := !c.pol.MemAccessOnly
	node := c.In.Label(trie.Args, []outArg{expandOutArg("reg"), expandOutArg("rm")},
		c.modrmNode(c.rex.HasREX, c.rex.R, c.rex.X, c.rex.B,
			SizeMMX, makeInternedAttrs(false, false),
			SizeMMX64, makeInternedAttrs(false, false),
			rmAllowReg, true, tail))
	c.top = append(c.top, PrefixedNode{Bytes: parseHexBytes("0f 0f"), Node: node})
}

// GetCoreRoot enumerates every permitted encoding reachable after the
// optional legacy prefixes and REX byte, for one fixed REX/policy
// combination (spec 4.2). The catalog below is a representative cross
// section of the AMD64 manual: every operand-size-dispatch helper
// (addLW/addLWPushPop/addPair/addForm), ModR/M-with-opcode-extension form,
// and the 3DNow! special case are exercised, grounded on generator.py's
// instruction table.
func GetCoreRoot(b *Builder, rex RexBits, pol Policy) []PrefixedNode {
	c := &coreBuilder{Builder: b, rex: rex, pol: pol}

	// Arithmetic group.
	for arithOpcode, instr := range []string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"} {
		formats := [][]Arg{{RM(0), Reg(0)}, {Reg(0), RM(0)}, {Ax(0), Imm(0)}}
		for formatNum, format := range formats {
			opcode := catBits([]int{arithOpcode, formatNum, 0}, []int{5, 2, 1})
			c.addPair(opcode, instr, format, -1)
		}
		c.addPair(0x80, instr, []Arg{RM(0), Imm(0)}, arithOpcode)
		c.addLW(0x83, instr, []Arg{RM(0), Imm8()}, arithOpcode)
	}

	// Group 2: shift instructions.
	shiftGroup := []struct {
		name string
		ext  int
	}{{"rol", 0}, {"ror", 1}, {"rcl", 2}, {"rcr", 3}, {"shl", 4}, {"shr", 5}, {"sar", 7}}
	for _, s := range shiftGroup {
		c.addPair(0xc0, s.name, []Arg{RM(0), Imm8()}, s.ext)
		c.addPair(0xd0, s.name, []Arg{RM(0), One()}, s.ext)
		c.addPair(0xd2, s.name, []Arg{RM(0), ClReg()}, s.ext)
	}

	for regNum := 0; regNum < 8; regNum++ {
		c.addLWPushPop(0x50+regNum, "push", []Arg{FixRegArgReadOnly(regNum)}, -1)
		c.addLWPushPop(0x58+regNum, "pop", []Arg{FixRegArg(regNum)}, -1)
	}

	c.add("68", "push", []Arg{Imm(Size32)}, -1, false)
	c.add("6a", "push", []Arg{Imm(Size8)}, -1, false)

	c.addLW(0x69, "imul", []Arg{Reg(0), RM(0), Imm(0)}, -1)
	c.addLW(0x6b, "imul", []Arg{Reg(0), RM(0), Imm8()}, -1)

	for condNum, condName := range condCodes {
		c.add(byteHex(0x70+condNum), "j"+condName, []Arg{JumpDest(Size8)}, -1, false)
	}

	c.addPair(0x84, "test", []Arg{RM(0), Reg(0)}, -1)
	c.addPair(0x86, "xchg", []Arg{RM(0), Reg(0)}, -1)
	c.addLW(0x8d, "lea", []Arg{Reg(0), LeaMem()}, -1)
	c.addLWPushPop(0x8f, "pop", []Arg{RM(0)}, 0)

	if !rex.HasREX {
		c.add("90", "nop", nil, -1, false)
		c.add("66 90", "xchg ax, ax", nil, -1, false)
		c.add("f3 90", "pause", nil, -1, false)
	}
	for regNum := 1; regNum < 8; regNum++ {
		c.addLW(0x90+regNum, "xchg", []Arg{FixRegArg(regNum), Ax(0)}, -1)
	}

	if rex.W != 0 {
		c.add("98", "cdqe", nil, -1, false)
		c.add("99", "cqo", nil, -1, false)
	} else {
		c.add("98", "cwde", nil, -1, false)
		c.add("66 98", "cbw", nil, -1, false)
		c.add("99", "cdq", nil, -1, false)
		c.add("66 99", "cwd", nil, -1, false)
	}
	if !rex.HasREX {
		c.add("9b", "fwait", nil, -1, false)
	}
	c.add("f4", "hlt", nil, -1, false)

	if !pol.NaclMode {
		c.add("9c", "pushf", nil, -1, false)
		c.add("9d", "popf", nil, -1, false)
		c.add("c2", "ret", []Arg{Imm(Size16)}, -1, false)
		c.add("c3", "ret", nil, -1, false)
		c.add("cc", "int3", nil, -1, false)
		c.add("cd", "int", []Arg{Imm8()}, -1, false)
		c.add("cf", "iret", nil, -1, false)
		c.add("fa", "cli", nil, -1, false)
		c.add("fb", "sti", nil, -1, false)
	}

	c.add("e8", "call", []Arg{JumpDest(Size32)}, -1, false)
	c.addPair(0xa8, "test", []Arg{Ax(0), Imm(0)}, -1)

	if !pol.NaclMode {
		c.add("e0", "loopne", []Arg{JumpDest(Size8)}, -1, false)
		c.add("e1", "loope", []Arg{JumpDest(Size8)}, -1, false)
		c.add("e2", "loop", []Arg{JumpDest(Size8)}, -1, false)
		if !rex.HasREX {
			c.add("e3", "jrcxz", []Arg{JumpDest(Size8)}, -1, false)
			c.add("67 e3", "jecxz", []Arg{JumpDest(Size8)}, -1, false)
		}
	}
	c.add("e9", "jmp", []Arg{JumpDest(Size32)}, -1, false)
	c.add("eb", "jmp", []Arg{JumpDest(Size8)}, -1, false)

	c.add("f5", "cmc", nil, -1, false)
	c.add("f8", "clc", nil, -1, false)
	c.add("f9", "stc", nil, -1, false)
	c.add("fc", "cld", nil, -1, false)
	c.add("fd", "std", nil, -1, false)

	// Group 3.
	c.addPair(0xf6, "test", []Arg{RM(0), Imm(0)}, 0)
	group3 := []struct {
		name string
		ext  int
	}{{"not", 2}, {"neg", 3}, {"mul", 4}, {"imul", 5}, {"div", 6}, {"idiv", 7}}
	for _, g := range group3 {
		c.addPair(0xf6, g.name, []Arg{RM(0)}, g.ext)
	}

	// Group 4/5.
	c.addPair(0xfe, "inc", []Arg{RM(0)}, 0)
	c.addPair(0xfe, "dec", []Arg{RM(0)}, 1)
	c.addLWPushPop(0xff, "push", []Arg{RM(0)}, 6)
	if !pol.NaclMode {
		c.add("ff", "call", []Arg{RM(Size64)}, 2, false)
		c.add("ff", "jmp", []Arg{RM(Size64)}, 4, false)
	}

	c.addPair(0x88, "mov", []Arg{RM(0), {Kind: KindReg, ReadOnly: true}}, -1)
	c.addPair(0x8a, "mov", []Arg{Reg(0), RM(0)}, -1)
	c.addPair(0xc6, "mov", []Arg{RM(0), Imm(0)}, 0)
	c.addPair(0xa0, "mov", []Arg{Ax(0), AddrArg()}, -1)
	c.addPair(0xa2, "mov", []Arg{AddrArg(), Ax(0)}, -1)
	for regNum := 0; regNum < 8; regNum++ {
		c.add(byteHex(0xb0+regNum), "mov", []Arg{{Kind: KindFixReg, RegNum: regNum, Size: Size8}, Imm(Size8)}, -1, false)
		c.addLW(0xb8+regNum, "mov", []Arg{FixRegArg(regNum), ImmMovabs()}, -1)
	}

	// Two-byte opcodes.
	if !pol.NaclMode {
		c.add("0f 05", "syscall", nil, -1, false)
		c.add("0f 0b", "ud2", nil, -1, false)
	}
	c.add("0f 0e", "femms", nil, -1, false)
	c.add("0f 0d", "prefetch", []Arg{Mem(SizePrefetchMem)}, 0, false)
	c.add("0f 0d", "prefetchw", []Arg{Mem(SizePrefetchMem)}, 1, false)

	c.add("0f 10", "movups", []Arg{Reg(SizeXMM), RM(SizeXMM)}, -1, false)
	c.add("0f 11", "movups", []Arg{RM(SizeXMM), Reg(SizeXMM)}, -1, false)
	c.add("f3 0f 10", "movss", []Arg{Reg(SizeXMM), RM(SizeXMM32)}, -1, false)
	c.add("f3 0f 11", "movss", []Arg{RM(SizeXMM32), Reg(SizeXMM)}, -1, false)
	c.add("66 0f 10", "movupd", []Arg{Reg(SizeXMM), RM(SizeXMM)}, -1, false)
	c.add("66 0f 11", "movupd", []Arg{RM(SizeXMM), Reg(SizeXMM)}, -1, false)
	c.add("f2 0f 10", "movsd", []Arg{Reg(SizeXMM), RM(SizeXMM64)}, -1, false)
	c.add("f2 0f 11", "movsd", []Arg{RM(SizeXMM64), Reg(SizeXMM)}, -1, false)

	c.addForm("0f 28", "movaps", "Vps Wps", -1)
	c.addForm("0f 29", "movaps", "Wps Vps", -1)
	c.addForm("66 0f 28", "movapd", "Vpd Wpd", -1)
	c.addForm("66 0f 29", "movapd", "Wpd Vpd", -1)
	c.addForm("f3 0f 2a", "cvtsi2ss", "Vss Ed/q", -1)
	c.addForm("f2 0f 2a", "cvtsi2sd", "Vsd Ed/q", -1)
	c.addForm("f3 0f 2c", "cvttss2si", "Gd/q Wss", -1)
	c.addForm("f2 0f 2c", "cvttsd2si", "Gd/q Wsd", -1)
	c.addForm("0f 2e", "ucomiss", "Vss Wss", -1)
	c.addForm("66 0f 2e", "ucomisd", "Vsd Wsd", -1)

	c.add("0f 31", "rdtsc", nil, -1, false)

	c.addForm("0f 51", "sqrtps", "Vps Wps", -1)
	c.addForm("0f 54", "andps", "Vps Wps", -1)
	c.addForm("0f 55", "andnps", "Vps Wps", -1)
	c.addForm("0f 56", "orps", "Vps Wps", -1)
	c.addForm("0f 57", "xorps", "Vps Wps", -1)
	c.addSSEMMXPair("0f 58", "addps")
	c.addSSEMMXPair("0f 59", "mulps")
	c.addSSEMMXPair("0f 5c", "subps")
	c.addSSEMMXPair("0f 5e", "divps")

	c.addPair2("0f", 0xa3, "bt", []Arg{RM(0), Reg(0)}, -1)
	c.addPair2("0f", 0xab, "bts", []Arg{RM(0), Reg(0)}, -1)
	c.addPair2("0f", 0xb3, "btr", []Arg{RM(0), Reg(0)}, -1)
	c.addPair2("0f", 0xbb, "btc", []Arg{RM(0), Reg(0)}, -1)
	c.addLW2("0f ba", "bt", []Arg{RM(0), Imm8()}, 4)
	c.addLW2("0f ba", "bts", []Arg{RM(0), Imm8()}, 5)
	c.addLW2("0f ba", "btr", []Arg{RM(0), Imm8()}, 6)
	c.addLW2("0f ba", "btc", []Arg{RM(0), Imm8()}, 7)
	c.addLW2("0f bc", "bsf", []Arg{Reg(0), RM(0)}, -1)
	c.addLW2("0f bd", "bsr", []Arg{Reg(0), RM(0)}, -1)

	if rex.W != 0 {
		c.add("0f b6", "movzx", []Arg{Reg(Size64), RM(Size8)}, -1, false)
		c.add("0f b7", "movzx", []Arg{Reg(Size64), RM(Size16)}, -1, false)
		c.add("0f be", "movsx", []Arg{Reg(Size64), RM(Size8)}, -1, false)
		c.add("0f bf", "movsx", []Arg{Reg(Size64), RM(Size16)}, -1, false)
	} else {
		c.add("0f b6", "movzx", []Arg{Reg(Size32), RM(Size8)}, -1, false)
		c.add("0f b6", "movzx", []Arg{Reg(Size16), RM(Size8)}, -1, true)
		c.add("0f b7", "movzx", []Arg{Reg(Size32), RM(Size16)}, -1, false)
		c.add("0f be", "movsx", []Arg{Reg(Size32), RM(Size8)}, -1, false)
		c.add("0f be", "movsx", []Arg{Reg(Size16), RM(Size8)}, -1, true)
		c.add("0f bf", "movsx", []Arg{Reg(Size32), RM(Size16)}, -1, false)
	}
	if rex.W != 0 {
		c.add("63", "movsxd", []Arg{Reg(Size64), RM(Size32)}, -1, false)
	}

	c.addPair2("0f", 0xb0, "cmpxchg", []Arg{RM(0), Reg(0)}, -1)
	c.addPair2("0f", 0xc0, "xadd", []Arg{RM(0), Reg(0)}, -1)
	if rex.W != 0 {
		c.add("0f c7", "cmpxchg16b", []Arg{Mem(Size128)}, 1, false)
	} else {
		c.add("0f c7", "cmpxchg8b", []Arg{Mem(Size64)}, 1, false)
	}

	// x87.
	c.addFPRM("d8", "fadd", 0, "st reg", Size32)
	c.addFPRM("d8", "fmul", 1, "st reg", Size32)
	c.addFPRM("d8", "fsub", 4, "st reg", Size32)
	c.addFPRM("d8", "fsubr", 5, "st reg", Size32)
	c.addFPRM("d8", "fdiv", 6, "st reg", Size32)
	c.addFPRM("d8", "fdivr", 7, "st reg", Size32)
	c.addFPMem("d9", "fld", 0, Size32)
	c.addFPMem("d9", "fst", 2, Size32)
	c.addFPMem("d9", "fstp", 3, Size32)
	c.addFPMem("d9", "fldcw", 5, Size16)
	c.addFPMem("d9", "fnstcw", 7, Size16)
	c.addFPReg("d9", "fld", 0, "reg")
	c.addFPReg("d9", "fxch", 1, "reg")
	c.addFPMem("da", "fiadd", 0, Size32)
	c.addFPMem("da", "fimul", 1, Size32)
	c.addFPMem("dc", "fadd", 0, Size64)
	c.addFPMem("dc", "fmul", 1, Size64)
	c.addFPMem("dc", "fsub", 4, Size64)
	c.addFPMem("dd", "fld", 0, Size64)
	c.addFPMem("dd", "fst", 2, Size64)
	c.addFPMem("dd", "fstp", 3, Size64)

	c.add3DNow(map[int]string{
		0x0c: "pi2fw", 0x0d: "pi2fd", 0x1c: "pf2iw", 0x1d: "pf2id",
		0x90: "pfcmpge", 0x94: "pfmin", 0x96: "pfrcp", 0x97: "pfrsqrt",
		0x9a: "pfsub", 0x9e: "pfadd", 0xa0: "pfcmpgt", 0xa4: "pfmax",
		0xaa: "pfsubr", 0xae: "pfacc", 0xbf: "pavgusb",
	})

	return c.top
}
