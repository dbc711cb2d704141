package enc

import "github.com/petrhosek/x86-decoder/internal/trie"

// Register tables, keyed by size, matching the AMD64 register files. Index
// 0-7 is the plain encoding; 8-15 requires REX.R/X/B to reach.
var (
	regs64 = [16]string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	regs32 = [16]string{
		"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
		"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d",
	}
	regs16 = [16]string{
		"ax", "cx", "dx", "bx", "sp", "bp", "si", "di",
		"r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w",
	}
	regsX87 = [8]string{"st(0)", "st(1)", "st(2)", "st(3)", "st(4)", "st(5)", "st(6)", "st(7)"}
	regsMMX = [8]string{"mm0", "mm1", "mm2", "mm3", "mm4", "mm5", "mm6", "mm7"}
	regsXMM = [16]string{
		"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
		"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15",
	}

	// regs8Original are the 8-bit registers reachable with no REX prefix:
	// four of them alias the high byte of a 16-bit register.
	regs8Original = [8]string{"al", "cl", "dl", "bl", "ah", "ch", "dh", "bh"}
	// regs8Extended are the 8-bit registers reachable with a REX prefix:
	// always the low byte of a larger register.
	regs8Extended = [16]string{
		"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
		"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b",
	}
)

// nacl_unwritable_reg: registers the NaCl policy never permits as a write
// destination (they hold the sandbox base and the managed stack/frame
// pointers), across their 64/32/16/8-bit spellings.
var naclUnwritableReg = map[string]bool{
	"r15": true, "r15d": true, "r15w": true, "r15b": true,
	"rsp": true, "esp": true, "sp": true, "spl": true,
	"rbp": true, "ebp": true, "bp": true, "bpl": true,
}

// naclBaseRegs: the only base registers a sandboxed memory access may use.
var naclBaseRegs = map[string]bool{"r15": true, "rsp": true, "rbp": true}

var regs32Set = func() map[string]bool {
	m := make(map[string]bool, len(regs32))
	for _, r := range regs32 {
		m[r] = true
	}
	return m
}()

// condCodes names the sixteen x86 condition codes in opcode order.
var condCodes = [16]string{
	"o", "no", "b", "ae", "e", "ne", "be", "a",
	"s", "ns", "p", "np", "l", "ge", "le", "g",
}

// regsBySize returns the register name table for a plain operand size.
// The 8-bit case additionally depends on whether a REX prefix is present,
// since REX changes which registers the low nibble of ModRM addresses.
func regsBySize(hasREX bool, size Size) []string {
	if size == Size8 {
		if hasREX {
			return regs8Extended[:]
		}
		return regs8Original[:]
	}
	switch size {
	case Size64:
		return regs64[:]
	case Size32:
		return regs32[:]
	case Size16:
		return regs16[:]
	case SizeMMX, SizeMMX32, SizeMMX64:
		return regsMMX[:]
	case SizeXMM, SizeXMM32, SizeXMM64:
		return regsXMM[:]
	case SizeX87:
		return regsX87[:]
	default:
		panic("enc: no register table for size")
	}
}

// extReg pairs a ModRM-local register encoding (0-7) with its rendered name.
type extReg struct {
	Reg  int
	Name string
}

// getExtendedRegs enumerates the eight registers selectable by a 3-bit
// ModRM/SIB field, with the REX high bit (topBit) supplying bit 3. 8-entry
// tables (x87, MMX) ignore topBit: those register files have no REX-extended
// half.
func getExtendedRegs(topBit int, reglist []string) []extReg {
	offset := 0
	if len(reglist) == 16 {
		offset = topBit << 3
	}
	out := make([]extReg, 8)
	for reg := 0; reg < 8; reg++ {
		out[reg] = extReg{Reg: reg, Name: reglist[reg+offset]}
	}
	return out
}

// operandReg is a candidate register operand together with the semantic
// labels the NaCl policy attaches to choosing it.
type operandReg struct {
	Reg    int
	Name   string
	Labels []Label
}

// getOperandRegs enumerates the registers permitted in an operand slot
// with the given attributes, applying the NaCl write-protection and
// zero-extension bookkeeping rules (spec 4.2.3):
//
//   - a zero-extending write to %esp/%ebp is allowed only via the inline
//     fixup idiom, and is labeled requires_fixup;
//   - any other write to a protected register is forbidden outright;
//   - a zero-extending write to any other 32-bit register is labeled
//     zeroextends so the validator can track it.
func getOperandRegs(attrs *OperandAttrs, topBit int, reglist []string) []operandReg {
	var out []operandReg
	for _, er := range getExtendedRegs(topBit, reglist) {
		regNum := er.Reg + (topBit << 3)
		var labels []Label
		switch {
		case attrs.CanZeroExtend && (er.Name == "esp" || er.Name == "ebp"):
			labels = []Label{{Key: trie.RequiresFixup, Value: regNum}}
		case !attrs.ReadOnly && naclUnwritableReg[er.Name]:
			continue
		case attrs.CanZeroExtend && regs32Set[er.Name]:
			labels = []Label{{Key: trie.ZeroExtends, Value: regNum}}
		}
		out = append(out, operandReg{Reg: er.Reg, Name: er.Name, Labels: labels})
	}
	return out
}
