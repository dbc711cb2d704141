package enc

// OperandAttrs is the interned attribute record an operand slot carries
// (spec 3.5): whether the slot is read-only, and whether the instruction
// zero-extends a write to it. There are only four possible combinations,
// so interning is a trivial fixed lookup table rather than a hash-consing
// cache, but it preserves the spec's invariant that attribute records are
// compared by identity.
type OperandAttrs struct {
	ReadOnly      bool
	CanZeroExtend bool
}

var internedAttrs = [2][2]*OperandAttrs{
	{{ReadOnly: false, CanZeroExtend: false}, {ReadOnly: false, CanZeroExtend: true}},
	{{ReadOnly: true, CanZeroExtend: false}, {ReadOnly: true, CanZeroExtend: true}},
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

// makeInternedAttrs returns the canonical attribute record for the given flags.
func makeInternedAttrs(readOnly, canZeroExtend bool) *OperandAttrs {
	return internedAttrs[boolIdx(readOnly)][boolIdx(canZeroExtend)]
}
