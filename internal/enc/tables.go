package enc

// lockWhitelist names the instructions the `f0` LOCK prefix may precede;
// all others are rejected outright when building the lockable-only root.
var lockWhitelist = map[string]bool{
	"adc": true, "add": true, "and": true, "btc": true, "btr": true, "bts": true,
	"cmpxchg": true, "cmpxchg8b": true, "cmpxchg16b": true,
	"dec": true, "inc": true,
	"neg": true, "not": true, "or": true, "sbb": true, "sub": true,
	"xadd": true, "xchg": true, "xor": true,
}

// zeroExtendWhitelist names instructions whose first operand is understood
// to be zero-extended into the full 64-bit register by the processor; used
// to decide whether a 32-bit register destination needs tracking.
var zeroExtendWhitelist = map[string]bool{
	"mov": true,
	"movd": true, "movsx": true, "movsxd": true, "movzx": true,
	"lea": true,
	"add": true, "sub": true, "xadd": true,
	"and": true, "or": true, "xor": true,
	"xchg": true,
	"neg": true, "not": true,
}

// catBits concatenates bitfields, most-significant first, each truncated to
// its declared width.
func catBits(values []int, sizesInBits []int) int {
	total := 0
	for i, v := range values {
		total = (total << uint(sizesInBits[i])) | (v & ((1 << uint(sizesInBits[i])) - 1))
	}
	return total
}
