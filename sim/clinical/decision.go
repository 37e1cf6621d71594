// Packed decision identifiers for the case-management tree.
//
// A CMID is the concatenation of bitfields, one per decision level, built
// incrementally as a traversal descends the tree. One field is reserved for
// the treatment-seeking delay. All encoding and decoding lives here; call
// sites never shift raw bits.

package clinical

import "fmt"

// CMID identifies a path through the case-management decision tree. The
// zero value is the root (no decisions taken).
type CMID uint32

// Field describes one bitfield within a CMID.
type Field struct {
	Shift uint32
	Width uint32
}

// Mask returns the bits covered by this field.
func (f Field) Mask() CMID {
	return CMID(((uint32(1) << f.Width) - 1) << f.Shift)
}

// Fits reports whether v is representable within the field's width.
func (f Field) Fits(v uint32) bool {
	return v < (uint32(1) << f.Width)
}

// Encode places v into this field's bits. Values are validated at tree
// build time; an out-of-range value here is a programming error.
func (f Field) Encode(v uint32) CMID {
	if !f.Fits(v) {
		panic(fmt.Sprintf("clinical: value %d overflows %d-bit decision field", v, f.Width))
	}
	return CMID(v << f.Shift)
}

// Decode extracts this field's value from id.
func (f Field) Decode(id CMID) uint32 {
	return (uint32(id) >> f.Shift) & ((uint32(1) << f.Width) - 1)
}

const (
	// TSDelayNumMax is the largest representable treatment-seeking delay
	// in days.
	TSDelayNumMax = 15

	// tsDelayWidth is the bit width of the delay field; must hold
	// TSDelayNumMax.
	tsDelayWidth = 4

	// maxDecisionBits is the number of low bits available to decision
	// levels; the delay field occupies the bits above.
	maxDecisionBits = 28
)

// TSDelayField is the reserved treatment-seeking-delay field. It sits above
// all decision-level fields so that tree lookups, which mask to decision
// bits only, are unaffected by the delay.
var TSDelayField = Field{Shift: maxDecisionBits, Width: tsDelayWidth}

// EncodeTSDelay places a delay in days into the delay field.
func EncodeTSDelay(days uint32) CMID { return TSDelayField.Encode(days) }

// DecodeTSDelay extracts the delay in days from a final traversal id.
func DecodeTSDelay(id CMID) int { return int(TSDelayField.Decode(id)) }

// bitsFor returns the number of bits needed to represent values 0..n-1.
func bitsFor(n int) uint32 {
	bits := uint32(0)
	for (1 << bits) < n {
		bits++
	}
	return bits
}

// UniformSource yields uniform draws in [0,1). *rand.Rand satisfies it.
// The tree consumes exactly one draw per probability-branch set traversed.
type UniformSource interface {
	Float64() float64
}
