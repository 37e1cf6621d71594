package clinical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestField_MaskEncodeDecode(t *testing.T) {
	f := Field{Shift: 2, Width: 3}

	assert.Equal(t, CMID(0b11100), f.Mask())

	for v := uint32(0); v < 8; v++ {
		id := f.Encode(v)
		assert.Equal(t, v, f.Decode(id), "value %d must round-trip", v)
		assert.Equal(t, CMID(0), id&^f.Mask(), "encoded bits must stay inside the field")
	}
}

func TestField_EncodeOverflowPanics(t *testing.T) {
	f := Field{Shift: 0, Width: 2}
	assert.True(t, f.Fits(3))
	assert.False(t, f.Fits(4))
	assert.Panics(t, func() { f.Encode(4) })
}

func TestField_DecodeIgnoresOtherFields(t *testing.T) {
	low := Field{Shift: 0, Width: 2}
	high := Field{Shift: 2, Width: 2}
	id := low.Encode(3) | high.Encode(1)
	assert.Equal(t, uint32(3), low.Decode(id))
	assert.Equal(t, uint32(1), high.Decode(id))
}

func TestTSDelay_RoundTrip(t *testing.T) {
	for d := uint32(0); d <= TSDelayNumMax; d++ {
		id := EncodeTSDelay(d)
		assert.Equal(t, int(d), DecodeTSDelay(id))
		// The delay field sits above all decision bits.
		assert.Equal(t, CMID(0), id&CMID((uint32(1)<<maxDecisionBits)-1))
	}
	assert.Panics(t, func() { EncodeTSDelay(TSDelayNumMax + 1) })
}

func TestBitsFor(t *testing.T) {
	tests := []struct {
		n    int
		want uint32
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{8, 3},
		{9, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bitsFor(tt.n), "bitsFor(%d)", tt.n)
	}
}
