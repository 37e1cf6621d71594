package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClock(stepDays int) *Clock {
	return NewClock(stepDays, 0, SimDate(FromYearsI(10)), FromYearsI(90))
}

func TestNewClock_RejectsInvalidStepLength(t *testing.T) {
	for _, days := range []int{0, 2, 3, 7, 365} {
		assert.Panics(t, func() { NewClock(days, 0, 0, FromYearsI(90)) },
			"step length %d should be rejected", days)
	}
	assert.NotPanics(t, func() { newTestClock(1) })
	assert.NotPanics(t, func() { newTestClock(5) })
}

func TestClock_DerivedConstants(t *testing.T) {
	c := newTestClock(5)
	assert.Equal(t, 5, c.StepDays())
	assert.Equal(t, 73, c.StepsPerYear())
	assert.InDelta(t, 5.0/365.0, c.YearsPerStep(), 1e-15)
	assert.Equal(t, SimTime(5), c.OneTS())

	c1 := newTestClock(1)
	assert.Equal(t, 365, c1.StepsPerYear())
}

func TestClock_YearConversionRounding(t *testing.T) {
	// BDD: with 5-day steps, whole years are exact and fractional years
	// expose the nearest-step vs floor distinction.
	c := newTestClock(5)

	assert.Equal(t, SimTime(365), c.FromYearsN(1.0))
	assert.Equal(t, 73, c.InSteps(c.FromYearsN(1.0)))

	// 0.52 years = 189.8 days = 37.96 steps
	assert.Equal(t, SimTime(190), c.FromYearsN(0.52)) // nearest: 38 steps
	assert.Equal(t, SimTime(185), c.FromYearsD(0.52)) // floor: 37 steps
}

func TestClock_RoundToTSFromDays(t *testing.T) {
	c := newTestClock(5)
	tests := []struct {
		days float64
		want SimTime
	}{
		{0, 0},
		{2.4, 0},   // 0.48 steps rounds down
		{2.5, 5},   // half rounds up
		{7.5, 10},  // 1.5 steps rounds up
		{12.4, 10}, // 2.48 steps rounds down
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.RoundToTSFromDays(tt.days), "days=%v", tt.days)
	}
}

func TestModNN_NegativeOperands(t *testing.T) {
	tests := []struct {
		a, n, want int
	}{
		{0, 73, 0},
		{72, 73, 72},
		{73, 73, 0},
		{-1, 73, 72},
		{-73, 73, 0},
		{-74, 73, 72},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModNN(tt.a, tt.n), "ModNN(%d, %d)", tt.a, tt.n)
	}
}

func TestSentinels_ArithmeticSafety(t *testing.T) {
	// Never stays in the past and Future in the future under the
	// arithmetic the scheduler performs with them.
	x := FromYearsI(200)
	assert.Less(t, int32(Never+x), int32(0))
	assert.Greater(t, int32(x-Never), int32(0))
	assert.Less(t, int32(x), int32(Future))
}

func TestClock_UpdatePhaseProgression(t *testing.T) {
	c := newTestClock(5)

	// Between updates only Now is valid.
	assert.Equal(t, SimTime(0), c.Now())
	assert.Panics(t, func() { c.Ts0() })
	assert.Panics(t, func() { c.Ts1() })

	c.StartUpdate()
	assert.Equal(t, SimTime(0), c.Ts0())
	assert.Equal(t, SimTime(5), c.Ts1())
	assert.Panics(t, func() { c.Now() })
	assert.Panics(t, func() { c.StartUpdate() })

	c.EndUpdate()
	assert.Equal(t, SimTime(5), c.Now())
	assert.Panics(t, func() { c.EndUpdate() })

	// Phase-agnostic accessors agree with the phase-checked ones.
	assert.Equal(t, SimTime(5), c.NowOrTs0())
	assert.Equal(t, SimTime(5), c.NowOrTs1())
	assert.Equal(t, SimTime(0), c.LatestTs0())
}

func TestClock_InterventionTime(t *testing.T) {
	c := newTestClock(5)

	// Far in the past until the intervention period begins.
	assert.Less(t, int32(c.IntervTime()), int32(0))

	// Steps during warmup advance the counter but it stays negative.
	c.StartUpdate()
	c.EndUpdate()
	assert.Less(t, int32(c.IntervTime()), int32(0))

	c.beginIntervPeriod()
	assert.Equal(t, SimTime(0), c.IntervTime())
	assert.Equal(t, c.StartDate(), c.IntervDate())

	c.StartUpdate()
	c.EndUpdate()
	assert.Equal(t, SimTime(5), c.IntervTime())
	assert.Equal(t, c.StartDate().Add(5), c.IntervDate())
}

func TestClock_ModuloSteps(t *testing.T) {
	c := newTestClock(5)
	assert.Equal(t, 0, c.ModuloYearSteps(0))
	assert.Equal(t, 1, c.ModuloYearSteps(FromDays(5)))
	assert.Equal(t, 0, c.ModuloYearSteps(FromYearsI(1)))
	assert.Equal(t, 72, c.ModuloYearSteps(FromDays(-5)))
	assert.Equal(t, 3, c.ModuloSteps(FromDays(65), 10))
}

func TestSimDate_Arithmetic(t *testing.T) {
	d := SimDate(100)
	assert.Equal(t, SimDate(465), d.Add(OneYear))
	assert.Equal(t, OneYear, d.Add(OneYear).Sub(d))
}
