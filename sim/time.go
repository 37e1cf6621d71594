// Simulation time model: day-granularity durations (SimTime), calendar
// points (SimDate) and the step clock (Clock) that owns the update phases.
//
// The simulation always starts at time zero. "Intervention time" is a
// separate counter held by the Clock; it only advances once the warmup
// phase is over.

package sim

import "math"

// DaysInYear is the number of days per simulated year; leap years are not
// simulated.
const DaysInYear = 365

// SimTime is a duration or a time point relative to the start of the
// simulation, counted in whole days. Granularity is one day.
//
// Arithmetic between SimTimes uses plain operators, like time.Duration.
type SimTime int32

// SimDate is a calendar point, counted in days since date origin 0000-01-01.
type SimDate int32

const (
	// Never is a time point always in the past: Never + x < 0 and
	// x - Never does not overflow for any valid simulation time x.
	Never SimTime = -0x3FFFFFFF
	// Future is a time point always in the future: now < Future and
	// now + Future does not overflow.
	Future SimTime = 0x3FFFFFFF

	// NeverDate and FutureDate are the SimDate equivalents of Never/Future.
	NeverDate  SimDate = -0x3FFFFFFF
	FutureDate SimDate = 0x3FFFFFFF
)

// OneDay is the smallest representable duration.
const OneDay SimTime = 1

// OneYear is a whole simulated year.
const OneYear SimTime = DaysInYear

// FromDays converts a day count to a SimTime.
func FromDays(days int) SimTime { return SimTime(days) }

// FromYearsI converts a whole number of years to a SimTime. Exact.
func FromYearsI(years int) SimTime { return SimTime(DaysInYear * years) }

// InDays returns the duration in days.
func (t SimTime) InDays() int { return int(t) }

// InYears converts the duration to fractional years.
func (t SimTime) InYears() float64 { return float64(t) * (1.0 / DaysInYear) }

// Add advances a date by a duration.
func (d SimDate) Add(t SimTime) SimDate { return d + SimDate(t) }

// Sub returns the duration between two dates.
func (d SimDate) Sub(o SimDate) SimTime { return SimTime(d - o) }

// ModNN returns a mod n with a non-negative result, wrap-safe for negative a.
func ModNN(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

func floorToInt(x float64) int { return int(math.Floor(x)) }

// Clock owns the step length chosen at scenario load and the three time
// counters: start-of-step (t0), end-of-step (t1) and intervention time.
//
// Two access phases exist. During a population update (between StartUpdate
// and EndUpdate) only Ts0/Ts1 are valid; between updates only Now is.
// Accessing the wrong one is a programming error and panics.
type Clock struct {
	interval     int // days per time step; 1 or 5
	stepsPerYear int
	yearsPerStep float64

	startDate   SimDate
	endDate     SimDate
	maxHumanAge SimTime

	t0, t1  SimTime
	interv  SimTime
	inUpdate bool
}

// NewClock builds a clock with the given step length in days. The step
// length is immutable for the life of the clock.
func NewClock(stepDays int, startDate, endDate SimDate, maxHumanAge SimTime) *Clock {
	if stepDays != 1 && stepDays != 5 {
		panic("sim: time step length must be 1 or 5 days")
	}
	return &Clock{
		interval:     stepDays,
		stepsPerYear: DaysInYear / stepDays,
		yearsPerStep: float64(stepDays) / DaysInYear,
		startDate:    startDate,
		endDate:      endDate,
		maxHumanAge:  maxHumanAge,
		// intervention time starts far in the past; the warmup phase
		// brings it up to zero (see Simulator.Run)
		interv: Never,
	}
}

// StepDays returns the step length in days.
func (c *Clock) StepDays() int { return c.interval }

// StepsPerYear returns the number of whole time steps per year.
func (c *Clock) StepsPerYear() int { return c.stepsPerYear }

// YearsPerStep returns one year divided by one time step (cached).
func (c *Clock) YearsPerStep() float64 { return c.yearsPerStep }

// StartDate returns the simulation's starting date.
func (c *Clock) StartDate() SimDate { return c.startDate }

// EndDate returns the simulation's ending date.
func (c *Clock) EndDate() SimDate { return c.endDate }

// MaxHumanAge returns the maximum possible age of a human.
func (c *Clock) MaxHumanAge() SimTime { return c.maxHumanAge }

// OneTS is the duration of one time step.
func (c *Clock) OneTS() SimTime { return SimTime(c.interval) }

// FromTS converts a whole number of time steps to a duration.
func (c *Clock) FromTS(steps int) SimTime { return SimTime(steps * c.interval) }

// RoundToTSFromDays rounds a day count to the nearest whole time step
// (half rounds up).
func (c *Clock) RoundToTSFromDays(days float64) SimTime {
	return c.FromTS(floorToInt(days/float64(c.interval) + 0.5))
}

// FromYearsN converts fractional years to the nearest time step.
func (c *Clock) FromYearsN(years float64) SimTime {
	return c.RoundToTSFromDays(DaysInYear * years)
}

// FromYearsD converts fractional years to a duration, rounding down to the
// last whole time step. Distinct from FromYearsN: call sites choose
// deliberately between nearest-step and floor semantics.
func (c *Clock) FromYearsD(years float64) SimTime {
	return c.FromTS(floorToInt(float64(c.stepsPerYear) * years))
}

// InSteps converts a duration to whole time steps, rounding down.
func (c *Clock) InSteps(t SimTime) int { return int(t) / c.interval }

// ModuloSteps returns t in time steps modulo denominator (non-negative).
func (c *Clock) ModuloSteps(t SimTime, denominator int) int {
	return ModNN(c.InSteps(t), denominator)
}

// ModuloYearSteps returns t in time steps modulo steps-per-year.
func (c *Clock) ModuloYearSteps(t SimTime) int {
	return ModNN(c.InSteps(t), c.stepsPerYear)
}

// StartUpdate begins a population-update phase: t1 advances one step and
// Ts0/Ts1 become valid.
func (c *Clock) StartUpdate() {
	if c.inUpdate {
		panic("sim: StartUpdate called during an update")
	}
	c.t1 += c.OneTS()
	c.inUpdate = true
}

// EndUpdate closes the update phase: t0 catches up with t1 and intervention
// time advances one step.
func (c *Clock) EndUpdate() {
	if !c.inUpdate {
		panic("sim: EndUpdate called outside an update")
	}
	c.inUpdate = false
	c.t0 = c.t1
	c.interv += c.OneTS()
}

// Ts0 is the time at the beginning of the current update. Panics if called
// between updates.
func (c *Clock) Ts0() SimTime {
	if !c.inUpdate {
		panic("sim: Ts0 used outside an update")
	}
	return c.t0
}

// Ts1 is the time at the end of the current update; Ts0 + one step. Panics
// if called between updates.
func (c *Clock) Ts1() SimTime {
	if !c.inUpdate {
		panic("sim: Ts1 used outside an update")
	}
	return c.t1
}

// Now is the mid-day point between updates (equal to the previous step's
// Ts1 and the next step's Ts0). For monitoring and intervention deployment
// only; panics during an update.
func (c *Clock) Now() SimTime {
	if c.inUpdate {
		panic("sim: Now used during an update")
	}
	return c.t0
}

// NowOrTs0 is Ts0 during updates and Now between them.
func (c *Clock) NowOrTs0() SimTime { return c.t0 }

// NowOrTs1 is Ts1 during updates and Now between them.
func (c *Clock) NowOrTs1() SimTime { return c.t1 }

// LatestTs0 is Ts0 during updates and Now minus one step between them.
func (c *Clock) LatestTs0() SimTime { return c.t1 - c.OneTS() }

// IntervTime is time relative to the start of the intervention period;
// large negative before the period begins.
func (c *Clock) IntervTime() SimTime { return c.interv }

// IntervDate is the current date. Only meaningful during the intervention
// phase; before it, this returns a date far in the past.
func (c *Clock) IntervDate() SimDate { return c.startDate.Add(c.interv) }

// beginIntervPeriod zeroes the intervention clock. Called by the Simulator
// at the end of warmup.
func (c *Clock) beginIntervPeriod() { c.interv = 0 }
