package sim

import (
	"math/rand"

	"github.com/devhliu/openmalaria/sim/clinical"
)

// Human is one simulated individual. State here is limited to what the
// case-management and scheduling core needs: birth time, cohort flag, the
// continuous-deployment cursor, the medication queue and per-host
// intervention ages.
type Human struct {
	birth    SimTime
	inCohort bool

	// nextCtsDist indexes the first continuous deployment not yet
	// considered for this individual. Advances monotonically.
	nextCtsDist uint32

	medicateQueue []clinical.MedicateData

	// Deployment times of per-host protective interventions;
	// Never means not deployed.
	netTime SimTime
	irsTime SimTime
	vaTime  SimTime

	vaccineDoses     int
	immuneSuppressed bool

	// Within-host and pathogenesis state; opaque to the scheduler.
	density     float64
	state       clinical.State
	lastEpisode SimTime

	// doomed counts down to an indirect death once negative; positive
	// values are direct death causes.
	doomed int
}

// NewHuman creates an individual born at the given simulation time.
func NewHuman(birth SimTime) *Human {
	return &Human{
		birth:       birth,
		netTime:     Never,
		irsTime:     Never,
		vaTime:      Never,
		lastEpisode: Never,
	}
}

// Birth returns the simulation time of birth (negative for individuals
// alive at simulation start).
func (h *Human) Birth() SimTime { return h.birth }

// Age returns the individual's age at the given time.
func (h *Human) Age(now SimTime) SimTime { return now - h.birth }

// AgeYears returns the age in fractional years.
func (h *Human) AgeYears(now SimTime) float64 { return h.Age(now).InYears() }

// IsInCohort reports cohort membership.
func (h *Human) IsInCohort() bool { return h.inCohort }

// NextCtsDist returns the continuous-deployment cursor.
func (h *Human) NextCtsDist() uint32 { return h.nextCtsDist }

// IncrNextCtsDist advances the cursor and returns the new value.
func (h *Human) IncrNextCtsDist() uint32 {
	h.nextCtsDist++
	return h.nextCtsDist
}

// MedicateQueue returns the pending medications.
func (h *Human) MedicateQueue() []clinical.MedicateData { return h.medicateQueue }

// === Per-host intervention state ===

// SetupNet gives the individual a new bednet as of now.
func (h *Human) SetupNet(now SimTime) { h.netTime = now }

// SetupIRS records an indoor residual spraying as of now.
func (h *Human) SetupIRS(now SimTime) { h.irsTime = now }

// SetupDeterrent records a vector deterrent as of now.
func (h *Human) SetupDeterrent(now SimTime) { h.vaTime = now }

// HasNetProtection reports whether a bednet no older than maxAge is in use.
func (h *Human) HasNetProtection(maxAge, now SimTime) bool {
	return h.netTime != Never && now-h.netTime <= maxAge
}

// HasIRSProtection reports whether spraying no older than maxAge is active.
func (h *Human) HasIRSProtection(maxAge, now SimTime) bool {
	return h.irsTime != Never && now-h.irsTime <= maxAge
}

// HasDeterrentProtection reports whether a deterrent no older than maxAge
// is active.
func (h *Human) HasDeterrentProtection(maxAge, now SimTime) bool {
	return h.vaTime != Never && now-h.vaTime <= maxAge
}

// VaccineDoses returns the number of vaccine doses received.
func (h *Human) VaccineDoses() int { return h.vaccineDoses }

// Population is an ordered, stably-iterable collection of individuals.
// Iteration order is fixed across repeated passes within a step; RNG draw
// order, and with it reproducibility, depends on it.
type Population struct {
	humans []*Human
}

// NewPopulation seeds size individuals with step-aligned ages drawn
// uniformly over [0, maxHumanAge) from the bootstrap RNG stream. Ages are
// whole time steps so that continuous-deployment age equality tests can
// hit.
func NewPopulation(size int, clock *Clock, bootstrap *rand.Rand) *Population {
	p := &Population{humans: make([]*Human, 0, size)}
	maxSteps := clock.InSteps(clock.MaxHumanAge())
	for i := 0; i < size; i++ {
		age := clock.FromTS(bootstrap.Intn(maxSteps))
		p.humans = append(p.humans, NewHuman(-age))
	}
	return p
}

// Size returns the number of individuals.
func (p *Population) Size() int { return len(p.humans) }

// Humans returns the ordered backing slice. Callers must not reorder it.
func (p *Population) Humans() []*Human { return p.humans }

// Remove drops the individual at index i, preserving the order of the
// rest. Used when a death removes someone between updates.
func (p *Population) Remove(i int) {
	p.humans = append(p.humans[:i], p.humans[i+1:]...)
}

// Add appends a newborn to the end of the iteration order.
func (p *Population) Add(h *Human) {
	p.humans = append(p.humans, h)
}
