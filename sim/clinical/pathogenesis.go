package clinical

import "math"

// State is a bitset of pathogenesis flags describing a clinical bout. Only
// the derived case type participates in decision-tree entry lookup; the
// individual flags are otherwise opaque to the tree.
type State uint32

const (
	// StateSick: any clinical event.
	StateSick State = 1 << iota
	// StateMalaria: the event is malarial.
	StateMalaria
	// StateSevere: severe malaria.
	StateSevere
	// StateCoinfection: a non-malaria co-infection is present.
	StateCoinfection
	// StateComplicated: severe malaria or a coinfected bout.
	StateComplicated
	// StateSecondCase: a second episode within the health-system memory.
	StateSecondCase
	// StateIndirectMortality: the bout carries indirect mortality risk.
	StateIndirectMortality
)

// StateNone is the absence of any clinical event.
const StateNone State = 0

// CaseType is the coarse classification that selects the entry branch of
// the case-management tree.
type CaseType int

const (
	// CaseUncomplicated1 is a first uncomplicated episode.
	CaseUncomplicated1 CaseType = iota
	// CaseUncomplicated2 is a recurrence within health-system memory.
	CaseUncomplicated2
	// CaseSevere covers severe and complicated episodes.
	CaseSevere

	numCaseTypes
)

// CaseType derives the tree entry classification from the state flags.
func (s State) CaseType() CaseType {
	if s&(StateSevere|StateComplicated) != 0 {
		return CaseSevere
	}
	if s&StateSecondCase != 0 {
		return CaseUncomplicated2
	}
	return CaseUncomplicated1
}

// Has reports whether all flags in f are set.
func (s State) Has(f State) bool { return s&f == f }

// MuellerPathogenesis computes per-step clinical episode probabilities from
// parasite density, after Mueller et al.
type MuellerPathogenesis struct {
	RateMultiplier  float64
	DensityExponent float64
	YearsPerStep    float64
}

// EpisodeProbability returns the probability of a clinical episode during
// one time step at the given total parasite density.
func (m MuellerPathogenesis) EpisodeProbability(totalDensity float64) float64 {
	incidenceDensity := m.RateMultiplier * math.Pow(totalDensity, m.DensityExponent) * m.YearsPerStep
	return 1.0 - math.Exp(-incidenceDensity)
}
