// Per-human clinical progression: episode onset, case management entry,
// medication administration, and the mortality bookkeeping around them.

package sim

import (
	"math/rand"

	"github.com/devhliu/openmalaria/sim/clinical"
)

// Death causes stored in Human.doomed once positive. Negative values are a
// countdown to an indirect death; see Update.
const (
	doomedTooOld   = 1
	doomedNeonatal = 6
	doomedIndirect = 7
)

// indirectDeathTrigger ends the countdown: a fatal bout kills indirectly
// about seven weeks (35 days) after onset.
const indirectDeathTrigger = -35

// ClinicalModel drives clinical updates for every individual and keeps the
// population-wide infant mortality arrays.
type ClinicalModel struct {
	pathogenesis       clinical.MuellerPathogenesis
	severeProbability  float64
	neonatalMortality  float64
	nonMalariaMort     float64
	healthSystemMemory SimTime

	// Indexed by step-of-first-year of age.
	infantIntervalsAtRisk []int
	infantDeaths          []int
}

// NewClinicalModel sizes the infant arrays for the clock's step length.
func NewClinicalModel(cfg PathogenesisConfig, healthSystemMemory SimTime, clock *Clock) *ClinicalModel {
	return &ClinicalModel{
		pathogenesis: clinical.MuellerPathogenesis{
			RateMultiplier:  cfg.RateMultiplier,
			DensityExponent: cfg.DensityExponent,
			YearsPerStep:    clock.YearsPerStep(),
		},
		severeProbability:     cfg.SevereProbability,
		neonatalMortality:     cfg.NeonatalMortality,
		nonMalariaMort:        cfg.NonMalariaInfantMortality,
		healthSystemMemory:    healthSystemMemory,
		infantIntervalsAtRisk: make([]int, clock.StepsPerYear()),
		infantDeaths:          make([]int, clock.StepsPerYear()),
	}
}

// Update advances one individual by one step. Draw order is part of the
// reproducibility contract: at most one neonatal draw, then one episode
// draw, then (only on an episode) one severity draw and the tree's
// traversal draws.
func (cm *ClinicalModel) Update(h *Human, clock *Clock, rng *rand.Rand, caseMgr *clinical.CaseManager, survey *Survey) {
	cm.administerMedications(h, clock, survey)

	ageSteps := clock.InSteps(h.Age(clock.Ts1()))

	cm.updateMortalityAndIllness(h, ageSteps, clock, rng, caseMgr, survey)
	// Runs after mortality so a death decided this step lands in the
	// infant arrays; the individual is removed before the next update.
	cm.updateInfantDeaths(h, ageSteps, clock)
}

func (cm *ClinicalModel) updateMortalityAndIllness(h *Human, ageSteps int, clock *Clock, rng *rand.Rand, caseMgr *clinical.CaseManager, survey *Survey) {
	if h.doomed < 0 {
		// countdown to indirect mortality
		h.doomed -= clock.StepDays()
	}
	if h.doomed <= indirectDeathTrigger {
		survey.ReportIndirectDeath()
		h.doomed = doomedIndirect
		return
	}
	if ageSteps == 1 {
		// first update since birth
		if rng.Float64() < cm.neonatalMortality {
			survey.ReportNeonatalDeath()
			h.doomed = doomedNeonatal
			return
		}
	}

	cm.doClinicalUpdate(h, clock, rng, caseMgr, survey)
}

func (cm *ClinicalModel) doClinicalUpdate(h *Human, clock *Clock, rng *rand.Rand, caseMgr *clinical.CaseManager, survey *Survey) {
	p := cm.pathogenesis.EpisodeProbability(h.density)
	if rng.Float64() >= p {
		h.state = clinical.StateNone
		return
	}

	state := clinical.StateSick | clinical.StateMalaria
	if h.lastEpisode != Never && clock.Ts0()-h.lastEpisode <= cm.healthSystemMemory {
		state |= clinical.StateSecondCase
	}
	severe := rng.Float64() < cm.severeProbability
	if severe {
		state |= clinical.StateSevere | clinical.StateComplicated
	}
	h.state = state
	h.lastEpisode = clock.Ts0()

	ageYears := h.AgeYears(clock.Ts1())
	survey.ReportEpisode(ageYears, severe)

	id := caseMgr.Execute(&h.medicateQueue, state, ageYears, rng)
	survey.ReportTreatment(id)

	if severe && h.doomed == 0 {
		// complicated bouts carry indirect mortality risk
		h.doomed = -1
	}
}

// administerMedications gives every medication whose seeking delay has
// elapsed and ages the rest by one step. No randomness.
func (cm *ClinicalModel) administerMedications(h *Human, clock *Clock, survey *Survey) {
	if len(h.medicateQueue) == 0 {
		return
	}
	given := 0
	remaining := h.medicateQueue[:0]
	for _, m := range h.medicateQueue {
		if m.SeekingDelay <= 0 {
			given++
			continue
		}
		m.SeekingDelay -= clock.StepDays()
		if m.SeekingDelay < 0 {
			m.SeekingDelay = 0
		}
		remaining = append(remaining, m)
	}
	h.medicateQueue = remaining
	if given > 0 {
		survey.ReportMedications(given)
	}
}

// IsDead reports whether the individual should be removed, marking the
// age-limit cause first when applicable.
func (cm *ClinicalModel) IsDead(h *Human, clock *Clock, survey *Survey) bool {
	if h.Age(clock.Ts1()) > clock.MaxHumanAge() {
		h.doomed = doomedTooOld
		survey.ReportAgeLimitDeath()
	}
	return h.doomed > 0
}

// updateInfantDeaths maintains the infant risk/death arrays for the
// all-cause mortality summary. A malaria death is counted in the interval
// it was decided in: neonatal draws and completed indirect countdowns.
func (cm *ClinicalModel) updateInfantDeaths(h *Human, ageSteps int, clock *Clock) {
	if ageSteps >= 1 && ageSteps <= clock.StepsPerYear() {
		cm.infantIntervalsAtRisk[ageSteps-1]++
		if h.doomed == doomedNeonatal || h.doomed == doomedIndirect {
			cm.infantDeaths[ageSteps-1]++
		}
	}
}

// InfantAllCauseMortality returns deaths per 1000 births: malaria-attributed
// infant deaths plus the configured non-malaria rate.
func (cm *ClinicalModel) InfantAllCauseMortality() float64 {
	propSurviving := 1.0
	for i := range cm.infantIntervalsAtRisk {
		atRisk := cm.infantIntervalsAtRisk[i]
		if atRisk == 0 {
			continue
		}
		propSurviving *= float64(atRisk-cm.infantDeaths[i]) / float64(atRisk)
	}
	return (1.0-propSurviving)*1000.0 + cm.nonMalariaMort
}
