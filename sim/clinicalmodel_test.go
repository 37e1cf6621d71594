package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devhliu/openmalaria/sim/clinical"
)

func newTestClinicalModel(t *testing.T, cfg PathogenesisConfig, clock *Clock) (*ClinicalModel, *clinical.CaseManager) {
	t.Helper()
	cm, _ := testCaseSetup(t, nil)
	return NewClinicalModel(cfg, FromDays(30), clock), cm
}

// stepOnce runs one full update phase for a single individual and reports
// whether it died this step.
func stepOnce(clock *Clock, model *ClinicalModel, caseMgr *clinical.CaseManager, h *Human, rng *rand.Rand, survey *Survey) bool {
	clock.StartUpdate()
	model.Update(h, clock, rng, caseMgr, survey)
	dead := model.IsDead(h, clock, survey)
	clock.EndUpdate()
	return dead
}

func TestClinicalModel_NeonatalDeathCountsAsInfantDeath(t *testing.T) {
	clock := newTestClock(5)
	model, caseMgr := newTestClinicalModel(t, PathogenesisConfig{
		NeonatalMortality:         1.0, // every newborn dies on its first update
		NonMalariaInfantMortality: 49.5,
	}, clock)
	survey := NewSurvey()
	h := NewHuman(clock.Now())

	dead := stepOnce(clock, model, caseMgr, h, rand.New(rand.NewSource(1)), survey)

	assert.True(t, dead)
	assert.Equal(t, 1, survey.NeonatalDeaths)
	assert.Equal(t, 1, model.infantDeaths[0])
	assert.Equal(t, 1, model.infantIntervalsAtRisk[0])
	// Every first interval was fatal: 1000 per 1000 plus the non-malaria rate.
	assert.InDelta(t, 1000.0+49.5, model.InfantAllCauseMortality(), 1e-9)
}

func TestClinicalModel_SevereBoutInfantDeathReachesArrays(t *testing.T) {
	clock := newTestClock(5)
	// Saturated incidence and certain severity: the first clinical update
	// starts the fatal countdown.
	model, caseMgr := newTestClinicalModel(t, PathogenesisConfig{
		RateMultiplier:    1e6,
		DensityExponent:   1.0,
		SevereProbability: 1.0,
	}, clock)
	survey := NewSurvey()
	h := NewHuman(clock.Now())
	h.density = 100
	rng := rand.New(rand.NewSource(1))

	dead := false
	steps := 0
	for !dead && steps < 20 {
		dead = stepOnce(clock, model, caseMgr, h, rng, survey)
		steps++
	}

	require.True(t, dead, "the indirect countdown must complete")
	assert.Equal(t, 1, survey.IndirectDeaths)
	assert.Equal(t, doomedIndirect, h.doomed)

	total := 0
	for _, d := range model.infantDeaths {
		total += d
	}
	assert.Equal(t, 1, total, "the death lands in the infant arrays once")
	assert.Greater(t, model.InfantAllCauseMortality(), 0.0)
}

func TestClinicalModel_IndirectCountdownDuration(t *testing.T) {
	clock := newTestClock(5)
	model, caseMgr := newTestClinicalModel(t, PathogenesisConfig{}, clock)
	survey := NewSurvey()

	// An adult mid-countdown; no episodes (zero incidence), so only the
	// countdown advances.
	h := NewHuman(-FromYearsI(20))
	h.doomed = -1
	rng := rand.New(rand.NewSource(1))

	steps := 0
	for !stepOnce(clock, model, caseMgr, h, rng, survey) {
		steps++
		require.Less(t, steps, 20)
	}

	// doomed runs -1, -6, ..., crossing -35 on the seventh update.
	assert.Equal(t, 6, steps)
	assert.Equal(t, 1, survey.IndirectDeaths)

	// An adult death stays out of the infant arrays.
	for _, d := range model.infantDeaths {
		assert.Zero(t, d)
	}
}

func TestClinicalModel_SecondCaseClassification(t *testing.T) {
	clock := newTestClock(5)
	model, caseMgr := newTestClinicalModel(t, PathogenesisConfig{
		RateMultiplier:  1e6,
		DensityExponent: 1.0,
		// SevereProbability zero: uncomplicated episodes only.
	}, clock)
	survey := NewSurvey()
	h := NewHuman(-FromYearsI(20))
	h.density = 100
	rng := rand.New(rand.NewSource(1))

	stepOnce(clock, model, caseMgr, h, rng, survey)
	require.True(t, h.state.Has(clinical.StateSick|clinical.StateMalaria))
	assert.False(t, h.state.Has(clinical.StateSecondCase))

	// The next episode falls within the 30-day health-system memory.
	stepOnce(clock, model, caseMgr, h, rng, survey)
	assert.True(t, h.state.Has(clinical.StateSecondCase))
	assert.Equal(t, 2, survey.Episodes)
}

func TestClinicalModel_MedicationDelayAndAdministration(t *testing.T) {
	clock := newTestClock(5)
	model, caseMgr := newTestClinicalModel(t, PathogenesisConfig{}, clock)
	survey := NewSurvey()
	h := NewHuman(-FromYearsI(20))
	h.medicateQueue = []clinical.MedicateData{
		{Abbrev: "CQ", Qty: 1, SeekingDelay: 0},
		{Abbrev: "CQ", Qty: 1, SeekingDelay: 7},
	}
	rng := rand.New(rand.NewSource(1))

	// First step: the undelayed medication is given, the delayed one ages.
	stepOnce(clock, model, caseMgr, h, rng, survey)
	assert.Equal(t, 1, survey.MedicationsGiven)
	require.Len(t, h.medicateQueue, 1)
	assert.Equal(t, 2, h.medicateQueue[0].SeekingDelay)

	// Second step: its delay reaches zero; third step: it is given.
	stepOnce(clock, model, caseMgr, h, rng, survey)
	require.Len(t, h.medicateQueue, 1)
	assert.Equal(t, 0, h.medicateQueue[0].SeekingDelay)
	stepOnce(clock, model, caseMgr, h, rng, survey)
	assert.Empty(t, h.medicateQueue)
	assert.Equal(t, 2, survey.MedicationsGiven)
}

func TestClinicalModel_AgeLimitRemoval(t *testing.T) {
	clock := newTestClock(5)
	model, caseMgr := newTestClinicalModel(t, PathogenesisConfig{}, clock)
	survey := NewSurvey()
	h := NewHuman(-clock.MaxHumanAge()) // crosses the limit on the first step

	dead := stepOnce(clock, model, caseMgr, h, rand.New(rand.NewSource(1)), survey)
	assert.True(t, dead)
	assert.Equal(t, 1, survey.AgeLimitDeaths)
	assert.Equal(t, 0, survey.IndirectDeaths)
}
