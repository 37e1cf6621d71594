package sim

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScenario(t *testing.T, extraYAML string) *Scenario {
	t.Helper()
	sc, err := ParseScenario([]byte(minimalScenarioYAML + extraYAML))
	require.NoError(t, err)
	return sc
}

func TestSimulator_RunIsDeterministicForEqualSeeds(t *testing.T) {
	extra := `
interventions:
  bednet:
    timed:
      - time_days: 0
        coverage: 0.8
  vaccine:
    continuous:
      - target_age_years: 1.0
        coverage: 0.9
`
	run := func() *Survey {
		s, err := NewSimulator(testScenario(t, extra), 42, nil)
		require.NoError(t, err)
		s.Run()
		return s.Survey
	}

	s1 := run()
	s2 := run()

	assert.Equal(t, s1.Episodes, s2.Episodes)
	assert.Equal(t, s1.SevereEpisodes, s2.SevereEpisodes)
	assert.Equal(t, s1.Treatments, s2.Treatments)
	assert.Equal(t, s1.MedicationsGiven, s2.MedicationsGiven)
	assert.Equal(t, s1.IndirectDeaths, s2.IndirectDeaths)
	assert.Equal(t, s1.Deployments, s2.Deployments)
	assert.NotEqual(t, s1.RunID, s2.RunID)
}

func TestSimulator_RunProducesEpisodesAndTreatments(t *testing.T) {
	s, err := NewSimulator(testScenario(t, ""), 7, nil)
	require.NoError(t, err)
	s.Run()

	assert.Greater(t, s.Survey.Episodes, 0)
	assert.Equal(t, s.Survey.Episodes, s.Survey.Treatments,
		"every episode enters case management exactly once")
}

func TestSimulator_PopulationSizeIsStable(t *testing.T) {
	sc := testScenario(t, "")
	s, err := NewSimulator(sc, 3, nil)
	require.NoError(t, err)
	s.Run()

	// Deaths are replaced by newborns within the same step.
	assert.Equal(t, sc.PopulationSize, s.Population.Size())
}

func TestSimulator_SaveAndResumeCheckpoint(t *testing.T) {
	sc := testScenario(t, "")
	path := filepath.Join(t.TempDir(), "checkpoint.bin")

	first, err := NewSimulator(sc, 42, nil)
	require.NoError(t, err)
	first.Run()
	require.NoError(t, first.SaveCheckpoint(path))

	second, err := NewSimulator(sc, 42, nil)
	require.NoError(t, err)
	require.NoError(t, second.ResumeCheckpoint(path))

	// The restored clock continues where the first run stopped; resuming
	// at the horizon means no further steps.
	assert.Equal(t, first.Clock.Now(), second.Clock.Now())
	assert.Equal(t, first.Clock.IntervTime(), second.Clock.IntervTime())
	assert.Equal(t, first.Population.Size(), second.Population.Size())
	second.Run()
	assert.Equal(t, first.Clock.Now(), second.Clock.Now())
}

func TestNewSimulator_SurfacesConfigurationErrors(t *testing.T) {
	sc := testScenario(t, "")
	sc.CaseManagement.Tree.Case["uncomplicated1"].Branch[0].P = 0.9 // sums to 1.3
	_, err := NewSimulator(sc, 1, nil)
	assert.ErrorContains(t, err, "probabilities sum to")
}

func TestNewPopulation_StepAlignedAges(t *testing.T) {
	clock := newTestClock(5)
	rng := NewPartitionedRNG(NewSimulationKey(9)).ForSubsystem(SubsystemBootstrap)
	pop := NewPopulation(200, clock, rng)

	require.Equal(t, 200, pop.Size())
	for _, h := range pop.Humans() {
		age := h.Age(0)
		assert.GreaterOrEqual(t, int32(age), int32(0))
		assert.Less(t, int32(age), int32(clock.MaxHumanAge()))
		assert.Zero(t, age.InDays()%clock.StepDays(), "initial ages must be whole time steps")
	}
}
