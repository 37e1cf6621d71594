// sim/simulator.go
package sim

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/devhliu/openmalaria/sim/clinical"
)

// Simulator is the core object that owns the clock, the population and the
// step loop. The simulation advances in a strict sequence of fixed-length
// steps: deployment between updates, then one population-update phase. All
// randomness within a step comes from the single simulation stream in a
// fixed order.
type Simulator struct {
	Clock         *Clock
	RNG           *PartitionedRNG
	Population    *Population
	CaseMgr       *clinical.CaseManager
	Clinical      *ClinicalModel
	Interventions *InterventionManager
	Survey        *Survey

	warmupSteps    int
	horizonSteps   int
	initialDensity float64
	stepCount      int
}

// NewSimulator wires every component from a validated scenario. All
// configuration errors surface here; Run cannot fail.
func NewSimulator(sc *Scenario, seed int64, transmission TransmissionModel) (*Simulator, error) {
	startDate := SimDate(sc.StartDateDays)
	clock := NewClock(sc.TimestepDays,
		startDate,
		startDate.Add(FromYearsI(sc.HorizonYears)),
		FromYearsI(sc.MaxHumanAgeYears))

	drugs, err := sc.BuildDrugRegistry()
	if err != nil {
		return nil, err
	}
	caseMgr, err := clinical.NewCaseManager(sc.CaseManagement.Tree, sc.CaseManagement.MDA, drugs)
	if err != nil {
		return nil, err
	}
	survey := NewSurvey()
	interventions, err := NewInterventionManager(sc.Interventions, caseMgr, drugs, clock,
		transmission, survey, sc.Pathogenesis.InitialDensity)
	if err != nil {
		return nil, err
	}

	rng := NewPartitionedRNG(NewSimulationKey(seed))
	pop := NewPopulation(sc.PopulationSize, clock, rng.ForSubsystem(SubsystemBootstrap))
	for _, h := range pop.Humans() {
		h.density = sc.Pathogenesis.InitialDensity
	}

	clinicalModel := NewClinicalModel(sc.Pathogenesis,
		FromDays(sc.CaseManagement.HealthSystemMemoryDays), clock)

	return &Simulator{
		Clock:          clock,
		RNG:            rng,
		Population:     pop,
		CaseMgr:        caseMgr,
		Clinical:       clinicalModel,
		Interventions:  interventions,
		Survey:         survey,
		warmupSteps:    clock.InSteps(FromYearsI(sc.WarmupYears)),
		horizonSteps:   clock.InSteps(FromYearsI(sc.HorizonYears)),
		initialDensity: sc.Pathogenesis.InitialDensity,
	}, nil
}

// Run executes the warmup phase (no deployment; the timed cursor does not
// move) followed by the intervention period. On a resumed simulation the
// warmup is skipped and the period continues from the restored
// intervention time.
func (s *Simulator) Run() {
	if s.Clock.IntervTime() < 0 {
		logrus.Infof("run %s: warmup, %d steps", s.Survey.RunID, s.warmupSteps)
		for i := 0; i < s.warmupSteps; i++ {
			s.step()
		}
		s.Clock.beginIntervPeriod()
	}
	start := s.Clock.InSteps(s.Clock.IntervTime())
	logrus.Infof("run %s: intervention period, steps %d..%d", s.Survey.RunID, start, s.horizonSteps)
	for i := start; i < s.horizonSteps; i++ {
		s.step()
	}
	logrus.Infof("run %s: complete after %d steps", s.Survey.RunID, s.stepCount)
}

// step performs one full simulation step: between-update intervention
// deployment, then the population-update phase, then death replacement.
func (s *Simulator) step() {
	rng := s.RNG.ForSubsystem(SubsystemSimulation)

	// Deployment happens between updates, at "now".
	s.Interventions.Deploy(s.Population, s.Clock, rng)

	s.Clock.StartUpdate()
	var dead []int
	for i, h := range s.Population.Humans() {
		s.Clinical.Update(h, s.Clock, rng, s.CaseMgr, s.Survey)
		if s.Clinical.IsDead(h, s.Clock, s.Survey) {
			dead = append(dead, i)
		}
	}
	s.Clock.EndUpdate()

	// Replace the dead with newborns, keeping population size and, for
	// the survivors, iteration order stable.
	for j := len(dead) - 1; j >= 0; j-- {
		s.Population.Remove(dead[j])
	}
	for range dead {
		newborn := NewHuman(s.Clock.Now())
		newborn.density = s.initialDensity
		s.Population.Add(newborn)
	}

	s.stepCount++
	logrus.Debugf("[step %06d] t=%dd interv=%dd pop=%d", s.stepCount,
		s.Clock.Now().InDays(), s.Clock.IntervTime().InDays(), s.Population.Size())
}

// SaveCheckpoint writes the mutable state to path.
func (s *Simulator) SaveCheckpoint(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint save: %w", err)
	}
	defer f.Close()
	if err := WriteCheckpoint(f, s.Clock, s.Population); err != nil {
		return fmt.Errorf("checkpoint save: %w", err)
	}
	return f.Sync()
}

// ResumeCheckpoint restores state from path into a freshly constructed
// simulator, replaying configuration-changing timed deployments.
func (s *Simulator) ResumeCheckpoint(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("checkpoint resume: %w", err)
	}
	defer f.Close()
	if err := ReadCheckpoint(f, s.Clock, s.Population, s.Interventions); err != nil {
		return fmt.Errorf("checkpoint resume: %w", err)
	}
	logrus.Infof("resumed at intervention time %dd", s.Clock.IntervTime().InDays())
	return nil
}
