// Intervention deployment scheduling.
//
// Two ordered descriptor lists drive all deployments: a continuous list
// triggered by individuals reaching a target age (one private cursor per
// individual) and a timed list triggered by intervention time (one global
// cursor). Both lists are built once from scenario configuration, stably
// sorted, and immutable afterwards; only the cursors move, and only
// forwards.

package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/devhliu/openmalaria/sim/clinical"
)

// ErrUnsupported marks configuration combinations this core recognises but
// does not implement. Surfaced to the operator at initialization, never
// silently ignored.
var ErrUnsupported = errors.New("unsupported intervention configuration")

// ActionKind enumerates the per-individual deployment actions. The set is
// closed at configuration-load time; dispatch is by exhaustive switch.
type ActionKind int

const (
	ActionBednet ActionKind = iota
	ActionIRS
	ActionDeterrent
	ActionVaccine
	ActionMDA
	ActionCohort
	ActionImmuneSuppression
)

var actionNames = map[ActionKind]string{
	ActionBednet:            "bednet",
	ActionIRS:               "irs",
	ActionDeterrent:         "deterrent",
	ActionVaccine:           "vaccine",
	ActionMDA:               "mda",
	ActionCohort:            "cohort",
	ActionImmuneSuppression: "immune_suppression",
}

func (k ActionKind) String() string { return actionNames[k] }

// TransmissionModel is the narrow surface of the external vector-dynamics
// collaborator that timed deployments may call into.
type TransmissionModel interface {
	UninfectVectors()
}

// NopTransmission satisfies TransmissionModel with no vector model present.
type NopTransmission struct{}

func (NopTransmission) UninfectVectors() {}

// === Continuous (age-triggered) deployments ===

// ContinuousDeployment deploys an action when an individual reaches the
// target age, subject to an intervention-time window and coverage.
type ContinuousDeployment struct {
	begin      SimTime // intervention-relative window [begin, end)
	end        SimTime
	deployAge  SimTime
	cohortOnly bool
	coverage   float64
	action     ActionKind
}

// FilterAndDeploy considers this descriptor for one individual. It returns
// false once the target age lies in the individual's future, which stops
// list traversal for this individual; true means the cursor may advance.
//
// The coverage draw is the LAST check performed: disabling any earlier
// check never changes the number of draws consumed.
func (cd *ContinuousDeployment) FilterAndDeploy(h *Human, m *InterventionManager, clock *Clock, rng *rand.Rand) bool {
	age := h.Age(clock.Now())
	if cd.deployAge > age {
		// remaining deployments for this individual happen in the future
		return false
	}
	if cd.deployAge == age {
		if cd.begin <= clock.IntervTime() && clock.IntervTime() < cd.end &&
			(!cd.cohortOnly || h.IsInCohort()) &&
			rng.Float64() < cd.coverage { // RNG call must be the last test
			m.applyAction(cd.action, h, clock.Now())
		}
	}
	// else: the deployment age was missed (the individual aged past it);
	// skipped silently, never deployed late
	return true
}

// === Timed (absolute-time-triggered) deployments ===

type timedKind int

const (
	timedMass timedKind = iota
	timedMassCum
	timedChangeHS
	timedR0
	timedUninfectVectors
	timedSentinel
)

// TimedDeployment executes once against the whole population when
// intervention time reaches its trigger. The variant set is closed.
type TimedDeployment struct {
	time SimTime
	kind timedKind

	// mass and cumulative deployments
	minAge     SimTime
	maxAge     SimTime
	cohortOnly bool
	coverage   float64
	action     ActionKind

	// cumulative deployments: protection younger than this still counts
	maxInterventionAge SimTime

	// health-system change: replacement tree, built and validated eagerly
	newTree *clinical.Tree
}

func (td *TimedDeployment) deploy(pop *Population, m *InterventionManager, clock *Clock, rng *rand.Rand) {
	switch td.kind {
	case timedMass:
		td.deployMass(pop, m, clock, rng)
	case timedMassCum:
		td.deployMassCum(pop, m, clock, rng)
	case timedChangeHS:
		m.caseMgr.SetTree(td.newTree)
	case timedR0:
		// pick one individual uniformly, vaccinate and infect it
		i := int(math.Floor(rng.Float64() * float64(pop.Size())))
		h := pop.Humans()[i]
		h.vaccineDoses++
		h.density = m.r0Density
	case timedUninfectVectors:
		m.transmission.UninfectVectors()
	case timedSentinel:
		// always-in-the-future terminator; never deployed
	}
}

// deployMass deploys to each eligible individual independently with
// probability coverage, one draw per eligible individual, in population
// iteration order.
func (td *TimedDeployment) deployMass(pop *Population, m *InterventionManager, clock *Clock, rng *rand.Rand) {
	now := clock.Now()
	for _, h := range pop.Humans() {
		age := h.Age(now)
		if age >= td.minAge && age < td.maxAge {
			if !td.cohortOnly || h.IsInCohort() {
				if rng.Float64() < td.coverage {
					m.applyAction(td.action, h, now)
				}
			}
		}
	}
}

// deployMassCum tops the eligible group's protection up to the target
// coverage. The first pass counts protection without consuming randomness;
// if the protected fraction p already meets the requested coverage c, no
// draws occur. Otherwise each currently-unprotected individual is deployed
// to with probability (c-p)/(1-p).
func (td *TimedDeployment) deployMassCum(pop *Population, m *InterventionManager, clock *Clock, rng *rand.Rand) {
	now := clock.Now()
	var unprotected []*Human
	total := 0
	for _, h := range pop.Humans() {
		age := h.Age(now)
		if age >= td.minAge && age < td.maxAge {
			if !td.cohortOnly || h.IsInCohort() {
				total++
				if !isProtected(td.action, h, td.maxInterventionAge, now) {
					unprotected = append(unprotected, h)
				}
			}
		}
	}
	if total == 0 {
		return
	}
	propProtected := float64(total-len(unprotected)) / float64(total)
	if propProtected < td.coverage {
		additionalCoverage := (td.coverage - propProtected) / (1.0 - propProtected)
		for _, h := range unprotected {
			if rng.Float64() < additionalCoverage {
				m.applyAction(td.action, h, now)
			}
		}
	}
}

// isProtected reports whether the individual already carries an active
// instance of the action's intervention no older than maxAge.
func isProtected(k ActionKind, h *Human, maxAge, now SimTime) bool {
	switch k {
	case ActionBednet:
		return h.HasNetProtection(maxAge, now)
	case ActionIRS:
		return h.HasIRSProtection(maxAge, now)
	case ActionDeterrent:
		return h.HasDeterrentProtection(maxAge, now)
	case ActionCohort:
		return h.IsInCohort()
	default:
		return false
	}
}

// cumulativeCapable lists the actions whose protection age is observable,
// the precondition for cumulative-coverage deployment.
func cumulativeCapable(k ActionKind) bool {
	switch k {
	case ActionBednet, ActionIRS, ActionDeterrent, ActionCohort:
		return true
	}
	return false
}

// === InterventionManager ===

// InterventionManager owns both descriptor lists and their cursors. The
// lists are immutable after construction.
type InterventionManager struct {
	continuous []ContinuousDeployment
	timed      []TimedDeployment // stably sorted; terminated by sentinel
	nextTimed  int

	cohortEnabled bool

	caseMgr      *clinical.CaseManager
	transmission TransmissionModel
	survey       *Survey
	r0Density    float64
}

// NewInterventionManager builds the descriptor lists from scenario
// configuration. All validation is eager: a scenario that loads deploys
// without further errors.
func NewInterventionManager(cfg *InterventionsConfig, caseMgr *clinical.CaseManager,
	drugs *clinical.DrugRegistry, clock *Clock, transmission TransmissionModel,
	survey *Survey, r0Density float64) (*InterventionManager, error) {

	if transmission == nil {
		transmission = NopTransmission{}
	}
	m := &InterventionManager{
		caseMgr:      caseMgr,
		transmission: transmission,
		survey:       survey,
		r0Density:    r0Density,
	}
	if cfg == nil {
		cfg = &InterventionsConfig{}
	}

	humanKinds := []struct {
		action ActionKind
		cfg    *HumanInterventionConfig
	}{
		{ActionBednet, cfg.Bednet},
		{ActionIRS, cfg.IRS},
		{ActionDeterrent, cfg.Deterrent},
		{ActionVaccine, cfg.Vaccine},
		{ActionMDA, cfg.MDA},
		{ActionCohort, cfg.Cohort},
		{ActionImmuneSuppression, cfg.ImmuneSuppression},
	}
	for _, hk := range humanKinds {
		if hk.cfg == nil {
			continue
		}
		if hk.action == ActionCohort {
			m.cohortEnabled = true
		}
		if hk.action == ActionMDA {
			if len(hk.cfg.Continuous) > 0 {
				return nil, fmt.Errorf("%w: mass drug administration via continuous deployment", ErrUnsupported)
			}
			if !caseMgr.HasMDA() {
				return nil, fmt.Errorf("mda intervention configured without a case_management.mda schedule")
			}
		}
		for i, cd := range hk.cfg.Continuous {
			built, err := buildContinuous(hk.action, cd, clock)
			if err != nil {
				return nil, fmt.Errorf("interventions.%s.continuous[%d]: %w", hk.action, i, err)
			}
			m.continuous = append(m.continuous, built)
		}
		for i, td := range hk.cfg.Timed {
			built, err := buildTimed(hk.action, td, clock)
			if err != nil {
				return nil, fmt.Errorf("interventions.%s.timed[%d]: %w", hk.action, i, err)
			}
			m.timed = append(m.timed, built)
		}
	}

	for i, hs := range cfg.ChangeHealthSystem {
		if hs.TimeDays < 0 {
			return nil, fmt.Errorf("interventions.change_health_system[%d]: time may not be negative", i)
		}
		tree, err := clinical.BuildTree(hs.Tree, drugs)
		if err != nil {
			return nil, fmt.Errorf("interventions.change_health_system[%d]: %w", i, err)
		}
		m.timed = append(m.timed, TimedDeployment{
			time:    FromDays(hs.TimeDays),
			kind:    timedChangeHS,
			newTree: tree,
		})
	}
	if cfg.InsertR0Case != nil {
		for i, t := range cfg.InsertR0Case.TimesDays {
			if t < 0 {
				return nil, fmt.Errorf("interventions.insert_r0_case[%d]: time may not be negative", i)
			}
			m.timed = append(m.timed, TimedDeployment{time: FromDays(t), kind: timedR0})
		}
	}
	if cfg.UninfectVectors != nil {
		for i, t := range cfg.UninfectVectors.TimesDays {
			if t < 0 {
				return nil, fmt.Errorf("interventions.uninfect_vectors[%d]: time may not be negative", i)
			}
			m.timed = append(m.timed, TimedDeployment{time: FromDays(t), kind: timedUninfectVectors})
		}
	}

	// Both lists must be ordered by trigger, and the sort must be stable
	// so same-trigger descriptors keep configuration order.
	sort.SliceStable(m.continuous, func(i, j int) bool {
		return m.continuous[i].deployAge < m.continuous[j].deployAge
	})
	sort.SliceStable(m.timed, func(i, j int) bool {
		return m.timed[i].time < m.timed[j].time
	})

	// Terminate the timed list with something always in the future so the
	// cursor never needs a range check.
	m.timed = append(m.timed, TimedDeployment{time: Future, kind: timedSentinel})

	return m, nil
}

func buildContinuous(action ActionKind, cd ContinuousDeployConfig, clock *Clock) (ContinuousDeployment, error) {
	end := Future
	if cd.EndDays != nil {
		end = FromDays(*cd.EndDays)
	}
	begin := FromDays(cd.BeginDays)
	if begin < 0 || end < begin {
		return ContinuousDeployment{}, fmt.Errorf("must have 0 <= begin <= end")
	}
	deployAge := clock.FromYearsN(cd.TargetAgeYears)
	if deployAge < clock.OneTS() {
		return ContinuousDeployment{}, fmt.Errorf("target age %v years corresponds to %v days; must be at least one time step", cd.TargetAgeYears, deployAge.InDays())
	}
	if deployAge > clock.MaxHumanAge() {
		return ContinuousDeployment{}, fmt.Errorf("target age must be no greater than %v years", clock.MaxHumanAge().InYears())
	}
	if !(cd.Coverage >= 0.0 && cd.Coverage <= 1.0) {
		return ContinuousDeployment{}, fmt.Errorf("coverage must be in range [0,1]")
	}
	return ContinuousDeployment{
		begin:      begin,
		end:        end,
		deployAge:  deployAge,
		cohortOnly: cd.CohortOnly,
		coverage:   cd.Coverage,
		action:     action,
	}, nil
}

func buildTimed(action ActionKind, td TimedDeployConfig, clock *Clock) (TimedDeployment, error) {
	if td.TimeDays < 0 {
		return TimedDeployment{}, fmt.Errorf("deployment time may not be negative")
	}
	if !(td.Coverage >= 0.0 && td.Coverage <= 1.0) {
		return TimedDeployment{}, fmt.Errorf("coverage must be in range [0,1]")
	}
	minAge := clock.FromYearsN(td.MinAgeYears)
	maxAge := clock.MaxHumanAge()
	if td.MaxAgeYears > 0 {
		maxAge = clock.FromYearsN(td.MaxAgeYears)
	}
	if minAge < 0 || maxAge < minAge {
		return TimedDeployment{}, fmt.Errorf("must have 0 <= min age <= max age")
	}
	built := TimedDeployment{
		time:       FromDays(td.TimeDays),
		kind:       timedMass,
		minAge:     minAge,
		maxAge:     maxAge,
		cohortOnly: td.CohortOnly,
		coverage:   td.Coverage,
		action:     action,
	}
	if td.CumulativeMaxAgeYears != nil {
		if !cumulativeCapable(action) {
			return TimedDeployment{}, fmt.Errorf("%w: cumulative coverage for %s", ErrUnsupported, action)
		}
		built.kind = timedMassCum
		built.maxInterventionAge = clock.FromYearsN(*td.CumulativeMaxAgeYears)
	}
	return built, nil
}

// CohortEnabled reports whether any cohort deployment is configured.
func (m *InterventionManager) CohortEnabled() bool { return m.cohortEnabled }

// NumContinuous returns the length of the continuous list.
func (m *InterventionManager) NumContinuous() int { return len(m.continuous) }

// NextTimed returns the global timed-list cursor.
func (m *InterventionManager) NextTimed() int { return m.nextTimed }

// applyAction performs one per-individual deployment and reports it.
func (m *InterventionManager) applyAction(k ActionKind, h *Human, now SimTime) {
	switch k {
	case ActionBednet:
		h.SetupNet(now)
	case ActionIRS:
		h.SetupIRS(now)
	case ActionDeterrent:
		h.SetupDeterrent(now)
	case ActionVaccine:
		h.vaccineDoses++
	case ActionMDA:
		m.caseMgr.MassDrugAdministration(&h.medicateQueue)
	case ActionCohort:
		h.inCohort = true
	case ActionImmuneSuppression:
		h.immuneSuppressed = true
	default:
		panic(fmt.Sprintf("sim: unknown deployment action %d", k))
	}
	m.survey.ReportDeployment(k)
}

// Deploy runs one between-update scheduling pass: first all timed
// deployments due at or before the current intervention time, then the
// continuous pass over every individual. During warmup (negative
// intervention time) nothing fires and no cursor moves.
func (m *InterventionManager) Deploy(pop *Population, clock *Clock, rng *rand.Rand) {
	if clock.IntervTime() < 0 {
		return
	}

	for m.timed[m.nextTimed].time <= clock.IntervTime() {
		m.timed[m.nextTimed].deploy(pop, m, clock, rng)
		m.nextTimed++
	}

	for _, h := range pop.Humans() {
		next := h.NextCtsDist()
		for next < uint32(len(m.continuous)) {
			if !m.continuous[next].FilterAndDeploy(h, m, clock, rng) {
				break // this and all remaining descriptors trigger in the future
			}
			next = h.IncrNextCtsDist()
		}
	}
}

// LoadFromCheckpoint replays the timed list from the start up to the
// resume time, re-executing only health-system changes: their effect is
// configuration-wide and independent of the deployment time, and skipping
// them on resume would leave the process running the wrong tree.
// Population-affecting deployments are skipped; their effects are part of
// the checkpointed population state.
func (m *InterventionManager) LoadFromCheckpoint(pop *Population, clock *Clock, intervTime SimTime) {
	if m.nextTimed != 0 {
		panic("sim: checkpoint replay requires a fresh timed-deployment cursor")
	}
	for m.timed[m.nextTimed].time < intervTime {
		if m.timed[m.nextTimed].kind == timedChangeHS {
			m.timed[m.nextTimed].deploy(pop, m, clock, nil)
		}
		m.nextTimed++
	}
}
