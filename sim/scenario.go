// Scenario configuration: the static, validated structure consumed once at
// initialization. YAML decoding is strict (unknown fields are errors) and
// all validation happens here or in the component constructors; nothing is
// deferred to simulation time.

package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devhliu/openmalaria/sim/clinical"
)

// Scenario is the full scenario file structure.
type Scenario struct {
	Name             string  `yaml:"name"`
	TimestepDays     int     `yaml:"timestep_days"`
	WarmupYears      int     `yaml:"warmup_years"`
	HorizonYears     int     `yaml:"horizon_years"`
	MaxHumanAgeYears int     `yaml:"max_human_age_years"`
	PopulationSize   int     `yaml:"population_size"`
	StartDateDays    int     `yaml:"start_date_days,omitempty"`

	Pathogenesis   PathogenesisConfig   `yaml:"pathogenesis"`
	Drugs          []DrugConfig         `yaml:"drugs"`
	CaseManagement CaseManagementConfig `yaml:"case_management"`
	Interventions  *InterventionsConfig `yaml:"interventions,omitempty"`
}

// PathogenesisConfig holds the clinical-incidence parameters.
type PathogenesisConfig struct {
	RateMultiplier            float64 `yaml:"rate_multiplier"`
	DensityExponent           float64 `yaml:"density_exponent"`
	SevereProbability         float64 `yaml:"severe_probability"`
	NeonatalMortality         float64 `yaml:"neonatal_mortality"`
	NonMalariaInfantMortality float64 `yaml:"non_malaria_infant_mortality"`
	InitialDensity            float64 `yaml:"initial_density"`
}

// DrugConfig describes one drug for the registry.
type DrugConfig struct {
	Name             string  `yaml:"name"`
	Abbrev           string  `yaml:"abbrev"`
	AbsorptionFactor float64 `yaml:"absorption_factor"`
	HalfLifeDays     float64 `yaml:"half_life_days"`
}

// CaseManagementConfig wraps the decision tree, the optional MDA schedule
// and the health-system memory window for second-case classification.
type CaseManagementConfig struct {
	Tree                   *clinical.TreeConfig `yaml:"tree"`
	MDA                    *clinical.LeafConfig `yaml:"mda,omitempty"`
	HealthSystemMemoryDays int                  `yaml:"health_system_memory_days"`
}

// InterventionsConfig lists every configured intervention by kind.
type InterventionsConfig struct {
	Bednet            *HumanInterventionConfig `yaml:"bednet,omitempty"`
	IRS               *HumanInterventionConfig `yaml:"irs,omitempty"`
	Deterrent         *HumanInterventionConfig `yaml:"deterrent,omitempty"`
	Vaccine           *HumanInterventionConfig `yaml:"vaccine,omitempty"`
	MDA               *HumanInterventionConfig `yaml:"mda,omitempty"`
	Cohort            *HumanInterventionConfig `yaml:"cohort,omitempty"`
	ImmuneSuppression *HumanInterventionConfig `yaml:"immune_suppression,omitempty"`

	InsertR0Case       *TimesConfig     `yaml:"insert_r0_case,omitempty"`
	UninfectVectors    *TimesConfig     `yaml:"uninfect_vectors,omitempty"`
	ChangeHealthSystem []ChangeHSConfig `yaml:"change_health_system,omitempty"`
}

// HumanInterventionConfig holds the deployment lists of one per-individual
// intervention kind.
type HumanInterventionConfig struct {
	Continuous []ContinuousDeployConfig `yaml:"continuous,omitempty"`
	Timed      []TimedDeployConfig      `yaml:"timed,omitempty"`
}

// ContinuousDeployConfig is one age-triggered deployment descriptor.
type ContinuousDeployConfig struct {
	TargetAgeYears float64 `yaml:"target_age_years"`
	BeginDays      int     `yaml:"begin_days,omitempty"`
	EndDays        *int    `yaml:"end_days,omitempty"` // absent = open-ended
	Coverage       float64 `yaml:"coverage"`
	CohortOnly     bool    `yaml:"cohort_only,omitempty"`
}

// TimedDeployConfig is one time-triggered mass deployment descriptor.
// Times are days since the start of the intervention period.
type TimedDeployConfig struct {
	TimeDays              int      `yaml:"time_days"`
	MinAgeYears           float64  `yaml:"min_age_years,omitempty"`
	MaxAgeYears           float64  `yaml:"max_age_years,omitempty"` // 0 = max human age
	Coverage              float64  `yaml:"coverage"`
	CohortOnly            bool     `yaml:"cohort_only,omitempty"`
	CumulativeMaxAgeYears *float64 `yaml:"cumulative_max_age_years,omitempty"`
}

// TimesConfig is a bare list of deployment times in days.
type TimesConfig struct {
	TimesDays []int `yaml:"times_days"`
}

// ChangeHSConfig replaces the active case-management tree at a given time.
type ChangeHSConfig struct {
	TimeDays int                  `yaml:"time_days"`
	Tree     *clinical.TreeConfig `yaml:"tree"`
}

// LoadScenario reads, strictly decodes and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML. Unknown fields are rejected so that
// typos fail loudly instead of silently disabling a section.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scalar fields. Tree and intervention lists are
// validated by their constructors, which have the clock available.
func (sc *Scenario) Validate() error {
	if sc.TimestepDays != 1 && sc.TimestepDays != 5 {
		return fmt.Errorf("scenario: timestep_days must be 1 or 5, got %d", sc.TimestepDays)
	}
	if sc.PopulationSize <= 0 {
		return fmt.Errorf("scenario: population_size must be positive")
	}
	if sc.WarmupYears < 0 {
		return fmt.Errorf("scenario: warmup_years may not be negative")
	}
	if sc.HorizonYears <= 0 {
		return fmt.Errorf("scenario: horizon_years must be positive")
	}
	if sc.MaxHumanAgeYears <= 0 {
		return fmt.Errorf("scenario: max_human_age_years must be positive")
	}
	if sc.Pathogenesis.SevereProbability < 0 || sc.Pathogenesis.SevereProbability > 1 {
		return fmt.Errorf("scenario: pathogenesis.severe_probability must be in [0,1]")
	}
	if sc.Pathogenesis.NeonatalMortality < 0 || sc.Pathogenesis.NeonatalMortality > 1 {
		return fmt.Errorf("scenario: pathogenesis.neonatal_mortality must be in [0,1]")
	}
	if sc.CaseManagement.HealthSystemMemoryDays < 0 {
		return fmt.Errorf("scenario: case_management.health_system_memory_days may not be negative")
	}
	if sc.CaseManagement.Tree == nil {
		return fmt.Errorf("scenario: case_management.tree is required")
	}
	return nil
}

// BuildDrugRegistry registers every configured drug, rejecting duplicates.
func (sc *Scenario) BuildDrugRegistry() (*clinical.DrugRegistry, error) {
	reg := clinical.NewDrugRegistry()
	for i, d := range sc.Drugs {
		err := reg.Add(clinical.DrugType{
			Name:             d.Name,
			Abbrev:           d.Abbrev,
			AbsorptionFactor: d.AbsorptionFactor,
			HalfLifeDays:     d.HalfLifeDays,
		})
		if err != nil {
			return nil, fmt.Errorf("scenario: drugs[%d]: %w", i, err)
		}
	}
	return reg, nil
}
