// Survey aggregation. Reporting hooks are fire-and-forget: scheduler and
// clinical code call in, and nothing here feeds back into simulation state.

package sim

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/devhliu/openmalaria/sim/clinical"
)

// Survey accumulates epidemiological outputs over a run.
type Survey struct {
	RunID string

	Episodes       int
	SevereEpisodes int

	Treatments        int
	DelayedTreatments int // treatments whose seeking delay was nonzero
	MedicationsGiven  int

	IndirectDeaths int
	NeonatalDeaths int
	AgeLimitDeaths int

	Deployments map[ActionKind]int

	episodeAges []float64 // ages in years at episode onset
}

// NewSurvey creates an empty survey with a fresh run identifier.
func NewSurvey() *Survey {
	return &Survey{
		RunID:       uuid.NewString(),
		Deployments: make(map[ActionKind]int),
	}
}

// ReportEpisode records a clinical episode at the given age.
func (s *Survey) ReportEpisode(ageYears float64, severe bool) {
	s.Episodes++
	if severe {
		s.SevereEpisodes++
	}
	s.episodeAges = append(s.episodeAges, ageYears)
}

// ReportTreatment records one case-management outcome, classified by the
// final traversal id's delay field.
func (s *Survey) ReportTreatment(id clinical.CMID) {
	s.Treatments++
	if clinical.DecodeTSDelay(id) > 0 {
		s.DelayedTreatments++
	}
}

// ReportMedications records n administered medications.
func (s *Survey) ReportMedications(n int) { s.MedicationsGiven += n }

// ReportIndirectDeath records an indirect malaria death.
func (s *Survey) ReportIndirectDeath() { s.IndirectDeaths++ }

// ReportNeonatalDeath records a neonatal death (also counted indirect).
func (s *Survey) ReportNeonatalDeath() {
	s.NeonatalDeaths++
	s.IndirectDeaths++
}

// ReportAgeLimitDeath records a removal at the maximum human age.
func (s *Survey) ReportAgeLimitDeath() { s.AgeLimitDeaths++ }

// ReportDeployment records one per-individual intervention deployment.
func (s *Survey) ReportDeployment(k ActionKind) { s.Deployments[k]++ }

// EpisodeAgeStats returns mean and standard deviation of episode onset
// ages in years; zeros when no episodes occurred.
func (s *Survey) EpisodeAgeStats() (mean, stddev float64) {
	if len(s.episodeAges) == 0 {
		return 0, 0
	}
	mean = stat.Mean(s.episodeAges, nil)
	if len(s.episodeAges) > 1 {
		stddev = stat.StdDev(s.episodeAges, nil)
	}
	return mean, stddev
}

// Print displays the aggregated outputs at the end of a run.
func (s *Survey) Print(infantAllCauseMortality float64) {
	fmt.Println("=== Simulation Survey ===")
	fmt.Printf("Run ID               : %s\n", s.RunID)
	fmt.Printf("Clinical episodes    : %d (severe: %d)\n", s.Episodes, s.SevereEpisodes)
	fmt.Printf("Treatments           : %d (delayed seeking: %d)\n", s.Treatments, s.DelayedTreatments)
	fmt.Printf("Medications given    : %d\n", s.MedicationsGiven)
	fmt.Printf("Indirect deaths      : %d (neonatal: %d)\n", s.IndirectDeaths, s.NeonatalDeaths)
	if s.Episodes > 0 {
		mean, stddev := s.EpisodeAgeStats()
		fmt.Printf("Episode age          : mean %.2f years, stddev %.2f\n", mean, stddev)
	}
	fmt.Printf("Infant mortality     : %.1f per 1000 births\n", infantAllCauseMortality)
	for k := ActionBednet; k <= ActionImmuneSuppression; k++ {
		if n := s.Deployments[k]; n > 0 {
			fmt.Printf("Deployments (%s): %d\n", k, n)
		}
	}
}
