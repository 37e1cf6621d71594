// Package sim provides the simulation core for an individual-based malaria
// model: the day-granularity time model, the seeded random streams, the
// population, the intervention deployment scheduler and the per-step
// clinical update loop.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - time.go: SimTime/SimDate arithmetic and the Clock update phases
//   - interventions.go: the continuous and timed deployment lists and cursors
//   - simulator.go: the step loop tying deployment and clinical updates
//
// The case-management decision tree lives in the sim/clinical sub-package;
// sim calls into it through clinical.CaseManager.
//
// # Reproducibility
//
// Everything is strictly sequential and driven by the partitioned seeded
// RNG in rng.go. The sequence and count of draws per step is part of the
// observable contract: two runs with the same SimulationKey and scenario
// produce identical trajectories.
package sim
