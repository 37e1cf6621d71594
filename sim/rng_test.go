package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSimulationKey(t *testing.T) {
	for _, seed := range []int64{42, 0, -1, math.MaxInt64, math.MinInt64} {
		assert.Equal(t, seed, int64(NewSimulationKey(seed)))
	}
}

func TestPartitionedRNG_EqualKeysEqualStreams(t *testing.T) {
	a := NewPartitionedRNG(NewSimulationKey(42))
	b := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 5; i++ {
		assert.Equal(t,
			a.ForSubsystem(SubsystemBootstrap).Float64(),
			b.ForSubsystem(SubsystemBootstrap).Float64(),
			"draw %d", i)
	}
}

func TestPartitionedRNG_StreamsAreIsolated(t *testing.T) {
	// Draining one stream must not shift another: the population size
	// (bootstrap draws) cannot change the simulation trajectory.
	drained := NewPartitionedRNG(NewSimulationKey(42))
	for i := 0; i < 100; i++ {
		drained.ForSubsystem(SubsystemBootstrap).Float64()
	}

	fresh := NewPartitionedRNG(NewSimulationKey(42))
	for i := 0; i < 5; i++ {
		assert.Equal(t,
			fresh.ForSubsystem(SubsystemSimulation).Float64(),
			drained.ForSubsystem(SubsystemSimulation).Float64(),
			"draw %d", i)
	}
}

func TestPartitionedRNG_SimulationStreamUsesMasterSeed(t *testing.T) {
	seed := int64(42)
	stream := NewPartitionedRNG(NewSimulationKey(seed)).ForSubsystem(SubsystemSimulation)
	direct := rand.New(rand.NewSource(seed))

	for i := 0; i < 10; i++ {
		assert.Equal(t, direct.Float64(), stream.Float64(), "draw %d", i)
	}
}

func TestPartitionedRNG_BootstrapStreamDiffersFromSimulation(t *testing.T) {
	p := NewPartitionedRNG(NewSimulationKey(42))
	assert.NotEqual(t,
		p.ForSubsystem(SubsystemSimulation).Float64(),
		p.ForSubsystem(SubsystemBootstrap).Float64())
}

func TestPartitionedRNG_ForSubsystemCachesInstances(t *testing.T) {
	p := NewPartitionedRNG(NewSimulationKey(42))
	assert.Empty(t, p.subsystems, "streams are created on first use")

	first := p.ForSubsystem(SubsystemSimulation)
	assert.Same(t, first, p.ForSubsystem(SubsystemSimulation))
	assert.Len(t, p.subsystems, 1)
}

func TestPartitionedRNG_Key(t *testing.T) {
	p := NewPartitionedRNG(NewSimulationKey(12345))
	assert.Equal(t, SimulationKey(12345), p.Key())
}

func TestFnv1a64(t *testing.T) {
	assert.Equal(t, fnv1a64(SubsystemBootstrap), fnv1a64(SubsystemBootstrap))
	assert.NotEqual(t, fnv1a64(SubsystemSimulation), fnv1a64(SubsystemBootstrap))
	assert.NotEqual(t, fnv1a64(""), fnv1a64(SubsystemBootstrap))
}
