// Checkpointing: a flat, ordered write/read of the primitive mutable
// fields, little-endian, in a fixed field order. No versioning lives here;
// compatibility between builds is an external concern.

package sim

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/devhliu/openmalaria/sim/clinical"
)

// WriteCheckpoint serialises the clock counters and the population.
// Immutable configuration (descriptor lists, trees) is not written; it is
// rebuilt from the scenario on resume, and the timed cursor is
// reconstructed by replay.
func WriteCheckpoint(w io.Writer, clock *Clock, pop *Population) error {
	if err := writeFields(w, int32(clock.t0), int32(clock.t1), int32(clock.interv)); err != nil {
		return err
	}
	if err := writeFields(w, int32(pop.Size())); err != nil {
		return err
	}
	for _, h := range pop.Humans() {
		if err := writeHuman(w, h); err != nil {
			return err
		}
	}
	return nil
}

// ReadCheckpoint restores clock and population state written by
// WriteCheckpoint, then replays the timed intervention list up to the
// restored intervention time.
func ReadCheckpoint(r io.Reader, clock *Clock, pop *Population, m *InterventionManager) error {
	var t0, t1, interv, size int32
	if err := readFields(r, &t0, &t1, &interv, &size); err != nil {
		return err
	}
	clock.t0, clock.t1, clock.interv = SimTime(t0), SimTime(t1), SimTime(interv)
	if size < 0 {
		return fmt.Errorf("checkpoint: negative population size %d", size)
	}
	pop.humans = make([]*Human, 0, size)
	for i := int32(0); i < size; i++ {
		h, err := readHuman(r)
		if err != nil {
			return fmt.Errorf("checkpoint: human %d: %w", i, err)
		}
		pop.humans = append(pop.humans, h)
	}
	m.LoadFromCheckpoint(pop, clock, clock.IntervTime())
	return nil
}

func writeHuman(w io.Writer, h *Human) error {
	cohort, suppressed := uint8(0), uint8(0)
	if h.inCohort {
		cohort = 1
	}
	if h.immuneSuppressed {
		suppressed = 1
	}
	err := writeFields(w,
		int32(h.birth), cohort, h.nextCtsDist,
		int32(h.netTime), int32(h.irsTime), int32(h.vaTime),
		int32(h.vaccineDoses), suppressed,
		h.density, uint32(h.state), int32(h.lastEpisode), int32(h.doomed),
		int32(len(h.medicateQueue)))
	if err != nil {
		return err
	}
	for _, med := range h.medicateQueue {
		if err := writeString(w, med.Abbrev); err != nil {
			return err
		}
		if err := writeFields(w, med.Qty, int32(med.TimeMinutes), int32(med.SeekingDelay)); err != nil {
			return err
		}
	}
	return nil
}

func readHuman(r io.Reader) (*Human, error) {
	var (
		birth, netTime, irsTime, vaTime int32
		cohort, suppressed              uint8
		cursor                          uint32
		vaccineDoses                    int32
		density                         float64
		state                           uint32
		lastEpisode, doomed             int32
		queueLen                        int32
	)
	err := readFields(r,
		&birth, &cohort, &cursor,
		&netTime, &irsTime, &vaTime,
		&vaccineDoses, &suppressed,
		&density, &state, &lastEpisode, &doomed,
		&queueLen)
	if err != nil {
		return nil, err
	}
	if queueLen < 0 {
		return nil, fmt.Errorf("negative medication queue length %d", queueLen)
	}
	h := &Human{
		birth:            SimTime(birth),
		inCohort:         cohort != 0,
		nextCtsDist:      cursor,
		netTime:          SimTime(netTime),
		irsTime:          SimTime(irsTime),
		vaTime:           SimTime(vaTime),
		vaccineDoses:     int(vaccineDoses),
		immuneSuppressed: suppressed != 0,
		density:          density,
		state:            clinical.State(state),
		lastEpisode:      SimTime(lastEpisode),
		doomed:           int(doomed),
	}
	for i := int32(0); i < queueLen; i++ {
		abbrev, err := readString(r)
		if err != nil {
			return nil, err
		}
		var qty float64
		var timeMinutes, delay int32
		if err := readFields(r, &qty, &timeMinutes, &delay); err != nil {
			return nil, err
		}
		h.medicateQueue = append(h.medicateQueue, clinical.MedicateData{
			Abbrev:       abbrev,
			Qty:          qty,
			TimeMinutes:  int(timeMinutes),
			SeekingDelay: int(delay),
		})
	}
	return h, nil
}

func writeFields(w io.Writer, fields ...any) error {
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func readFields(r io.Reader, fields ...any) error {
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n < 0 || n > 1<<16 {
		return "", fmt.Errorf("invalid string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
