package clinical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrugRegistry_AddAndGet(t *testing.T) {
	r := NewDrugRegistry()
	d := DrugType{Name: "chloroquine", Abbrev: "CQ", AbsorptionFactor: 1.0, HalfLifeDays: 30}

	assert.NoError(t, r.Add(d))
	assert.Equal(t, 1, r.Len())

	got, err := r.Get("CQ")
	assert.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestDrugRegistry_DuplicateRejected(t *testing.T) {
	r := NewDrugRegistry()
	assert.NoError(t, r.Add(DrugType{Name: "chloroquine", Abbrev: "CQ"}))
	err := r.Add(DrugType{Name: "another", Abbrev: "CQ"})
	assert.ErrorContains(t, err, "drug already in registry")
}

func TestDrugRegistry_MissingAbbrev(t *testing.T) {
	r := NewDrugRegistry()
	assert.ErrorContains(t, r.Add(DrugType{Name: "unnamed"}), "no abbreviation")
}

func TestDrugRegistry_GetUnknown(t *testing.T) {
	r := NewDrugRegistry()
	_, err := r.Get("QN")
	assert.ErrorContains(t, err, "prescribed non-existent drug")
}
