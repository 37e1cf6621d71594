package clinical

import "fmt"

// DrugType describes one registered drug. Pharmacokinetics beyond the
// half-life are modelled elsewhere; the registry exists so that prescribed
// abbreviations are validated eagerly.
type DrugType struct {
	Name             string
	Abbrev           string
	AbsorptionFactor float64
	HalfLifeDays     float64
}

// DrugRegistry maps drug abbreviations to their descriptions. Built once
// from scenario configuration, read-only afterwards.
type DrugRegistry struct {
	available map[string]DrugType
}

// NewDrugRegistry returns an empty registry.
func NewDrugRegistry() *DrugRegistry {
	return &DrugRegistry{available: make(map[string]DrugType)}
}

// Add registers a drug. Registering the same abbreviation twice is a
// configuration error.
func (r *DrugRegistry) Add(d DrugType) error {
	if d.Abbrev == "" {
		return fmt.Errorf("drug %q has no abbreviation", d.Name)
	}
	if _, ok := r.available[d.Abbrev]; ok {
		return fmt.Errorf("drug already in registry: %s", d.Abbrev)
	}
	r.available[d.Abbrev] = d
	return nil
}

// Get looks up a drug by abbreviation.
func (r *DrugRegistry) Get(abbrev string) (DrugType, error) {
	d, ok := r.available[abbrev]
	if !ok {
		return DrugType{}, fmt.Errorf("prescribed non-existent drug %s", abbrev)
	}
	return d, nil
}

// Len returns the number of registered drugs.
func (r *DrugRegistry) Len() int { return len(r.available) }
