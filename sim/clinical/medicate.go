package clinical

// MedicateData is one drug administration produced by a case-management
// outcome. One record is appended to the patient's medication queue per
// configured medication of the selected treatment.
type MedicateData struct {
	Abbrev       string  // drug abbreviation, resolved against the registry
	Qty          float64 // quantity of drug prescribed
	TimeMinutes  int     // time of day to medicate at, minutes from start
	SeekingDelay int     // delay before treatment seeking, in days
}

// CaseTreatment is the payload of a leaf node: an ordered sequence of
// medications. Order is preserved when applied; administration order
// matters downstream for drug-interaction modelling.
type CaseTreatment struct {
	medications []MedicateData
}

// NewCaseTreatment copies the configured medication sequence. SeekingDelay
// on the inputs is ignored; it is decoded from the traversal id at apply
// time.
func NewCaseTreatment(medications []MedicateData) CaseTreatment {
	ms := make([]MedicateData, len(medications))
	copy(ms, medications)
	return CaseTreatment{medications: ms}
}

// Medications returns the configured sequence (read-only view).
func (ct CaseTreatment) Medications() []MedicateData { return ct.medications }

// Apply appends one queue record per configured medication, overwriting
// only the seeking delay with the value decoded from the final traversal
// id. No randomness, no other side effects.
func (ct CaseTreatment) Apply(queue *[]MedicateData, id CMID) {
	delay := DecodeTSDelay(id)
	for _, m := range ct.medications {
		m.SeekingDelay = delay
		*queue = append(*queue, m)
	}
}
