// Case-management decision tree.
//
// The tree is a mapping from masked CMID to node, built once from scenario
// configuration. A node is either a probability-branch set or a leaf
// holding a treatment. Traversal starts from the case-type field, consumes
// exactly one uniform draw per branch set, and accumulates the chosen
// branch bits into the identifier until a leaf is reached.

package clinical

import (
	"fmt"
	"math"
)

// cumPTolerance is the permitted deviation of a branch set's final
// cumulative probability from 1.0.
const cumPTolerance = 1e-9

// caseTypeNames maps configuration keys to tree entry classifications.
var caseTypeNames = map[string]CaseType{
	"uncomplicated1": CaseUncomplicated1,
	"uncomplicated2": CaseUncomplicated2,
	"severe":         CaseSevere,
}

// === Configuration ===

// TreeConfig is the static form of the case-management tree, one subtree
// per case type. All three case types must be present.
type TreeConfig struct {
	Case map[string]*NodeConfig `yaml:"case"`
}

// NodeConfig is either a probability-branch set or a leaf; exactly one of
// the two fields may be set.
type NodeConfig struct {
	Branch []BranchConfig `yaml:"branch,omitempty"`
	Leaf   *LeafConfig    `yaml:"leaf,omitempty"`
}

// BranchConfig is one entry of a probability-branch set. Entries are tried
// in declaration order at traversal time.
type BranchConfig struct {
	Name  string      `yaml:"name,omitempty"`
	P     float64     `yaml:"p"`
	Delay int         `yaml:"delay,omitempty"` // treatment-seeking delay, days
	Then  *NodeConfig `yaml:"then"`
}

// LeafConfig is a concrete treatment: an ordered medication sequence. An
// empty sequence is valid (no treatment given).
type LeafConfig struct {
	Medications []MedicationConfig `yaml:"medications"`
}

// MedicationConfig is one prescribed drug administration.
type MedicationConfig struct {
	Drug string  `yaml:"drug"`
	Qty  float64 `yaml:"qty"`
	Time int     `yaml:"time"` // minutes from start of day
}

// === Runtime representation ===

type node interface {
	isNode()
}

type pBranch struct {
	outcome CMID    // bits OR'd into the id when this branch wins
	cumP    float64 // cumulative probability threshold
}

type branchSet struct {
	field    Field
	branches []pBranch // at least one entry; last has cumP ~= 1.0
}

type leaf struct {
	ct CaseTreatment
}

func (*branchSet) isNode() {}
func (*leaf) isNode()      {}

// Tree is the built, immutable decision tree.
type Tree struct {
	nodes     map[CMID]node
	caseField Field
	depth     int // deepest level count; traversal bound
}

// BuildTree flattens a TreeConfig into the masked-id index, validating
// bitfield widths, probability sums, delays and drug references. All
// configuration errors are reported here; traversal never fails on a
// validated tree.
func BuildTree(cfg *TreeConfig, drugs *DrugRegistry) (*Tree, error) {
	if cfg == nil {
		return nil, fmt.Errorf("case management tree missing")
	}
	t := &Tree{
		nodes:     make(map[CMID]node),
		caseField: Field{Shift: 0, Width: bitsFor(int(numCaseTypes))},
	}
	for name, ct := range caseTypeNames {
		sub, ok := cfg.Case[name]
		if !ok {
			return nil, fmt.Errorf("case management tree: missing case type %q", name)
		}
		id := t.caseField.Encode(uint32(ct))
		if err := t.build(sub, name, id, t.caseField.Width, 1, false, drugs); err != nil {
			return nil, err
		}
	}
	for name := range cfg.Case {
		if _, ok := caseTypeNames[name]; !ok {
			return nil, fmt.Errorf("case management tree: unknown case type %q", name)
		}
	}
	if err := t.checkReachable(); err != nil {
		return nil, err
	}
	return t, nil
}

// build flattens one node at the given path id. shift is the first free
// decision bit, depth the level count along this path, delayed whether an
// ancestor branch already set a treatment-seeking delay.
func (t *Tree) build(cfg *NodeConfig, path string, id CMID, shift uint32, depth int, delayed bool, drugs *DrugRegistry) error {
	if cfg == nil {
		return fmt.Errorf("case management tree: node %q is empty", path)
	}
	if (len(cfg.Branch) > 0) == (cfg.Leaf != nil) {
		return fmt.Errorf("case management tree: node %q must have exactly one of branch or leaf", path)
	}
	if depth > t.depth {
		t.depth = depth
	}

	if cfg.Leaf != nil {
		ms := make([]MedicateData, 0, len(cfg.Leaf.Medications))
		for _, m := range cfg.Leaf.Medications {
			if _, err := drugs.Get(m.Drug); err != nil {
				return fmt.Errorf("case management tree: node %q: %w", path, err)
			}
			if m.Qty <= 0 {
				return fmt.Errorf("case management tree: node %q: medication %s has non-positive quantity", path, m.Drug)
			}
			ms = append(ms, MedicateData{Abbrev: m.Drug, Qty: m.Qty, TimeMinutes: m.Time})
		}
		t.nodes[id] = &leaf{ct: NewCaseTreatment(ms)}
		return nil
	}

	// Branch values start at 1; zero means "level not yet decided", which
	// keeps every child's path id distinct from its parent's.
	width := bitsFor(len(cfg.Branch) + 1)
	if shift+width > maxDecisionBits {
		return fmt.Errorf("case management tree: node %q exceeds the %d available decision bits", path, maxDecisionBits)
	}
	field := Field{Shift: shift, Width: width}

	bs := &branchSet{field: field, branches: make([]pBranch, 0, len(cfg.Branch))}
	cum := 0.0
	for i, b := range cfg.Branch {
		branchPath := fmt.Sprintf("%s/%d", path, i)
		if b.Name != "" {
			branchPath = fmt.Sprintf("%s/%s", path, b.Name)
		}
		if b.P < 0 || b.P > 1 {
			return fmt.Errorf("case management tree: branch %q probability %v out of range", branchPath, b.P)
		}
		if b.Delay < 0 || b.Delay > TSDelayNumMax {
			return fmt.Errorf("case management tree: branch %q delay %d out of range [0,%d]", branchPath, b.Delay, TSDelayNumMax)
		}
		// The delay field is shared by all levels of a traversal and its
		// bits accumulate by OR, so at most one branch per path may set it.
		if b.Delay > 0 && delayed {
			return fmt.Errorf("case management tree: branch %q: a second treatment-seeking delay on one path", branchPath)
		}
		cum += b.P
		levelBits := field.Encode(uint32(i + 1))
		bs.branches = append(bs.branches, pBranch{
			outcome: levelBits | EncodeTSDelay(uint32(b.Delay)),
			cumP:    cum,
		})
		if err := t.build(b.Then, branchPath, id|levelBits, shift+width, depth+1, delayed || b.Delay > 0, drugs); err != nil {
			return err
		}
	}
	if math.Abs(cum-1.0) > cumPTolerance {
		return fmt.Errorf("case management tree: node %q branch probabilities sum to %v, want 1.0", path, cum)
	}
	t.nodes[id] = bs
	return nil
}

// checkReachable exhaustively verifies that every id a traversal can
// produce masks to a tree entry. Should never fail for a tree built by
// build; it guards against index-construction bugs.
func (t *Tree) checkReachable() error {
	for ct := CaseType(0); ct < numCaseTypes; ct++ {
		id := t.caseField.Encode(uint32(ct))
		if err := t.walk(id, t.caseField.Mask(), t.depth); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) walk(id, mask CMID, budget int) error {
	if budget < 0 {
		return fmt.Errorf("case management tree: traversal from id %#x does not terminate", id)
	}
	n, ok := t.nodes[id&mask]
	if !ok {
		return fmt.Errorf("case management tree: masked id %#x has no entry", id&mask)
	}
	bs, isBranch := n.(*branchSet)
	if !isBranch {
		return nil
	}
	for _, b := range bs.branches {
		if err := t.walk(id|b.outcome, mask|bs.field.Mask(), budget-1); err != nil {
			return err
		}
	}
	return nil
}

// Depth returns the number of decision levels on the deepest path.
func (t *Tree) Depth() int { return t.depth }

// Execute performs exactly one root-to-leaf traversal for the given
// pathogenesis state, appends the selected treatment's medications (with
// the decoded seeking delay) to queue, and returns the final id.
//
// One uniform draw is consumed per probability-branch set passed through.
// Branch entries are tried in declaration order; the first whose cumulative
// probability exceeds the draw wins, and the last entry wins if floating
// rounding leaves none (draws >= the final cumP select it).
//
// A masked id without a tree entry is unreachable on a validated tree and
// panics.
func (t *Tree) Execute(queue *[]MedicateData, pg State, ageYears float64, rng UniformSource) CMID {
	_ = ageYears // participates in reporting classification only, not in lookup

	id := t.caseField.Encode(uint32(pg.CaseType()))
	mask := t.caseField.Mask()
	for level := 0; level <= t.depth; level++ {
		n, ok := t.nodes[id&mask]
		if !ok {
			panic(fmt.Sprintf("clinical: masked id %#x has no tree entry", id&mask))
		}
		switch n := n.(type) {
		case *leaf:
			n.ct.Apply(queue, id)
			return id
		case *branchSet:
			draw := rng.Float64()
			chosen := n.branches[len(n.branches)-1]
			for _, b := range n.branches {
				if draw < b.cumP {
					chosen = b
					break
				}
			}
			id |= chosen.outcome
			mask |= n.field.Mask()
		}
	}
	panic(fmt.Sprintf("clinical: traversal from case type %d exceeded tree depth %d", pg.CaseType(), t.depth))
}

// === CaseManager ===

// CaseManager holds the currently active tree plus the mass-drug-
// administration schedule. The tree pointer may be swapped mid-run by a
// health-system change deployment; the trees themselves stay immutable.
type CaseManager struct {
	tree *Tree
	mda  *CaseTreatment
}

// NewCaseManager builds the initial tree and, if configured, the MDA
// schedule.
func NewCaseManager(tree *TreeConfig, mda *LeafConfig, drugs *DrugRegistry) (*CaseManager, error) {
	t, err := BuildTree(tree, drugs)
	if err != nil {
		return nil, err
	}
	cm := &CaseManager{tree: t}
	if mda != nil {
		ms := make([]MedicateData, 0, len(mda.Medications))
		for _, m := range mda.Medications {
			if _, err := drugs.Get(m.Drug); err != nil {
				return nil, fmt.Errorf("mass drug administration: %w", err)
			}
			ms = append(ms, MedicateData{Abbrev: m.Drug, Qty: m.Qty, TimeMinutes: m.Time})
		}
		ct := NewCaseTreatment(ms)
		cm.mda = &ct
	}
	return cm, nil
}

// Execute runs the active tree. See Tree.Execute.
func (cm *CaseManager) Execute(queue *[]MedicateData, pg State, ageYears float64, rng UniformSource) CMID {
	return cm.tree.Execute(queue, pg, ageYears, rng)
}

// SetTree swaps in a replacement tree (health-system change).
func (cm *CaseManager) SetTree(t *Tree) { cm.tree = t }

// Tree returns the active tree.
func (cm *CaseManager) Tree() *Tree { return cm.tree }

// HasMDA reports whether a mass-drug-administration schedule is configured.
func (cm *CaseManager) HasMDA() bool { return cm.mda != nil }

// MassDrugAdministration appends the MDA schedule to queue with zero
// seeking delay. Consumes no randomness.
func (cm *CaseManager) MassDrugAdministration(queue *[]MedicateData) {
	if cm.mda == nil {
		panic("clinical: mass drug administration deployed without a configured schedule")
	}
	cm.mda.Apply(queue, 0)
}
