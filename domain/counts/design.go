package counts

import (
	"fmt"
	"sort"

	"godiffexpr/domain/core"
)

// Design maps every sample to exactly one condition label with a designated
// reference (baseline) level. Levels are resolved to a fixed enumeration at
// construction, reference first, and never mutated afterwards.
type Design struct {
	conditions map[core.SampleName]core.Condition
	levels     []core.Condition // reference at index 0
	levelIndex map[core.Condition]int
	hash       core.DesignHash
}

// NewDesign validates sample-to-condition assignments against the matrix
// columns and builds the level enumeration with the reference level first.
func NewDesign(m *Matrix, conditions map[core.SampleName]core.Condition, reference core.Condition) (*Design, error) {
	if m == nil {
		return nil, core.NewValidationError("design", "count matrix is nil")
	}
	for _, s := range m.Samples() {
		if _, ok := conditions[s]; !ok {
			return nil, core.NewDesignMismatchError(fmt.Sprintf("sample %s has no condition label", s))
		}
	}
	for s := range conditions {
		if _, ok := m.SampleIndex(s); !ok {
			return nil, core.NewDesignMismatchError(fmt.Sprintf("design sample %s not in matrix", s))
		}
	}

	observed := make(map[core.Condition]bool, 2)
	for _, c := range conditions {
		observed[c] = true
	}
	if !observed[reference] {
		return nil, fmt.Errorf("%w: %s", core.ErrReferenceMissing, reference)
	}

	others := make([]string, 0, len(observed)-1)
	for c := range observed {
		if c != reference {
			others = append(others, string(c))
		}
	}
	sort.Strings(others)

	levels := make([]core.Condition, 0, len(observed))
	levels = append(levels, reference)
	for _, c := range others {
		levels = append(levels, core.Condition(c))
	}
	levelIndex := make(map[core.Condition]int, len(levels))
	for i, c := range levels {
		levelIndex[c] = i
	}

	copied := make(map[core.SampleName]core.Condition, len(conditions))
	for s, c := range conditions {
		copied[s] = c
	}

	return &Design{
		conditions: copied,
		levels:     levels,
		levelIndex: levelIndex,
		hash:       core.ComputeDesignHash(copied, reference),
	}, nil
}

// Condition returns the condition label for a sample.
func (d *Design) Condition(s core.SampleName) core.Condition {
	return d.conditions[s]
}

// Reference returns the baseline condition level.
func (d *Design) Reference() core.Condition {
	return d.levels[0]
}

// Levels returns the condition levels, reference first.
func (d *Design) Levels() []core.Condition {
	return append([]core.Condition(nil), d.levels...)
}

// LevelIndex returns the position of a condition in the level enumeration.
func (d *Design) LevelIndex(c core.Condition) (int, bool) {
	i, ok := d.levelIndex[c]
	return i, ok
}

// NumLevels returns the number of distinct condition levels.
func (d *Design) NumLevels() int { return len(d.levels) }

// Hash returns the deterministic content fingerprint.
func (d *Design) Hash() core.DesignHash { return d.hash }

// Blinded returns a design with every sample assigned to a single condition.
// Used when the dispersion trend must be estimated ignoring group labels.
func (d *Design) Blinded() *Design {
	const blind core.Condition = "all"
	conditions := make(map[core.SampleName]core.Condition, len(d.conditions))
	for s := range d.conditions {
		conditions[s] = blind
	}
	return &Design{
		conditions: conditions,
		levels:     []core.Condition{blind},
		levelIndex: map[core.Condition]int{blind: 0},
		hash:       core.ComputeDesignHash(conditions, blind),
	}
}

// ConditionIndices returns, per level (reference first), the matrix column
// indices belonging to that level.
func (d *Design) ConditionIndices(m *Matrix) [][]int {
	groups := make([][]int, len(d.levels))
	for j, s := range m.Samples() {
		li := d.levelIndex[d.conditions[s]]
		groups[li] = append(groups[li], j)
	}
	return groups
}
