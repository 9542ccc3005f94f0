package factory

import (
	"fmt"
)

// grid is one frame of test data laid out row by row.
type grid struct {
	name       string
	rows, cols int
	data       []uint32
}

func grid16(name string, rows, cols int, v []uint16) grid {
	g := grid{name: name, rows: rows, cols: cols, data: make([]uint32, len(v))}
	for i, x := range v {
		g.data[i] = uint32(x)
	}
	return g
}

func (g grid) nodes() int {
	return g.rows * g.cols
}

func (g grid) at(row, col int) uint32 {
	return g.data[row*g.cols+col]
}

// bounds are the thresholds applied to one grid. A nil slice disables
// that bound.
type bounds struct {
	min, max []int
	perNode  bool
}

func (b bounds) limit(t []int, offset int) int {
	if b.perNode {
		return t[offset]
	}
	return t[0]
}

// check rejects per node thresholds shorter than the grid.
func (b bounds) check(g grid) error {
	if !b.perNode {
		return nil
	}
	for _, t := range []struct {
		name string
		v    []int
	}{{"min", b.min}, {"max", b.max}} {
		if t.v != nil && len(t.v) < g.nodes() {
			return &ThresholdError{Name: g.name + " " + t.name, Len: len(t.v), Nodes: g.nodes()}
		}
	}
	return nil
}

// validate compares every node of g that is not excluded with b and
// returns the failing nodes.
func validate(g grid, b bounds, excluded []NodeKey, logger Logger) ([]NodeKey, error) {
	if err := b.check(g); err != nil {
		return nil, err
	}

	skip := make(map[NodeKey]bool, len(excluded))
	for _, k := range excluded {
		skip[k] = true
	}

	if logger != nil {
		logger.Debug("validate data", "desc", g.name, "per_node", b.perNode,
			"excluded", len(excluded), "min", len(b.min), "max", len(b.max))
	}

	var failed []NodeKey
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			key := MakeNodeKey(r, c)
			if skip[key] {
				continue
			}

			offset := r*g.cols + c
			v := int64(g.data[offset])
			if (b.min != nil && v < int64(b.limit(b.min, offset))) ||
				(b.max != nil && v > int64(b.limit(b.max, offset))) {
				failed = append(failed, key)
				if logger != nil {
					logger.Info(fmt.Sprintf("  %3d: [%-2d][%-2d] = %d,", len(failed), r, c, v))
				}
			}
		}
	}

	if len(failed) > 0 && logger != nil {
		logger.Info(fmt.Sprintf("%s test %d node total failed", g.name, len(failed)))
	}
	return failed, nil
}

// splitThresholds returns the mutual and self thresholds of a panel with
// the given node counts.
func splitThresholds(all, self []int, mutualNodes, selfNodes int, perNode bool) (mutual, selfT []int) {
	mutual, selfT = all, self
	switch {
	case len(all) == 0:
		mutual = nil
	case perNode && len(all) >= mutualNodes+selfNodes:
		mutual = all[:mutualNodes]
		if selfT == nil {
			selfT = all[mutualNodes : mutualNodes+selfNodes]
		}
	case !perNode && selfT == nil:
		selfT = all
	}
	if len(selfT) == 0 {
		selfT = nil
	}
	return mutual, selfT
}

// bounds returns the mutual and self bounds selected by p.
func (p *Params) bounds(mutualNodes, selfNodes int) (mutual, self bounds) {
	var min, max, selfMin, selfMax []int
	if p.Flags.ValidateMin {
		min, selfMin = splitThresholds(p.Min, p.SelfMin, mutualNodes, selfNodes, p.Flags.ValidatePerNode)
	}
	if p.Flags.ValidateMax {
		max, selfMax = splitThresholds(p.Max, p.SelfMax, mutualNodes, selfNodes, p.Flags.ValidatePerNode)
	}

	mutual = bounds{min: min, max: max, perNode: p.Flags.ValidatePerNode}
	self = bounds{min: selfMin, max: selfMax, perNode: p.Flags.ValidatePerNode}
	return mutual, self
}
