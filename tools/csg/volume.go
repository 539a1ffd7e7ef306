package csg

import "math"

// Discrepancy is the symmetric difference between two shapes, split into
// its two one-sided parts
type Discrepancy struct {
	CurrentMinusTarget float64 `yaml:"current_minus_target"`
	TargetMinusCurrent float64 `yaml:"target_minus_current"`
}

// Total returns vol(current - target) + vol(target - current)
func (d Discrepancy) Total() float64 {
	return d.CurrentMinusTarget + d.TargetMinusCurrent
}

// SymmetricDifference estimates the volume where exactly one of current and
// target is solid by sampling cell centres of a uniform grid over the union
// of their bounding boxes
func SymmetricDifference(current, target *Shape, cells int) Discrepancy {
	if cells <= 0 {
		cells = DefaultCells
	}
	var d Discrepancy
	lo, hi, ok := unionBounds(current, target)
	if !ok {
		return d
	}
	longest := math.Max(hi[0]-lo[0], math.Max(hi[1]-lo[1], hi[2]-lo[2]))
	if longest <= 0 {
		return d
	}
	step := longest / float64(cells)
	nx := int(math.Ceil((hi[0] - lo[0]) / step))
	ny := int(math.Ceil((hi[1] - lo[1]) / step))
	nz := int(math.Ceil((hi[2] - lo[2]) / step))
	cellVolume := step * step * step

	var onlyCurrent, onlyTarget int
	for k := 0; k < nz; k++ {
		z := lo[2] + (float64(k)+0.5)*step
		for j := 0; j < ny; j++ {
			y := lo[1] + (float64(j)+0.5)*step
			for i := 0; i < nx; i++ {
				x := lo[0] + (float64(i)+0.5)*step
				inCurrent := current.Evaluate(x, y, z) < 0
				inTarget := target.Evaluate(x, y, z) < 0
				switch {
				case inCurrent && !inTarget:
					onlyCurrent++
				case inTarget && !inCurrent:
					onlyTarget++
				}
			}
		}
	}
	d.CurrentMinusTarget = float64(onlyCurrent) * cellVolume
	d.TargetMinusCurrent = float64(onlyTarget) * cellVolume
	return d
}

// SampledVolume estimates the volume of a shape on the same grid that
// SymmetricDifference uses
func SampledVolume(s *Shape, cells int) float64 {
	return SymmetricDifference(s, Empty(), cells).CurrentMinusTarget
}

func unionBounds(shapes ...*Shape) (lo, hi [3]float64, ok bool) {
	for _, s := range shapes {
		if s.IsEmpty() {
			continue
		}
		smin, smax := s.Bounds()
		if !ok {
			lo, hi, ok = smin, smax, true
			continue
		}
		for i := 0; i < 3; i++ {
			lo[i] = math.Min(lo[i], smin[i])
			hi[i] = math.Max(hi[i], smax[i])
		}
	}
	return lo, hi, ok
}
