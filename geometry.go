package rtreedb

// dim is a closed integer interval [Low, High] on one axis. Construction
// from two arbitrary corner values always yields Low <= High: swapping on
// construction is a deliberate design choice so any two corner points can
// seed a box without a separate validity check.
type dim struct {
	Low, High int64
}

func newDim(a, b int64) dim {
	if a > b {
		a, b = b, a
	}
	return dim{Low: a, High: b}
}

func (d dim) width() int64 {
	return d.High - d.Low
}

func (d dim) contains(o dim) bool {
	return d.Low <= o.Low && o.High <= d.High
}

func (d dim) overlaps(o dim) bool {
	return d.Low <= o.High && o.Low <= d.High
}

func (d dim) union(o dim) dim {
	low, high := d.Low, d.High
	if o.Low < low {
		low = o.Low
	}
	if o.High > high {
		high = o.High
	}
	return dim{Low: low, High: high}
}

// box is a minimum bounding rectangle: an ordered tuple of D dims. It is
// the in-memory counterpart of the on-disk `mbr` field.
type box struct {
	dims []dim
}

// newPointBox builds a degenerate (zero-width on every axis) box around a
// single point.
func newPointBox(point []int64) box {
	dims := make([]dim, len(point))
	for i, c := range point {
		dims[i] = dim{Low: c, High: c}
	}
	return box{dims: dims}
}

// newBoxFromCorners builds a box from two arbitrary corner points,
// swapping per-axis as needed.
func newBoxFromCorners(a, b []int64) box {
	dims := make([]dim, len(a))
	for i := range a {
		dims[i] = newDim(a[i], b[i])
	}
	return box{dims: dims}
}

func (b box) clone() box {
	dims := make([]dim, len(b.dims))
	copy(dims, b.dims)
	return box{dims: dims}
}

// volume is the product of per-axis widths. Zero when any axis is
// degenerate (a stored point). Uses a 64-bit accumulator; callers working
// with very large coordinate ranges should keep D and coordSize modest.
func (b box) volume() int64 {
	v := int64(1)
	for _, d := range b.dims {
		v *= d.width()
	}
	return v
}

// metricVolume is volume() but treats degenerate (zero-width) axes as
// contributing a factor of 1 instead of 0. Used only by the split
// distribution's enlargement comparator, never by
// descent's plain volume() comparisons.
func (b box) metricVolume() int64 {
	v := int64(1)
	for _, d := range b.dims {
		if w := d.width(); w != 0 {
			v *= w
		}
	}
	return v
}

func (b box) contains(o box) bool {
	if len(b.dims) != len(o.dims) {
		return false
	}
	for i := range b.dims {
		if !b.dims[i].contains(o.dims[i]) {
			return false
		}
	}
	return true
}

func (b box) overlaps(o box) bool {
	if len(b.dims) != len(o.dims) {
		return false
	}
	for i := range b.dims {
		if !b.dims[i].overlaps(o.dims[i]) {
			return false
		}
	}
	return true
}

func (b box) equalBounds(o box) bool {
	if len(b.dims) != len(o.dims) {
		return false
	}
	for i := range b.dims {
		if b.dims[i] != o.dims[i] {
			return false
		}
	}
	return true
}

// union returns the smallest box covering both b and o.
func (b box) union(o box) box {
	dims := make([]dim, len(b.dims))
	for i := range b.dims {
		dims[i] = b.dims[i].union(o.dims[i])
	}
	return box{dims: dims}
}

// grow extends b by step on each axis, on both sides, returning a new box.
func (b box) grow(step []int64) box {
	dims := make([]dim, len(b.dims))
	for i := range b.dims {
		dims[i] = dim{Low: b.dims[i].Low - step[i], High: b.dims[i].High + step[i]}
	}
	return box{dims: dims}
}

// enlargementCost is volume(union(b, o)) - volume(b), the greedy figure
// of merit used by descent.
func (b box) enlargementCost(o box) int64 {
	return b.union(o).volume() - b.volume()
}

// metricEnlargementCost mirrors enlargementCost but via metricVolume, used
// only inside split distribution.
func (b box) metricEnlargementCost(o box) int64 {
	return b.union(o).metricVolume() - b.metricVolume()
}

func point(coords []int64) []int64 {
	out := make([]int64, len(coords))
	copy(out, coords)
	return out
}
