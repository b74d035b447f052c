package rtreedb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDimSwapsOutOfOrderCorners(t *testing.T) {
	d := newDim(5, 2)
	require.Equal(t, int64(2), d.Low)
	require.Equal(t, int64(5), d.High)
}

func TestDimContainsAndOverlaps(t *testing.T) {
	outer := newDim(0, 10)
	inner := newDim(2, 8)
	require.True(t, outer.contains(inner))
	require.False(t, inner.contains(outer))

	adjacent := newDim(10, 20)
	require.True(t, outer.overlaps(adjacent))

	disjoint := newDim(11, 20)
	require.False(t, outer.overlaps(disjoint))
}

func TestDimUnion(t *testing.T) {
	a := newDim(0, 5)
	b := newDim(3, 10)
	u := a.union(b)
	require.Equal(t, dim{Low: 0, High: 10}, u)
}

func TestBoxVolumeAndMetricVolume(t *testing.T) {
	point := newPointBox([]int64{1, 1})
	require.Equal(t, int64(0), point.volume())
	require.Equal(t, int64(1), point.metricVolume())

	rect := newBoxFromCorners([]int64{0, 0}, []int64{4, 3})
	require.Equal(t, int64(12), rect.volume())
	require.Equal(t, int64(12), rect.metricVolume())
}

func TestBoxContainsOverlapsUnion(t *testing.T) {
	outer := newBoxFromCorners([]int64{0, 0}, []int64{10, 10})
	inner := newBoxFromCorners([]int64{2, 2}, []int64{5, 5})
	require.True(t, outer.contains(inner))
	require.False(t, inner.contains(outer))
	require.True(t, outer.overlaps(inner))

	other := newBoxFromCorners([]int64{20, 20}, []int64{30, 30})
	require.False(t, outer.overlaps(other))

	u := outer.union(other)
	require.Equal(t, int64(0), u.dims[0].Low)
	require.Equal(t, int64(30), u.dims[0].High)
}

func TestBoxEqualBounds(t *testing.T) {
	a := newBoxFromCorners([]int64{0, 0}, []int64{1, 1})
	b := newBoxFromCorners([]int64{1, 1}, []int64{0, 0})
	require.True(t, a.equalBounds(b))

	c := newBoxFromCorners([]int64{0, 0}, []int64{2, 1})
	require.False(t, a.equalBounds(c))
}

func TestBoxGrow(t *testing.T) {
	b := newPointBox([]int64{5, 5})
	grown := b.grow([]int64{2, 3})
	require.Equal(t, int64(3), grown.dims[0].Low)
	require.Equal(t, int64(7), grown.dims[0].High)
	require.Equal(t, int64(2), grown.dims[1].Low)
	require.Equal(t, int64(8), grown.dims[1].High)
}

func TestBoxEnlargementCost(t *testing.T) {
	b := newBoxFromCorners([]int64{0, 0}, []int64{4, 4})
	inside := newBoxFromCorners([]int64{1, 1}, []int64{2, 2})
	require.Equal(t, int64(0), b.enlargementCost(inside))

	outside := newBoxFromCorners([]int64{4, 4}, []int64{8, 8})
	require.Greater(t, b.enlargementCost(outside), int64(0))
}

func TestBoxMetricEnlargementCostHandlesDegenerateAxis(t *testing.T) {
	// A box degenerate on one axis still reports a meaningful enlargement
	// cost via metricVolume, where volume() would stay zero either way.
	flat := newBoxFromCorners([]int64{0, 0}, []int64{4, 0})
	grown := newBoxFromCorners([]int64{0, 0}, []int64{4, 5})
	require.Equal(t, int64(0), flat.volume())
	require.Greater(t, flat.metricEnlargementCost(grown), int64(0))
}

func TestPointCopiesInput(t *testing.T) {
	src := []int64{1, 2, 3}
	out := point(src)
	out[0] = 99
	require.Equal(t, int64(1), src[0])
}

func TestBoxCloneIsIndependent(t *testing.T) {
	b := newBoxFromCorners([]int64{0, 0}, []int64{1, 1})
	c := b.clone()
	c.dims[0] = dim{Low: 9, High: 9}
	require.NotEqual(t, b.dims[0], c.dims[0])
}
