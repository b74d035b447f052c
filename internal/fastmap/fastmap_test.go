package fastmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapBasic(t *testing.T) {
	m := &Map[int]{}

	_, ok := m.Get(1)
	require.False(t, ok)

	m.Set(1, 100)
	m.Set(2, 200)

	v, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, 100, v)

	v, ok = m.Get(2)
	require.True(t, ok)
	require.Equal(t, 200, v)

	_, ok = m.Get(3)
	require.False(t, ok)

	m.Set(1, 300)
	v, ok = m.Get(1)
	require.True(t, ok)
	require.Equal(t, 300, v)

	require.Equal(t, 2, m.Len())
}

func TestMapGrows(t *testing.T) {
	m := &Map[int]{}
	const n = 10000
	for i := 0; i < n; i++ {
		m.Set(uint64(i), i*2)
	}
	require.Equal(t, n, m.Len())
	for i := 0; i < n; i++ {
		v, ok := m.Get(uint64(i))
		require.True(t, ok)
		require.Equal(t, i*2, v)
	}
}

func TestMapRandomKeys(t *testing.T) {
	m := &Map[int]{}
	want := make(map[uint64]int)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		key := r.Uint64() % 5000
		val := r.Int()
		m.Set(key, val)
		want[key] = val
	}
	for key, val := range want {
		v, ok := m.Get(key)
		require.True(t, ok)
		require.Equal(t, val, v)
	}
}
