package rtreedb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T, dims int, pageSize int) *Engine {
	t.Helper()
	cfg := testConfig(t)
	cfg.Dimensions = dims
	if pageSize != 0 {
		cfg.PageSize = pageSize
	}
	cfg.applyDefaults()
	e, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineInsertAndSearchPoint(t *testing.T) {
	e := openTestEngine(t, 2, 0)

	require.NoError(t, e.Insert([]int64{1, 2}, []byte("a")))
	require.NoError(t, e.Insert([]int64{5, 5}, []byte("b")))

	rec, err := e.SearchPoint([]int64{1, 2})
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, []byte("a"), rec.Payload)

	missing, err := e.SearchPoint([]int64{99, 99})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestEngineInsertRejectsWrongDimensionality(t *testing.T) {
	e := openTestEngine(t, 2, 0)
	err := e.Insert([]int64{1, 2, 3}, []byte("x"))
	require.Error(t, err)
	require.Equal(t, ErrDimMismatch, Code(err))
}

func TestEngineSearchWindow(t *testing.T) {
	e := openTestEngine(t, 2, 0)

	require.NoError(t, e.Insert([]int64{0, 0}, []byte("origin")))
	require.NoError(t, e.Insert([]int64{5, 5}, []byte("mid")))
	require.NoError(t, e.Insert([]int64{100, 100}, []byte("far")))

	results, err := e.SearchWindow([]int64{-1, -1}, []int64{10, 10})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var payloads []string
	for _, r := range results {
		payloads = append(payloads, string(r.Payload))
	}
	require.ElementsMatch(t, []string{"origin", "mid"}, payloads)
}

func TestEngineSearchKNN(t *testing.T) {
	e := openTestEngine(t, 2, 0)

	points := [][]int64{{0, 0}, {1, 0}, {5, 5}, {10, 10}, {2, 0}}
	for i, p := range points {
		require.NoError(t, e.Insert(p, []byte{byte(i)}))
	}

	results, err := e.SearchKNN(3, []int64{0, 0})
	require.NoError(t, err)
	require.Len(t, results, 3)

	want := map[string]bool{"[0 0]": true, "[1 0]": true, "[2 0]": true}
	for _, r := range results {
		key := fmt.Sprint(r.Coordinates)
		require.True(t, want[key], "unexpected neighbour %v", r.Coordinates)
	}
}

func TestEngineSearchKNNOnSinglePointTreeTerminates(t *testing.T) {
	e := openTestEngine(t, 2, 0)
	require.NoError(t, e.Insert([]int64{7, 7}, []byte("only")))

	results, err := e.SearchKNN(1, []int64{7, 7})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, []byte("only"), results[0].Payload)
}

func TestEngineDeleteTombstonesAndHidesRecord(t *testing.T) {
	e := openTestEngine(t, 2, 0)
	require.NoError(t, e.Insert([]int64{3, 3}, []byte("x")))

	deleted, err := e.Delete([]int64{3, 3})
	require.NoError(t, err)
	require.True(t, deleted)

	rec, err := e.SearchPoint([]int64{3, 3})
	require.NoError(t, err)
	require.Nil(t, rec)

	deletedAgain, err := e.Delete([]int64{3, 3})
	require.NoError(t, err)
	require.False(t, deletedAgain)
}

func TestEngineForcesSplitUnderSmallCapacity(t *testing.T) {
	// A small page size yields a small fan-out, forcing handleOverflow to
	// run well before a realistic page size would.
	e := openTestEngine(t, 2, 64)
	statBefore := e.Stat()

	n := statBefore.FanOut + 3
	for i := 0; i < n; i++ {
		require.NoError(t, e.Insert([]int64{int64(i), int64(i * 2)}, []byte{byte(i)}))
	}

	statAfter := e.Stat()
	require.Greater(t, statAfter.HighestID, statBefore.HighestID)

	for i := 0; i < n; i++ {
		rec, err := e.SearchPoint([]int64{int64(i), int64(i * 2)})
		require.NoError(t, err)
		require.NotNil(t, rec, "point %d should still be found after splits", i)
	}
}

func TestEngineRebuildPreservesLiveRecords(t *testing.T) {
	e := openTestEngine(t, 2, 64)

	for i := 0; i < 20; i++ {
		require.NoError(t, e.Insert([]int64{int64(i), int64(-i)}, []byte{byte(i)}))
	}
	deleted, err := e.Delete([]int64{5, -5})
	require.NoError(t, err)
	require.True(t, deleted)

	require.NoError(t, e.Rebuild())

	for i := 0; i < 20; i++ {
		rec, err := e.SearchPoint([]int64{int64(i), int64(-i)})
		require.NoError(t, err)
		if i == 5 {
			require.Nil(t, rec)
			continue
		}
		require.NotNil(t, rec)
	}
}

func TestEngineReopenRejectsIncompatibleDimensions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dimensions = 2
	cfg.applyDefaults()
	e, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	cfg.Dimensions = 3
	_, err = Open(cfg)
	require.Error(t, err)
	require.Equal(t, ErrIncompatibleTree, Code(err))
}

func TestEngineNodesVisitsEveryReachableNodeOnce(t *testing.T) {
	e := openTestEngine(t, 2, 64)
	for i := 0; i < 30; i++ {
		require.NoError(t, e.Insert([]int64{int64(i), int64(i)}, nil))
	}

	nodes, err := e.Nodes()
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	seen := map[int64]bool{}
	for _, n := range nodes {
		require.False(t, seen[n.ID], "node %d visited twice", n.ID)
		seen[n.ID] = true
	}

	var leaves int
	for _, n := range nodes {
		if n.Leaf {
			leaves++
		}
	}
	require.Greater(t, leaves, 0)
}

func TestEngineStatReportsConfig(t *testing.T) {
	e := openTestEngine(t, 3, 0)
	s := e.Stat()
	require.Equal(t, 3, s.Dimensions)
	require.Equal(t, int64(0), s.RootID)
	require.Equal(t, int64(0), s.HighestID)

	require.NoError(t, e.Insert([]int64{1, 2, 3}, []byte("x")))
	require.Equal(t, int64(0), e.Stat().HighestID)
}
