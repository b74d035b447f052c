package rtreedb

import (
	"os"
	"sort"
)

// Record is a decoded, exported record: the coordinates and payload the
// caller gave to Insert. Returned by every search operation.
type Record struct {
	Coordinates []int64
	Payload     []byte
}

// NodeInfo is a read-only snapshot of one tree node, used by Nodes() for
// debugging and visualization consumers.
type NodeInfo struct {
	ID       int64
	ParentID int64
	Leaf     bool
	Depth    int
	Box      [][2]int64
}

// Stat summarizes the current shape of an open tree.
type Stat struct {
	Dimensions  int
	FanOut      int
	TreeDepth   int
	RootID      int64
	HighestID   int64
	MinFill     float64
	CacheBudget int
}

// Engine is the public R-tree handle. It owns the paged tree store, the
// record store, and a small node cache, and exposes insert/search/
// delete/rebuild.
type Engine struct {
	cfg        Config
	tree       *treeStore
	records    *recordStore
	cache      *nodeCache
	dimensions int
	fanOut     int
	minFill    float64
}

// Open opens (or creates) the tree/record file pair described by cfg.
func Open(cfg Config) (*Engine, error) {
	cfg.applyDefaults()

	if cfg.Override {
		_ = os.Remove(cfg.TreePath)
		_ = os.Remove(cfg.RecordPath)
	}

	tree, err := openTreeStore(cfg.TreePath, cfg)
	if err != nil {
		return nil, err
	}

	records, err := openRecordStore(cfg.RecordPath, cfg, tree.uniqueSequence(), tree.hash())
	if err != nil {
		tree.close()
		return nil, err
	}

	if tree.header.highestID == NullID {
		root := newEmptyNode(cfg.Dimensions, true, RootParentID)
		rootID, err := tree.create(root)
		if err != nil {
			tree.close()
			records.close()
			return nil, err
		}
		if err := tree.setRootID(rootID); err != nil {
			tree.close()
			records.close()
			return nil, err
		}
	}

	e := &Engine{
		cfg:        cfg,
		tree:       tree,
		records:    records,
		cache:      newNodeCache(tree.fanOut(), cfg.PageSize, cfg.CacheBudget),
		dimensions: tree.dimensions(),
		fanOut:     tree.fanOut(),
		minFill:    cfg.MinFill,
	}
	return e, nil
}

// Close flushes and releases both underlying files.
func (e *Engine) Close() error {
	err1 := e.tree.close()
	err2 := e.records.close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (e *Engine) rootID() int64 { return e.tree.rootID() }

func (e *Engine) checkDims(coords []int64) error {
	if len(coords) != e.dimensions {
		return NewError(ErrDimMismatch)
	}
	return nil
}

// getNode fetches a node by id, consulting the cache first. permanent
// signals this lookup is near the top of the tree (root or its immediate
// children).
func (e *Engine) getNode(id int64, permanent bool) (*node, error) {
	if n := e.cache.get(id, permanent); n != nil {
		return n, nil
	}
	n, err := e.tree.get(id)
	if err != nil {
		return nil, err
	}
	e.cache.put(id, n, permanent)
	return n, nil
}

func (e *Engine) putNode(n *node) error {
	if err := e.tree.update(n.id, n); err != nil {
		return err
	}
	e.cache.put(n.id, n, n.id == e.rootID() || n.parentID == e.rootID())
	return nil
}

// --- insert -----------------------------------------------------------

// Insert adds point with the given opaque payload to the index.
func (e *Engine) Insert(pointCoords []int64, payload []byte) error {
	if err := e.checkDims(pointCoords); err != nil {
		return err
	}
	offset, err := e.records.create(point(pointCoords), payload)
	if err != nil {
		return err
	}

	targetBox := newPointBox(pointCoords)
	leaf, err := e.chooseLeaf(targetBox)
	if err != nil {
		return err
	}

	if leaf.isFull(e.fanOut) {
		return e.handleOverflow(leaf, offset, targetBox)
	}

	if err := leaf.insertChild(e.fanOut, offset, targetBox); err != nil {
		return err
	}
	if err := e.putNode(leaf); err != nil {
		return err
	}
	return e.propagateEnlargement(leaf)
}

// chooseLeaf descends from the root to the leaf that should receive
// targetBox.
func (e *Engine) chooseLeaf(targetBox box) (*node, error) {
	n, err := e.getNode(e.rootID(), true)
	if err != nil {
		return nil, err
	}
	for !n.leaf {
		childID, err := e.pickDescentChild(n, targetBox)
		if err != nil {
			return nil, err
		}
		n, err = e.getNode(childID, n.id == e.rootID())
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (e *Engine) pickDescentChild(n *node, targetBox box) (int64, error) {
	nearTop := n.id == e.rootID()

	bestContainID := NullID
	var bestContainVol int64
	for _, cid := range n.children {
		child, err := e.getNode(cid, nearTop)
		if err != nil {
			return NullID, err
		}
		if child.mbr.contains(targetBox) {
			vol := child.mbr.volume()
			if bestContainID == NullID || vol < bestContainVol {
				bestContainID, bestContainVol = cid, vol
			}
		}
	}
	if bestContainID != NullID {
		return bestContainID, nil
	}

	bestID := NullID
	var bestCost, bestVol int64
	for _, cid := range n.children {
		child, err := e.getNode(cid, nearTop)
		if err != nil {
			return NullID, err
		}
		cost := child.mbr.enlargementCost(targetBox)
		resultVol := child.mbr.union(targetBox).volume()
		if bestID == NullID || cost < bestCost || (cost == bestCost && resultVol < bestVol) {
			bestID, bestCost, bestVol = cid, cost, resultVol
		}
	}
	return bestID, nil
}

// --- overflow / split ---------------------------------------------------

type overflowEntry struct {
	ref int64
	box box
}

func (e *Engine) collectEntries(n *node) ([]overflowEntry, error) {
	entries := make([]overflowEntry, 0, len(n.children)+1)
	for _, ref := range n.children {
		var b box
		if n.leaf {
			rec, err := e.records.get(ref)
			if err != nil {
				return nil, err
			}
			b = rec.box()
		} else {
			child, err := e.getNode(ref, n.id == e.rootID())
			if err != nil {
				return nil, err
			}
			b = child.mbr
		}
		entries = append(entries, overflowEntry{ref: ref, box: b})
	}
	return entries, nil
}

// pickSplitTarget decides which seed an overflowing entry should join,
// applying balance, then enlargement cost, then volume, in that order.
func (e *Engine) pickSplitTarget(seedA, seedB *node, entryBox box) *node {
	if seedA.hasOverBalance(e.fanOut, e.minFill) {
		return seedB
	}
	if seedB.hasOverBalance(e.fanOut, e.minFill) {
		return seedA
	}
	costA := seedA.mbr.metricEnlargementCost(entryBox)
	costB := seedB.mbr.metricEnlargementCost(entryBox)
	if costA < costB {
		return seedA
	}
	if costB < costA {
		return seedB
	}
	if seedB.mbr.volume() > seedA.mbr.volume() {
		return seedA
	}
	return seedB
}

// handleOverflow splits n (which is about to receive an (M+1)th entry)
// via corner seeding, distributes entries, persists the two resulting
// nodes, and propagates the split upward (or promotes a new root).
func (e *Engine) handleOverflow(n *node, newRef int64, newBox box) error {
	entries, err := e.collectEntries(n)
	if err != nil {
		return err
	}
	entries = append(entries, overflowEntry{ref: newRef, box: newBox})

	seedA, seedB := n.seedSplitPair()
	for _, ent := range entries {
		target := e.pickSplitTarget(seedA, seedB, ent.box)
		if err := target.insertChild(e.fanOut, ent.ref, ent.box); err != nil {
			return err
		}
	}

	wasRoot := n.id == e.rootID()

	seedA.id = n.id
	if err := e.tree.update(seedA.id, seedA); err != nil {
		return err
	}
	e.cache.put(seedA.id, seedA, wasRoot)

	seedBID, err := e.tree.create(seedB)
	if err != nil {
		return err
	}
	seedB.id = seedBID
	e.cache.put(seedB.id, seedB, wasRoot)

	if !seedA.leaf {
		if err := e.reparentChildren(seedA); err != nil {
			return err
		}
	}
	if !seedB.leaf {
		if err := e.reparentChildren(seedB); err != nil {
			return err
		}
	}

	if wasRoot {
		if err := e.promoteRoot(seedA, seedB); err != nil {
			return err
		}
	} else {
		parent, err := e.getNode(n.parentID, n.parentID == e.rootID())
		if err != nil {
			return err
		}
		if parent.isFull(e.fanOut) {
			if err := e.handleOverflow(parent, seedB.id, seedB.mbr); err != nil {
				return err
			}
		} else {
			if err := parent.insertChild(e.fanOut, seedB.id, seedB.mbr); err != nil {
				return err
			}
			if err := e.putNode(parent); err != nil {
				return err
			}
		}
	}

	if err := e.propagateEnlargement(seedA); err != nil {
		return err
	}
	return e.propagateEnlargement(seedB)
}

// reparentChildren rewrites the parent_id of every child of n to n.id.
// Needed after a split because seedB received a freshly allocated id that
// its (non-leaf) children don't yet know about.
func (e *Engine) reparentChildren(n *node) error {
	for _, cid := range n.children {
		child, err := e.getNode(cid, false)
		if err != nil {
			return err
		}
		if child.parentID == n.id {
			continue
		}
		child.parentID = n.id
		if err := e.putNode(child); err != nil {
			return err
		}
	}
	return nil
}

// promoteRoot allocates a new root over seedA/seedB when the current root
// itself overflowed, bumping tree_depth.
func (e *Engine) promoteRoot(seedA, seedB *node) error {
	newRoot := newEmptyNode(e.dimensions, false, RootParentID)
	if err := newRoot.insertChild(e.fanOut, seedA.id, seedA.mbr); err != nil {
		return err
	}
	if err := newRoot.insertChild(e.fanOut, seedB.id, seedB.mbr); err != nil {
		return err
	}
	newRootID, err := e.tree.create(newRoot)
	if err != nil {
		return err
	}
	newRoot.id = newRootID
	if err := e.tree.setRootID(newRootID); err != nil {
		return err
	}
	if err := e.tree.setTreeDepth(e.tree.treeDepth() + 1); err != nil {
		return err
	}
	e.cache.put(newRoot.id, newRoot, true)

	seedA.parentID = newRootID
	seedB.parentID = newRootID
	if err := e.tree.update(seedA.id, seedA); err != nil {
		return err
	}
	if err := e.tree.update(seedB.id, seedB); err != nil {
		return err
	}
	e.cache.put(seedA.id, seedA, true)
	e.cache.put(seedB.id, seedB, true)
	return nil
}

// propagateEnlargement walks from n.parent to the root, widening each
// ancestor's MBR to cover n where needed, stopping as soon as an ancestor
// already fully contains its child.
func (e *Engine) propagateEnlargement(n *node) error {
	if n.parentID == RootParentID {
		return nil
	}
	parent, err := e.getNode(n.parentID, n.parentID == e.rootID())
	if err != nil {
		return err
	}
	if parent.mbr.contains(n.mbr) {
		return nil
	}
	parent.mbr = parent.mbr.union(n.mbr)
	if err := e.putNode(parent); err != nil {
		return err
	}
	return e.propagateEnlargement(parent)
}

// --- search -------------------------------------------------------------

func toRecord(r *record) *Record {
	payload := make([]byte, len(r.payload))
	copy(payload, r.payload)
	return &Record{Coordinates: point(r.coords), Payload: payload}
}

func coordsEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SearchPoint returns the first live record at pointCoords, or nil if
// none exists.
func (e *Engine) SearchPoint(pointCoords []int64) (*Record, error) {
	if err := e.checkDims(pointCoords); err != nil {
		return nil, err
	}
	target := newPointBox(pointCoords)
	root, err := e.getNode(e.rootID(), true)
	if err != nil {
		return nil, err
	}
	return e.recSearchPoint(root, target, pointCoords)
}

func (e *Engine) recSearchPoint(n *node, target box, coords []int64) (*Record, error) {
	if n.leaf {
		for _, off := range n.children {
			rec, err := e.records.get(off)
			if err != nil {
				return nil, err
			}
			if rec.live && coordsEqual(rec.coords, coords) {
				return toRecord(rec), nil
			}
		}
		return nil, nil
	}
	for _, cid := range n.children {
		child, err := e.getNode(cid, n.id == e.rootID())
		if err != nil {
			return nil, err
		}
		if child.mbr.contains(target) {
			found, err := e.recSearchPoint(child, target, coords)
			if err != nil {
				return nil, err
			}
			if found != nil {
				return found, nil
			}
		}
	}
	return nil, nil
}

// SearchWindow returns every live record inside the closed box [lo, hi].
// A zero-width window (lo == hi on every axis) degenerates to a point
// search.
func (e *Engine) SearchWindow(lo, hi []int64) ([]*Record, error) {
	if err := e.checkDims(lo); err != nil {
		return nil, err
	}
	if err := e.checkDims(hi); err != nil {
		return nil, err
	}
	queryBox := newBoxFromCorners(lo, hi)
	root, err := e.getNode(e.rootID(), true)
	if err != nil {
		return nil, err
	}
	var results []*Record
	if err := e.recSearchWindow(root, queryBox, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) recSearchWindow(n *node, queryBox box, out *[]*Record) error {
	if n.leaf {
		for _, off := range n.children {
			rec, err := e.records.get(off)
			if err != nil {
				return err
			}
			if rec.live && queryBox.contains(rec.box()) {
				*out = append(*out, toRecord(rec))
			}
		}
		return nil
	}
	for _, cid := range n.children {
		child, err := e.getNode(cid, n.id == e.rootID())
		if err != nil {
			return err
		}
		if child.mbr.overlaps(queryBox) {
			if err := e.recSearchWindow(child, queryBox, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// ceilPercentStep returns ceil(width * 0.01), the k-NN per-axis growth
// step. A zero or negative width (a root MBR degenerate on this axis,
// e.g. a freshly seeded single-point tree) is floored to a step of 1 so
// the expanding search always terminates (see DESIGN.md).
func ceilPercentStep(width int64) int64 {
	if width <= 0 {
		return 1
	}
	return (width + 99) / 100
}

func squaredDistance(coords, query []int64) int64 {
	var sum int64
	for i := range coords {
		d := coords[i] - query[i]
		sum += d * d
	}
	return sum
}

// SearchKNN returns the k live records closest to point by Euclidean
// distance, implemented as an expanding window search.
func (e *Engine) SearchKNN(k int, pointCoords []int64) ([]*Record, error) {
	if err := e.checkDims(pointCoords); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, nil
	}

	root, err := e.getNode(e.rootID(), true)
	if err != nil {
		return nil, err
	}

	steps := make([]int64, e.dimensions)
	for i, d := range root.mbr.dims {
		steps[i] = ceilPercentStep(d.width())
	}

	searchBox := newPointBox(pointCoords)
	for {
		searchBox = searchBox.grow(steps)

		var found []*Record
		if err := e.recSearchWindow(root, searchBox, &found); err != nil {
			return nil, err
		}

		if len(found) == k {
			return found, nil
		}
		if len(found) > k {
			sort.SliceStable(found, func(i, j int) bool {
				return squaredDistance(found[i].Coordinates, pointCoords) < squaredDistance(found[j].Coordinates, pointCoords)
			})
			return found[:k], nil
		}
		if searchBox.contains(root.mbr) {
			return found, nil
		}
	}
}

// --- delete ---------------------------------------------------------------

// Delete removes the first live record at pointCoords, tombstoning it in
// the record store without shrinking the owning leaf's MBR. Returns
// whether a deletion occurred.
func (e *Engine) Delete(pointCoords []int64) (bool, error) {
	if err := e.checkDims(pointCoords); err != nil {
		return false, err
	}
	target := newPointBox(pointCoords)
	root, err := e.getNode(e.rootID(), true)
	if err != nil {
		return false, err
	}
	leafID, offset, found, err := e.recFindForDelete(root, target, pointCoords)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	leaf, err := e.getNode(leafID, leafID == e.rootID())
	if err != nil {
		return false, err
	}
	leaf.removeChild(offset)
	if err := e.putNode(leaf); err != nil {
		return false, err
	}
	if err := e.records.tombstone(offset); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) recFindForDelete(n *node, target box, coords []int64) (leafID, offset int64, found bool, err error) {
	if n.leaf {
		for _, off := range n.children {
			rec, err := e.records.get(off)
			if err != nil {
				return 0, 0, false, err
			}
			if rec.live && coordsEqual(rec.coords, coords) {
				return n.id, off, true, nil
			}
		}
		return 0, 0, false, nil
	}
	for _, cid := range n.children {
		child, err := e.getNode(cid, n.id == e.rootID())
		if err != nil {
			return 0, 0, false, err
		}
		if child.mbr.contains(target) {
			lid, off, ok, err := e.recFindForDelete(child, target, coords)
			if err != nil {
				return 0, 0, false, err
			}
			if ok {
				return lid, off, true, nil
			}
		}
	}
	return 0, 0, false, nil
}

// --- rebuild ---------------------------------------------------------------

type liveEntry struct {
	coords  []int64
	payload []byte
}

func (e *Engine) collectLive(n *node, out *[]liveEntry) error {
	if n.leaf {
		for _, off := range n.children {
			rec, err := e.records.get(off)
			if err != nil {
				return err
			}
			if rec.live {
				*out = append(*out, liveEntry{coords: point(rec.coords), payload: append([]byte(nil), rec.payload...)})
			}
		}
		return nil
	}
	for _, cid := range n.children {
		child, err := e.getNode(cid, n.id == e.rootID())
		if err != nil {
			return err
		}
		if err := e.collectLive(child, out); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild tears down and recreates both files from scratch, re-inserting
// every live record. Preserves the set of (coords, payload) pairs exactly
// as a multiset, with no tombstones and tight MBRs for the reinsertion
// order used.
func (e *Engine) Rebuild() error {
	root, err := e.getNode(e.rootID(), true)
	if err != nil {
		return err
	}
	var live []liveEntry
	if err := e.collectLive(root, &live); err != nil {
		return err
	}

	if err := e.tree.close(); err != nil {
		return err
	}
	if err := e.records.close(); err != nil {
		return err
	}
	if err := os.Remove(e.cfg.TreePath); err != nil && !os.IsNotExist(err) {
		return WrapError(ErrIo, err)
	}
	if err := os.Remove(e.cfg.RecordPath); err != nil && !os.IsNotExist(err) {
		return WrapError(ErrIo, err)
	}

	fresh, err := Open(e.cfg)
	if err != nil {
		return err
	}
	*e = *fresh

	for _, le := range live {
		if err := e.Insert(le.coords, le.payload); err != nil {
			return err
		}
	}
	return nil
}

// --- introspection ----------------------------------------------------

// Stat reports the current shape of the tree.
func (e *Engine) Stat() Stat {
	return Stat{
		Dimensions:  e.dimensions,
		FanOut:      e.fanOut,
		TreeDepth:   e.tree.treeDepth(),
		RootID:      e.tree.rootID(),
		HighestID:   e.tree.header.highestID,
		MinFill:     e.minFill,
		CacheBudget: e.cfg.CacheBudget,
	}
}

// Nodes walks the whole tree and returns every node's id, parent, depth,
// leaf flag, and box — a debugging/visualization hook. It uses an
// explicit stack rather than recursion so it scales to deep trees without
// growing the Go call stack.
func (e *Engine) Nodes() ([]NodeInfo, error) {
	type frame struct {
		id    int64
		depth int
	}
	var out []NodeInfo
	stack := []frame{{id: e.rootID(), depth: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := e.getNode(f.id, f.depth <= 1)
		if err != nil {
			return nil, err
		}
		info := NodeInfo{ID: n.id, ParentID: n.parentID, Leaf: n.leaf, Depth: f.depth}
		for _, d := range n.mbr.dims {
			info.Box = append(info.Box, [2]int64{d.Low, d.High})
		}
		out = append(out, info)

		if !n.leaf {
			for _, cid := range n.children {
				stack = append(stack, frame{id: cid, depth: f.depth + 1})
			}
		}
	}
	return out, nil
}
