package rtreedb

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"os"
)

// treeHeader mirrors the fixed tree-file header. Field order here is the
// on-disk order.
type treeHeader struct {
	uniqueSequence [UniqueSequenceLength]byte
	configHash     [ConfigHashLength]byte
	idSize         int // bytes per node id, signed
	dimensions     int
	pageSize       int
	highestID      int64 // signed; NullID when empty
	nullID         int64 // sentinel, design default NullID
	rootID         int64 // unsigned on disk, never negative
	coordSize      int // bytes per coordinate, signed
	treeDepth      int
}

func (h *treeHeader) size() int {
	return UniqueSequenceLength + ConfigHashLength + 1 + 4 + 4 +
		h.idSize + h.idSize + h.idSize + 1 + 4
}

// treeStore is the paged node store: fixed-size node slots addressed by
// small integer node-ids, random-access get/put by id, and a
// self-describing header. One *os.File is held open for the store's
// lifetime and flushed after each mutation. Plain ReadAt/WriteAt rather
// than mmap, since there's no multi-reader snapshot isolation to manage
// here.
type treeStore struct {
	file        *os.File
	header      treeHeader
	headerSize  int
	capacity    int // M, maximum children per node
	nodePadding int
}

// configHash computes the SHA-1 digest over (dimensions, pageSize,
// idSize, coordSize), used to pair a tree file with its record file.
func configHash(dimensions, pageSize, idSize, coordSize int) [ConfigHashLength]byte {
	h := sha1.New()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(dimensions))
	h.Write(buf[:])
	binary.LittleEndian.PutUint32(buf[:], uint32(pageSize))
	h.Write(buf[:])
	binary.LittleEndian.PutUint32(buf[:], uint32(idSize))
	h.Write(buf[:])
	binary.LittleEndian.PutUint32(buf[:], uint32(coordSize))
	h.Write(buf[:])
	var out [ConfigHashLength]byte
	copy(out[:], h.Sum(nil))
	return out
}

func randomSequence() ([UniqueSequenceLength]byte, error) {
	var seq [UniqueSequenceLength]byte
	if _, err := rand.Read(seq[:]); err != nil {
		return seq, err
	}
	return seq, nil
}

func nodeCapacity(pageSize, idSize, dimensions, coordSize int) int {
	return (pageSize - NodeFlagSize - idSize - 2*dimensions*coordSize) / idSize
}

// openTreeStore opens or creates the tree file at path for the given
// parameters. If the file exists, its header is validated against cfg;
// mismatches are fatal.
func openTreeStore(path string, cfg Config) (*treeStore, error) {
	_, statErr := os.Stat(path)
	exists := statErr == nil

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, WrapError(ErrIo, err)
	}

	ts := &treeStore{file: file}
	if err := ts.lock(); err != nil {
		file.Close()
		return nil, err
	}

	if exists {
		if err := ts.readHeader(); err != nil {
			ts.unlock()
			file.Close()
			return nil, err
		}
		want := configHash(cfg.Dimensions, cfg.PageSize, cfg.IDSize, cfg.CoordSize)
		if ts.header.dimensions != cfg.Dimensions || ts.header.pageSize != cfg.PageSize ||
			ts.header.idSize != cfg.IDSize || ts.header.coordSize != cfg.CoordSize ||
			ts.header.configHash != want {
			ts.unlock()
			file.Close()
			return nil, NewError(ErrIncompatibleTree)
		}
	} else {
		seq, err := randomSequence()
		if err != nil {
			ts.unlock()
			file.Close()
			return nil, WrapError(ErrIo, err)
		}
		ts.header = treeHeader{
			uniqueSequence: seq,
			configHash:     configHash(cfg.Dimensions, cfg.PageSize, cfg.IDSize, cfg.CoordSize),
			idSize:         cfg.IDSize,
			dimensions:     cfg.Dimensions,
			pageSize:       cfg.PageSize,
			highestID:      NullID,
			nullID:         NullID,
			rootID:         0,
			coordSize:      cfg.CoordSize,
			treeDepth:      0,
		}
		if err := ts.writeHeader(); err != nil {
			ts.unlock()
			file.Close()
			return nil, err
		}
	}

	ts.headerSize = ts.header.size()
	ts.capacity = nodeCapacity(ts.header.pageSize, ts.header.idSize, ts.header.dimensions, ts.header.coordSize)
	ts.nodePadding = ts.header.pageSize - (NodeFlagSize + ts.header.idSize +
		2*ts.header.dimensions*ts.header.coordSize + ts.capacity*ts.header.idSize)
	if ts.nodePadding < 0 {
		ts.unlock()
		file.Close()
		return nil, NewError(ErrCorruptTree)
	}
	return ts, nil
}

func (ts *treeStore) uniqueSequence() [UniqueSequenceLength]byte { return ts.header.uniqueSequence }
func (ts *treeStore) hash() [ConfigHashLength]byte               { return ts.header.configHash }

func (ts *treeStore) readHeader() error {
	buf := make([]byte, UniqueSequenceLength+ConfigHashLength+1+4+4)
	if _, err := ts.file.ReadAt(buf, 0); err != nil {
		return WrapError(ErrCorruptTree, err)
	}
	off := 0
	copy(ts.header.uniqueSequence[:], buf[off:off+UniqueSequenceLength])
	off += UniqueSequenceLength
	copy(ts.header.configHash[:], buf[off:off+ConfigHashLength])
	off += ConfigHashLength
	ts.header.idSize = int(int8(buf[off]))
	off++
	ts.header.dimensions = int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	ts.header.pageSize = int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4

	if ts.header.idSize <= 0 || ts.header.idSize > 8 {
		return NewError(ErrCorruptTree)
	}

	rest := make([]byte, ts.header.idSize*3+1+4)
	if _, err := ts.file.ReadAt(rest, int64(off)); err != nil {
		return WrapError(ErrCorruptTree, err)
	}
	p := 0
	ts.header.highestID = getInt(rest[p:p+ts.header.idSize], ts.header.idSize)
	p += ts.header.idSize
	ts.header.nullID = getInt(rest[p:p+ts.header.idSize], ts.header.idSize)
	p += ts.header.idSize
	ts.header.rootID = int64(getUint(rest[p:p+ts.header.idSize], ts.header.idSize))
	p += ts.header.idSize
	ts.header.coordSize = int(rest[p])
	p++
	ts.header.treeDepth = int(binary.LittleEndian.Uint32(rest[p : p+4]))
	return nil
}

func (ts *treeStore) writeHeader() error {
	h := &ts.header
	buf := make([]byte, h.size())
	off := 0
	copy(buf[off:], h.uniqueSequence[:])
	off += UniqueSequenceLength
	copy(buf[off:], h.configHash[:])
	off += ConfigHashLength
	buf[off] = byte(int8(h.idSize))
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.dimensions))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.pageSize))
	off += 4
	putInt(buf[off:off+h.idSize], h.highestID, h.idSize)
	off += h.idSize
	putInt(buf[off:off+h.idSize], h.nullID, h.idSize)
	off += h.idSize
	putUint(buf[off:off+h.idSize], uint64(h.rootID), h.idSize)
	off += h.idSize
	buf[off] = byte(h.coordSize)
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.treeDepth))

	if _, err := ts.file.WriteAt(buf, 0); err != nil {
		return WrapError(ErrIo, err)
	}
	if err := ts.file.Sync(); err != nil {
		return WrapError(ErrIo, err)
	}
	return nil
}

func (ts *treeStore) rootID() int64      { return ts.header.rootID }
func (ts *treeStore) treeDepth() int     { return ts.header.treeDepth }
func (ts *treeStore) dimensions() int    { return ts.header.dimensions }
func (ts *treeStore) fanOut() int        { return ts.capacity }

func (ts *treeStore) setRootID(id int64) error {
	ts.header.rootID = id
	return ts.writeHeader()
}

func (ts *treeStore) setTreeDepth(d int) error {
	ts.header.treeDepth = d
	return ts.writeHeader()
}

func (ts *treeStore) pageOffset(id int64) int64 {
	return int64(ts.headerSize) + id*int64(ts.header.pageSize)
}

func (ts *treeStore) encodeNode(n *node) []byte {
	h := &ts.header
	buf := make([]byte, h.pageSize)
	off := 0
	if n.leaf {
		buf[off] = 1
	}
	off += NodeFlagSize
	putInt(buf[off:off+h.idSize], n.parentID, h.idSize)
	off += h.idSize
	for _, d := range n.mbr.dims {
		putInt(buf[off:off+h.coordSize], d.Low, h.coordSize)
		off += h.coordSize
		putInt(buf[off:off+h.coordSize], d.High, h.coordSize)
		off += h.coordSize
	}
	for i := 0; i < ts.capacity; i++ {
		v := h.nullID
		if i < len(n.children) {
			v = n.children[i]
		}
		putInt(buf[off:off+h.idSize], v, h.idSize)
		off += h.idSize
	}
	// remaining bytes are zero padding (buf is already zero-initialized)
	return buf
}

func (ts *treeStore) decodeNode(id int64, buf []byte) (*node, error) {
	h := &ts.header
	off := 0
	leaf := buf[off] != 0
	off += NodeFlagSize
	parentID := getInt(buf[off:off+h.idSize], h.idSize)
	off += h.idSize

	dims := make([]dim, h.dimensions)
	for i := range dims {
		low := getInt(buf[off:off+h.coordSize], h.coordSize)
		off += h.coordSize
		high := getInt(buf[off:off+h.coordSize], h.coordSize)
		off += h.coordSize
		dims[i] = dim{Low: low, High: high}
	}

	children := make([]int64, 0, ts.capacity)
	for i := 0; i < ts.capacity; i++ {
		c := getInt(buf[off:off+h.idSize], h.idSize)
		off += h.idSize
		if c != h.nullID {
			children = append(children, c)
		}
	}

	return &node{id: id, parentID: parentID, leaf: leaf, mbr: box{dims: dims}, children: children}, nil
}

// get reads the node at id. Ids beyond the highest allocated id are
// ErrNodeNotFound.
func (ts *treeStore) get(id int64) (*node, error) {
	if id < 0 || id > ts.header.highestID {
		return nil, NewError(ErrNodeNotFound)
	}
	buf := make([]byte, ts.header.pageSize)
	if _, err := ts.file.ReadAt(buf, ts.pageOffset(id)); err != nil {
		return nil, WrapError(ErrIo, err)
	}
	return ts.decodeNode(id, buf)
}

// create allocates a fresh id and writes n to it, flushing afterward.
func (ts *treeStore) create(n *node) (int64, error) {
	id := ts.header.highestID + 1
	n.id = id
	buf := ts.encodeNode(n)
	if _, err := ts.file.WriteAt(buf, ts.pageOffset(id)); err != nil {
		return NullID, WrapError(ErrIo, err)
	}
	if err := ts.file.Sync(); err != nil {
		return NullID, WrapError(ErrIo, err)
	}
	ts.header.highestID = id
	if err := ts.writeHeader(); err != nil {
		return NullID, err
	}
	return id, nil
}

// update overwrites the page at id with n's current contents.
func (ts *treeStore) update(id int64, n *node) error {
	if id < 0 || id > ts.header.highestID {
		return NewError(ErrNodeNotFound)
	}
	buf := ts.encodeNode(n)
	if _, err := ts.file.WriteAt(buf, ts.pageOffset(id)); err != nil {
		return WrapError(ErrIo, err)
	}
	if err := ts.file.Sync(); err != nil {
		return WrapError(ErrIo, err)
	}
	return nil
}

func (ts *treeStore) lock() error {
	return lockFile(ts.file)
}

func (ts *treeStore) unlock() {
	unlockFile(ts.file)
}

func (ts *treeStore) close() error {
	err := ts.writeHeader()
	ts.unlock()
	if cerr := ts.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return WrapError(ErrIo, err)
	}
	return nil
}
