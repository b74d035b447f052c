package rtreedb

import (
	"encoding/binary"
	"os"
)

// record is one decoded entry from the record file: a point plus its
// opaque payload and liveness flag.
type record struct {
	live    bool
	coords  []int64
	payload []byte
}

func (r *record) box() box {
	return newPointBox(r.coords)
}

// recordStore is the append-only record file: a two-field header pairing
// it with a tree file, followed by variable-length records identified
// permanently by their starting byte offset.
type recordStore struct {
	file       *os.File
	dimensions int
	coordSize  int
	headerSize int
	size       int64
}

func openRecordStore(path string, cfg Config, wantSeq [UniqueSequenceLength]byte, wantHash [ConfigHashLength]byte) (*recordStore, error) {
	_, statErr := os.Stat(path)
	exists := statErr == nil

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, WrapError(ErrIo, err)
	}

	rs := &recordStore{
		file:       file,
		dimensions: cfg.Dimensions,
		coordSize:  cfg.CoordSize,
		headerSize: UniqueSequenceLength + ConfigHashLength,
	}

	if exists {
		header := make([]byte, rs.headerSize)
		if _, err := file.ReadAt(header, 0); err != nil {
			file.Close()
			return nil, WrapError(ErrCorruptTree, err)
		}
		var seq [UniqueSequenceLength]byte
		var hash [ConfigHashLength]byte
		copy(seq[:], header[:UniqueSequenceLength])
		copy(hash[:], header[UniqueSequenceLength:])
		if seq != wantSeq || hash != wantHash {
			file.Close()
			return nil, NewError(ErrIncompatibleTree)
		}
	} else {
		header := make([]byte, rs.headerSize)
		copy(header[:UniqueSequenceLength], wantSeq[:])
		copy(header[UniqueSequenceLength:], wantHash[:])
		if _, err := file.WriteAt(header, 0); err != nil {
			file.Close()
			return nil, WrapError(ErrIo, err)
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return nil, WrapError(ErrIo, err)
		}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, WrapError(ErrIo, err)
	}
	rs.size = info.Size()

	return rs, nil
}

func (rs *recordStore) recordHeaderWidth() int64 {
	return int64(RecordFlagSize + rs.dimensions*rs.coordSize)
}

func (rs *recordStore) validOffset(offset int64) bool {
	return offset >= int64(rs.headerSize) && offset+rs.recordHeaderWidth() <= rs.size
}

// create appends a new live record and returns its permanent offset.
func (rs *recordStore) create(coords []int64, payload []byte) (int64, error) {
	offset, err := rs.file.Seek(0, os.SEEK_END)
	if err != nil {
		return 0, WrapError(ErrIo, err)
	}

	buf := make([]byte, 0, rs.recordHeaderWidth()+int64(4+len(payload)))
	buf = append(buf, 1) // live flag
	for _, c := range coords {
		cb := make([]byte, rs.coordSize)
		putInt(cb, c, rs.coordSize)
		buf = append(buf, cb...)
	}
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(payload)))
	buf = append(buf, lenBuf...)
	buf = append(buf, payload...)

	if _, err := rs.file.WriteAt(buf, offset); err != nil {
		return 0, WrapError(ErrIo, err)
	}
	if err := rs.file.Sync(); err != nil {
		return 0, WrapError(ErrIo, err)
	}
	rs.size = offset + int64(len(buf))
	return offset, nil
}

// get decodes the record at offset.
func (rs *recordStore) get(offset int64) (*record, error) {
	if !rs.validOffset(offset) {
		return nil, NewError(ErrRecordNotFound)
	}

	head := make([]byte, rs.recordHeaderWidth()+4)
	if _, err := rs.file.ReadAt(head, offset); err != nil {
		return nil, WrapError(ErrIo, err)
	}
	live := head[0] != 0
	pos := 1
	coords := make([]int64, rs.dimensions)
	for i := range coords {
		coords[i] = getInt(head[pos:pos+rs.coordSize], rs.coordSize)
		pos += rs.coordSize
	}
	payloadLen := binary.LittleEndian.Uint32(head[pos : pos+4])

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := rs.file.ReadAt(payload, offset+int64(len(head))); err != nil {
			return nil, WrapError(ErrIo, err)
		}
	}
	return &record{live: live, coords: coords, payload: payload}, nil
}

// tombstone overwrites the live flag of the record at offset with 0,
// never shifting bytes.
func (rs *recordStore) tombstone(offset int64) error {
	if !rs.validOffset(offset) {
		return NewError(ErrRecordNotFound)
	}
	if _, err := rs.file.WriteAt([]byte{0}, offset); err != nil {
		return WrapError(ErrIo, err)
	}
	if err := rs.file.Sync(); err != nil {
		return WrapError(ErrIo, err)
	}
	return nil
}

// recordLen returns the total byte length of the record stored at offset,
// including its header and payload, for use by scanLive's cursor walk.
func (rs *recordStore) recordLen(offset int64) (int64, error) {
	lenBuf := make([]byte, 4)
	if _, err := rs.file.ReadAt(lenBuf, offset+rs.recordHeaderWidth()); err != nil {
		return 0, WrapError(ErrIo, err)
	}
	payloadLen := binary.LittleEndian.Uint32(lenBuf)
	return rs.recordHeaderWidth() + 4 + int64(payloadLen), nil
}

// scanLive walks every record from the start of the file, invoking fn
// with each live record and its offset. Rebuild does not use it; it
// collects live records by walking the tree.
func (rs *recordStore) scanLive(fn func(offset int64, r *record) error) error {
	offset := int64(rs.headerSize)
	for offset < rs.size {
		r, err := rs.get(offset)
		if err != nil {
			return err
		}
		length, err := rs.recordLen(offset)
		if err != nil {
			return err
		}
		if r.live {
			if err := fn(offset, r); err != nil {
				return err
			}
		}
		offset += length
	}
	return nil
}

func (rs *recordStore) close() error {
	if err := rs.file.Close(); err != nil {
		return WrapError(ErrIo, err)
	}
	return nil
}
