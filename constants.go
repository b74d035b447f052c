package rtreedb

// Header and page layout constants shared by the tree file and the record
// file. All multi-byte integers on disk are little-endian.
const (
	// UniqueSequenceLength is the size in bytes of the random nonce that
	// pairs a tree file with its record file.
	UniqueSequenceLength = 20

	// ConfigHashLength is the size in bytes of the SHA-1 config hash
	// stored in both file headers.
	ConfigHashLength = 20

	// NodeFlagSize is the size in bytes of a node page's leaf flag.
	NodeFlagSize = 1

	// RecordFlagSize is the size in bytes of a record's live flag.
	RecordFlagSize = 1
)

// Defaults used when a Config field is left at its zero value.
const (
	// DefaultDimensions is the dimensionality used when Config.Dimensions
	// is left at zero.
	DefaultDimensions = 2

	// DefaultPageSize is the tree file's node page size in bytes.
	DefaultPageSize = 1024

	// DefaultIDSize is the width in bytes of node ids and record offsets.
	DefaultIDSize = 8

	// DefaultCoordSize is the width in bytes of one coordinate.
	DefaultCoordSize = 4

	// DefaultMinFill is the minimum-fill fraction used to bias split
	// distribution.
	DefaultMinFill = 0.35

	// DefaultCacheBudget is the byte budget for the node cache's
	// variable region.
	DefaultCacheBudget = 8 * 1024 * 1024

	// NullID is the sentinel used for absent node ids / children slots.
	NullID int64 = -1

	// RootParentID is the parent_id stored by the root node.
	RootParentID int64 = -1
)

// fastmapThreshold is the number of variable-region cache slots above
// which the cache backs its variable region with internal/fastmap's
// open-addressed hash table instead of a plain direct-mapped slice.
const fastmapThreshold = 4096
