package model

import "time"

// MediaRecord is one captured photo in the gallery index.
// ID doubles as the blob name stem; both fields are immutable once assigned.
type MediaRecord struct {
	ID         string
	CapturedAt time.Time // millisecond precision, UTC
}

// Equal reports whether two records carry the same id and capture time.
func (r MediaRecord) Equal(o MediaRecord) bool {
	return r.ID == o.ID && r.CapturedAt.Equal(o.CapturedAt)
}

// BlobInfo is what a vault knows about a stored blob.
type BlobInfo struct {
	Name       string
	SizeBytes  int64
	ModifiedAt time.Time
}

// Detail joins an index record with the metadata of its blob.
type Detail struct {
	Record     MediaRecord
	BlobName   string
	SizeBytes  int64
	ModifiedAt time.Time
}
