package gallery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"gallery-go/internal/model"
)

// Index is the ordered collection of media records. Insertion order is display
// order, oldest first. An Index is not safe for concurrent use; Store guards it.
type Index struct {
	records []model.MediaRecord
	ids     map[string]struct{}
}

// LoadReport describes what LoadIndex had to skip.
type LoadReport struct {
	// DuplicatesDropped counts records whose id repeated an earlier record.
	DuplicatesDropped int
	// Legacy is true if the document was a plain array of photo URIs.
	Legacy bool
}

// documentRecord is the serialized form of a MediaRecord.
type documentRecord struct {
	ID         string `json:"id"`
	CapturedAt int64  `json:"capturedAt"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{ids: make(map[string]struct{})}
}

// LoadIndex parses an index document. A nil or empty document is an empty index.
// A document that cannot be parsed yields an empty index together with an error
// matching ErrIndexCorrupt; the index is still usable.
//
// Two layouts are accepted: an array of {"id","capturedAt"} objects, and an
// array of photo URIs whose file name stem is the id.
func LoadIndex(doc []byte) (*Index, LoadReport, error) {
	var report LoadReport
	x := NewIndex()
	if len(bytes.TrimSpace(doc)) == 0 {
		return x, report, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return NewIndex(), report, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}

	for i, elem := range raw {
		rec, legacy, err := decodeRecord(elem)
		if err != nil {
			return NewIndex(), LoadReport{}, fmt.Errorf("%w: record %d: %v", ErrIndexCorrupt, i, err)
		}
		report.Legacy = report.Legacy || legacy
		if x.Has(rec.ID) {
			report.DuplicatesDropped++
			continue
		}
		x.add(rec)
	}
	return x, report, nil
}

func decodeRecord(elem json.RawMessage) (model.MediaRecord, bool, error) {
	trimmed := bytes.TrimSpace(elem)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var uri string
		if err := json.Unmarshal(trimmed, &uri); err != nil {
			return model.MediaRecord{}, true, err
		}
		rec, err := recordFromURI(uri)
		return rec, true, err
	}

	var dr documentRecord
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dr); err != nil {
		return model.MediaRecord{}, false, err
	}
	if !validID(dr.ID) {
		return model.MediaRecord{}, false, fmt.Errorf("invalid id %q", dr.ID)
	}
	return model.MediaRecord{ID: dr.ID, CapturedAt: time.UnixMilli(dr.CapturedAt).UTC()}, false, nil
}

// recordFromURI turns ".../1718461845000.jpg" into a record. A numeric stem is
// read as the capture time in epoch milliseconds.
func recordFromURI(uri string) (model.MediaRecord, error) {
	base := path.Base(strings.TrimSpace(uri))
	id := strings.TrimSuffix(base, path.Ext(base))
	if !validID(id) {
		return model.MediaRecord{}, fmt.Errorf("invalid photo uri %q", uri)
	}
	var ms int64
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		ms = n
	}
	return model.MediaRecord{ID: id, CapturedAt: time.UnixMilli(ms).UTC()}, nil
}

// Append adds rec at the end. The capture time is truncated to milliseconds.
func (x *Index) Append(rec model.MediaRecord) error {
	if !validID(rec.ID) {
		return fmt.Errorf("invalid record id %q", rec.ID)
	}
	if x.Has(rec.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	x.add(normalize(rec))
	return nil
}

func (x *Index) add(rec model.MediaRecord) {
	x.records = append(x.records, rec)
	x.ids[rec.ID] = struct{}{}
}

// Remove deletes the record with the given id and returns it.
func (x *Index) Remove(id string) (model.MediaRecord, error) {
	for i, rec := range x.records {
		if rec.ID != id {
			continue
		}
		x.records = append(x.records[:i:i], x.records[i+1:]...)
		delete(x.ids, id)
		return rec, nil
	}
	return model.MediaRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// Get returns the record with the given id.
func (x *Index) Get(id string) (model.MediaRecord, bool) {
	if !x.Has(id) {
		return model.MediaRecord{}, false
	}
	for _, rec := range x.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return model.MediaRecord{}, false
}

// Has reports whether a record with the given id exists.
func (x *Index) Has(id string) bool {
	_, ok := x.ids[id]
	return ok
}

// Len returns the number of records.
func (x *Index) Len() int {
	return len(x.records)
}

// List returns a copy of the records in display order.
func (x *Index) List() []model.MediaRecord {
	out := make([]model.MediaRecord, len(x.records))
	copy(out, x.records)
	return out
}

// Clone returns an independent copy of the index.
func (x *Index) Clone() *Index {
	c := &Index{
		records: x.List(),
		ids:     make(map[string]struct{}, len(x.ids)),
	}
	for id := range x.ids {
		c.ids[id] = struct{}{}
	}
	return c
}

// Serialize encodes the full ordered sequence. The output is deterministic and
// LoadIndex(Serialize(x)) reproduces x.
func (x *Index) Serialize() ([]byte, error) {
	docs := make([]documentRecord, len(x.records))
	for i, rec := range x.records {
		docs[i] = documentRecord{ID: rec.ID, CapturedAt: rec.CapturedAt.UnixMilli()}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encoding index: %w", err)
	}
	return data, nil
}

func normalize(rec model.MediaRecord) model.MediaRecord {
	rec.CapturedAt = time.UnixMilli(rec.CapturedAt.UnixMilli()).UTC()
	return rec
}
