package datastore

import "github.com/elvisfernandes/ng-dfservice/pkg/resource"

// Snapshot is an immutable ordered view of the records a Store believes
// exist. Every reconciliation produces a new Snapshot with a higher Version.
type Snapshot[T resource.Record] struct {
	version uint64
	records []T
}

// Version increases by one for each snapshot a Store publishes.
func (s Snapshot[T]) Version() uint64 {
	return s.version
}

// Len returns the number of records.
func (s Snapshot[T]) Len() int {
	return len(s.records)
}

// At returns the record at position i.
func (s Snapshot[T]) At(i int) T {
	return s.records[i]
}

// Records returns a copy of the records in order.
func (s Snapshot[T]) Records() []T {
	return append([]T(nil), s.records...)
}

// IDs returns the record ids in order.
func (s Snapshot[T]) IDs() []int64 {
	ids := make([]int64, len(s.records))
	for i, r := range s.records {
		ids[i] = r.RecordID()
	}
	return ids
}

// Index returns the position of the record with id, or -1.
func (s Snapshot[T]) Index(id int64) int {
	return indexOf(s.records, id)
}

func indexOf[T resource.Record](records []T, id int64) int {
	for i, r := range records {
		if r.RecordID() == id {
			return i
		}
	}
	return -1
}
