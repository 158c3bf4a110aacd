package domain

// Batch is the outcome of scanning one safe range. Records are sorted
// ascending by (BlockNumber, LogIndex). A batch with no records still
// carries the scanned bounds so the cursor can advance past quiet ranges.
type Batch struct {
	FromHeight uint64
	ToHeight   uint64
	Records    []EventRecord
}

func (b *Batch) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}
