package domain

import "time"

// Checkpoint is the scanner's durable position: the last block height whose
// batch was fully resolved. Scans start at Height+1. Heights never decrease
// except through an explicit operator reset.
type Checkpoint struct {
	ChainID   uint64
	Height    uint64
	UpdatedAt time.Time
}
