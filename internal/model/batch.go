package model

import "time"

// Batch is the result set of one processing run. Records are in input order.
type Batch struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Records   []ExtractedRecord `json:"records"`
}

// BatchSummary is the list view of a batch.
type BatchSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Matched   int       `json:"matched"`
}

// Summary tallies the batch's records.
func (b *Batch) Summary() BatchSummary {
	s := BatchSummary{ID: b.ID, CreatedAt: b.CreatedAt, Total: len(b.Records)}
	for _, r := range b.Records {
		if r.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
		if r.ValidationStatus == ValidationMatched {
			s.Matched++
		}
	}
	return s
}
