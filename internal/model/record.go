package model

import "time"

// ValidationStatus is the outcome of checking a record against the ledger.
type ValidationStatus string

const (
	ValidationNoDatabase ValidationStatus = "NO_DATABASE"
	ValidationNoAccount  ValidationStatus = "NO_ACCOUNT"
	ValidationMatched    ValidationStatus = "MATCHED"
	ValidationNotFound   ValidationStatus = "NOT_FOUND"
	ValidationError      ValidationStatus = "ERROR"
)

// RecordStatus reports whether an image made it through the pipeline.
type RecordStatus string

const (
	RecordSuccess RecordStatus = "SUCCESS"
	RecordFailed  RecordStatus = "FAILED"
)

// ExtractedRecord is the per-image result. Nil pointer fields were not found.
type ExtractedRecord struct {
	ImageReference       string           `json:"image_reference"`
	BankName             *string          `json:"bank_name"`
	CompanyName          *string          `json:"company_name"`
	AccountNumber        *string          `json:"account_number"`
	Balance              *float64         `json:"balance"`
	ExtractionConfidence float64          `json:"extraction_confidence"`
	ValidationStatus     ValidationStatus `json:"validation_status,omitempty"`
	BankNameDB           *string          `json:"bank_name_db,omitempty"`
	CompanyNameDB        *string          `json:"company_name_db,omitempty"`
	AccountNumberDB      *string          `json:"account_number_db,omitempty"`
	CompanyNameMatch     *bool            `json:"company_name_match,omitempty"`
	Status               RecordStatus     `json:"status"`
	Error                string           `json:"error,omitempty"`
	ExtractedAt          time.Time        `json:"extracted_at"`
	ProcessingTime       float64          `json:"processing_time_seconds"`
	TextFragments        []TextFragment   `json:"text_fragments,omitempty"`
}

// NewFailedRecord builds a FAILED record. Field values stay nil.
func NewFailedRecord(imageRef string, err error, elapsed time.Duration) ExtractedRecord {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ExtractedRecord{
		ImageReference: imageRef,
		Status:         RecordFailed,
		Error:          msg,
		ExtractedAt:    time.Now().UTC(),
		ProcessingTime: elapsed.Seconds(),
	}
}

// Succeeded reports whether the record completed the pipeline.
func (r ExtractedRecord) Succeeded() bool {
	return r.Status == RecordSuccess
}

// StringValue dereferences an optional string, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
