package model

// EngineSimulated is the source engine tag for canned fallback fragments.
const EngineSimulated = "simulated"

// ProviderID identifies an OCR provider. Orchestrator iteration order is the
// ascending lexical order of these values.
type ProviderID string

const (
	ProviderAliyun    ProviderID = "aliyun"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderAzure     ProviderID = "azure"
	ProviderBaidu     ProviderID = "baidu"
	ProviderGoogle    ProviderID = "google"
	ProviderMistral   ProviderID = "mistral"
	ProviderTencent   ProviderID = "tencent"
	ProviderTesseract ProviderID = "tesseract"
)

// ProviderIDs returns every known provider in iteration order.
func ProviderIDs() []ProviderID {
	return []ProviderID{
		ProviderAliyun,
		ProviderAnthropic,
		ProviderAzure,
		ProviderBaidu,
		ProviderGoogle,
		ProviderMistral,
		ProviderTencent,
		ProviderTesseract,
	}
}

// ParseProviderID converts a string into a known ProviderID.
func ParseProviderID(s string) (ProviderID, bool) {
	for _, id := range ProviderIDs() {
		if string(id) == s {
			return id, true
		}
	}
	return "", false
}

// TextFragment is one unit of recognized text.
type TextFragment struct {
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	SourceEngine string  `json:"source_engine"`
}
