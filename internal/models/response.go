package models

// StageStatus describes the outcome of one pipeline stage. A skipped stage
// never ran; an error stage ran and failed. The two are never conflated.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageError   StageStatus = "error"
	StageSkipped StageStatus = "skipped"
)

// Enrichment failure cause tags.
const (
	EnrichMissingKey        = "missing_key"
	EnrichEmptyInput        = "empty_input"
	EnrichRateLimited       = "rate_limited"
	EnrichMalformedResponse = "malformed_response"
	EnrichTransportError    = "transport_error"
)

// SCOSelection records which SCO the pipeline selected for content
// processing, or why none was selected.
type SCOSelection struct {
	Status StageStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
	SCO    *SCO        `json:"sco,omitempty"`
}

// TextExtractionResult is the outcome of the text extraction stage.
// Text and Error are mutually exclusive; Reason is set when the stage
// was skipped. An empty Text on success is valid (all-whitespace document).
type TextExtractionResult struct {
	Status StageStatus `json:"status"`
	Text   string      `json:"text,omitempty"`
	Error  string      `json:"error,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// EnrichmentResult is the outcome of the metadata enrichment stage: either
// Data (the provider's JSON object, returned as-is and not schema-validated)
// or a failure descriptor with a Cause tag and optional diagnostics.
type EnrichmentResult struct {
	Status StageStatus            `json:"status"`
	Data   map[string]interface{} `json:"data,omitempty"`
	Cause  string                 `json:"cause,omitempty"`
	Detail string                 `json:"detail,omitempty"`
	// HTTPStatus is set when the provider answered with a non-200 status.
	HTTPStatus int `json:"http_status,omitempty"`
	// Raw carries the undecodable payload for diagnosis.
	Raw string `json:"raw,omitempty"`
}

// PipelineResponse is the per-upload aggregate returned to the caller.
// It is constructed fresh per request, serialized, and discarded; stage
// failures are carried as data rather than aborting the request.
type PipelineResponse struct {
	Message              string `json:"message"`
	ExtractedContentPath string `json:"extracted_content_path"`

	ManifestParsingStatus StageStatus     `json:"manifest_parsing_status"`
	ManifestData          *CourseManifest `json:"manifest_data,omitempty"`
	ManifestErrorDetails  string          `json:"manifest_error_details,omitempty"`

	// SCO-dependent fields; omitted entirely when manifest parsing failed.
	FirstSCO       *SCOSelection         `json:"first_sco,omitempty"`
	TextExtraction *TextExtractionResult `json:"text_extraction,omitempty"`
	Enrichment     *EnrichmentResult     `json:"enrichment,omitempty"`

	// DetectedLanguage is a local best-effort language name, filled in when
	// text was extracted but enrichment did not produce a language.
	DetectedLanguage string `json:"detected_language,omitempty"`

	// CourseID is set when the parsed course was recorded in the catalog.
	CourseID string `json:"course_id,omitempty"`
}
