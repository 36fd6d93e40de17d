package mediago

import (
	"fmt"
	"time"
)

// OutputEncoding controls how generated media is returned to the caller.
type OutputEncoding string

const (
	OutputURL    OutputEncoding = "url"
	OutputBase64 OutputEncoding = "base64"
)

// QualityLevel represents the quality level requested for generation
type QualityLevel string

const (
	QualityLevelLow      QualityLevel = "low"
	QualityLevelStandard QualityLevel = "standard"
	QualityLevelHigh     QualityLevel = "high"
)

// GenerationRequest represents a unified image/video generation request
type GenerationRequest struct {
	Prompt          string                 `json:"prompt,omitempty"`
	ReferenceImages []string               `json:"reference_images,omitempty"` // base64 payloads, data URIs or URLs, in caller order
	Size            string                 `json:"size,omitempty"`
	AspectRatio     string                 `json:"aspect_ratio,omitempty"`
	Seed            *int                   `json:"seed,omitempty"`
	Quality         QualityLevel           `json:"quality,omitempty"`
	Duration        int                    `json:"duration,omitempty"` // seconds, video only
	OutputEncoding  OutputEncoding         `json:"output_encoding,omitempty"`
	Model           string                 `json:"model,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// ResultKind tags the shape of a normalized result.
type ResultKind string

const (
	ResultURL         ResultKind = "url"
	ResultDataURI     ResultKind = "data_uri"
	ResultTextDataURI ResultKind = "text_data_uri"
)

// Result is the unified output contract returned to callers: either a bare
// URL or a base64 payload with its MIME type.
type Result struct {
	Kind     ResultKind `json:"kind"`
	URL      string     `json:"url,omitempty"`
	MIMEType string     `json:"mime_type,omitempty"`
	Base64   string     `json:"base64,omitempty"`
}

// String renders the caller-facing contract: a bare URL or a
// data:<mime>;base64,<payload> string.
func (r *Result) String() string {
	if r.Kind == ResultURL {
		return r.URL
	}
	return fmt.Sprintf("data:%s;base64,%s", r.MIMEType, r.Base64)
}

// ProviderConfig holds configuration for a specific provider
type ProviderConfig struct {
	ModelID      string            `json:"model_id"`
	APIKey       string            `json:"api_key"`
	BaseURL      string            `json:"base_url,omitempty"`
	Timeout      time.Duration     `json:"timeout"`
	PollInterval time.Duration     `json:"poll_interval"`
	PollTimeout  time.Duration     `json:"poll_timeout"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// ProviderKind identifies a provider family. Classification from a model
// identifier is done by ClassifyModel.
type ProviderKind string

const (
	ProviderZhipu            ProviderKind = "zhipu"
	ProviderModelScope       ProviderKind = "modelscope"
	ProviderOpenAICompatible ProviderKind = "openai-compatible"
)
