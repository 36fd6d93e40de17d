package adapters

import (
	"context"
	"fmt"
	"time"
)

// Type definitions shared by all provider adapters.

// OutputEncoding controls how the generated media is returned to the caller.
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

// GenerationRequest is the unified request shape every adapter translates
// into its provider's wire format.
type GenerationRequest struct {
	Prompt          string                 `json:"prompt,omitempty"`
	ReferenceImages []string               `json:"reference_images,omitempty"` // base64 payloads, data URIs or URLs, in caller order
	Size            string                 `json:"size,omitempty"`
	AspectRatio     string                 `json:"aspect_ratio,omitempty"`
	Seed            *int                   `json:"seed,omitempty"`
	Quality         QualityLevel           `json:"quality,omitempty"`
	Duration        int                    `json:"duration,omitempty"`
	OutputEncoding  OutputEncoding         `json:"output_encoding,omitempty"`
	Model           string                 `json:"model,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// ResultKind tags the shape of a normalized provider result.
type ResultKind string

const (
	ResultURL         ResultKind = "url"
	ResultDataURI     ResultKind = "data_uri"
	ResultTextDataURI ResultKind = "text_data_uri"
)

// Result is the unified output contract: either a bare URL or a
// base64-encoded payload with its MIME type.
type Result struct {
	Kind     ResultKind `json:"kind"`
	URL      string     `json:"url,omitempty"`
	MIMEType string     `json:"mime_type,omitempty"`
	Base64   string     `json:"base64,omitempty"`
}

// String renders the result in the caller-facing contract: a bare URL or a
// data:<mime>;base64,<payload> string.
func (r *Result) String() string {
	if r.Kind == ResultURL {
		return r.URL
	}
	return fmt.Sprintf("data:%s;base64,%s", r.MIMEType, r.Base64)
}

// URLResult builds a URL-kind result.
func URLResult(url string) *Result {
	return &Result{Kind: ResultURL, URL: url}
}

// DataURIResult builds a base64-payload result.
func DataURIResult(mimeType, payload string) *Result {
	return &Result{Kind: ResultDataURI, MIMEType: mimeType, Base64: payload}
}

// TextResult wraps plain text as a data:text/plain;base64 payload.
func TextResult(text string) *Result {
	return &Result{Kind: ResultTextDataURI, MIMEType: "text/plain", Base64: EncodeBase64([]byte(text))}
}

// TaskHandle identifies an asynchronous generation task between submission
// and the poller resolving it.
type TaskHandle struct {
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
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

// Provider interface (minimal for adapters)
type Provider interface {
	Name() string
	GenerateImage(ctx context.Context, req *GenerationRequest) (*Result, error)
	GenerateVideo(ctx context.Context, req *GenerationRequest) (*Result, error)
	Analyze(ctx context.Context, req *GenerationRequest) (*Result, error)
	SupportedModels() []string
	ValidateRequest(req *GenerationRequest) error
}
