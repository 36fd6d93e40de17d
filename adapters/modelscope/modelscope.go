// Package modelscope adapts the unified generation contract to the
// ModelScope api-inference service. Two API versions are supported: the
// default asynchronous task flow (submit, then poll /tasks/{id}) and the
// legacy synchronous /models/{model}/inference endpoint, selected with
// Extra["api_version"] = "legacy".
package modelscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/coffee-tm/mediago/adapters"
)

const (
	// DefaultBaseURL is the ModelScope api-inference endpoint.
	DefaultBaseURL = "https://api-inference.modelscope.cn/v1"

	providerName = "ModelScope"

	// APIVersionLegacy selects the synchronous inference endpoint.
	APIVersionLegacy = "legacy"
)

// Task status vocabulary used by the async task endpoint.
const (
	taskStatusPending    = "PENDING"
	taskStatusRunning    = "RUNNING"
	taskStatusProcessing = "PROCESSING"
	taskStatusSucceed    = "SUCCEED"
	taskStatusFailed     = "FAILED"
)

var knownModels = []string{
	"Tongyi-MAI/Z-Image-Turbo",
	"MusePublic/489_ckpt_FLUX_1",
	"modelscope/stable-diffusion-v1-5",
	"modelscope/stable-diffusion-xl-base-1.0",
	"AI-ModelScope/stable-diffusion-v1-4",
}

// Provider implements the adapters.Provider interface for ModelScope.
type Provider struct {
	config  *adapters.ProviderConfig
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	legacy  bool
}

// New creates a new ModelScope provider instance
func New(config *adapters.ProviderConfig) (adapters.Provider, error) {
	if config == nil {
		return nil, &adapters.ConfigError{Field: "config", Message: "configuration is required"}
	}
	if config.APIKey == "" {
		return nil, &adapters.ConfigError{Field: "api_key", Message: "API key is required"}
	}

	baseURL := adapters.TrimBaseURL(config.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Provider{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  adapters.NormalizeAPIKey(config.APIKey),
		model:   config.ModelID,
		legacy:  config.Extra["api_version"] == APIVersionLegacy,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// SupportedModels returns supported models
func (p *Provider) SupportedModels() []string {
	return append([]string{}, knownModels...)
}

// ValidateRequest validates the request for ModelScope. The model catalog is
// open (any org/name path), so only structural checks apply.
func (p *Provider) ValidateRequest(req *adapters.GenerationRequest) error {
	if p.requestModel(req) == "" {
		return &adapters.ConfigError{Field: "model_id", Message: "model is required"}
	}
	return nil
}

func (p *Provider) requestModel(req *adapters.GenerationRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.model
}

type submitRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
	Seed   *int   `json:"seed,omitempty"`
}

type submitResponse struct {
	TaskID    string `json:"task_id"`
	RequestID string `json:"request_id"`
	Errors    *struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

type taskResponse struct {
	TaskID       string   `json:"task_id"`
	TaskStatus   string   `json:"task_status"`
	OutputImages []string `json:"output_images,omitempty"`
	Images       []struct {
		URL string `json:"url"`
	} `json:"images,omitempty"`
	Message string `json:"message,omitempty"`
}

// GenerateImage generates an image. The default flow submits an
// asynchronous task and polls /tasks/{id}; the legacy flow calls the
// synchronous inference endpoint.
func (p *Provider) GenerateImage(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	if p.legacy {
		return p.legacyInference(ctx, req)
	}

	body := &submitRequest{
		Model:  p.requestModel(req),
		Prompt: req.Prompt,
		Size:   req.Size,
		Seed:   req.Seed,
	}

	headers := map[string]string{"X-ModelScope-Async-Mode": "true"}
	raw, err := p.do(ctx, http.MethodPost, p.baseURL+"/images/generations", headers, body)
	if err != nil {
		return nil, err
	}

	var submit submitResponse
	if err := json.Unmarshal(raw, &submit); err != nil {
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: err.Error(), RawBody: raw}
	}
	if submit.TaskID == "" {
		if submit.Errors != nil {
			return nil, &adapters.APIError{Code: "submit_failed", Message: submit.Errors.Message, Provider: providerName}
		}
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "no task id in response", RawBody: raw}
	}

	task := &adapters.TaskHandle{
		TaskID:    submit.TaskID,
		StatusURL: fmt.Sprintf("%s/tasks/%s", p.baseURL, submit.TaskID),
	}

	url, err := adapters.Poll(ctx, p.taskCheck(task), p.config.PollInterval, p.config.PollTimeout)
	if err != nil {
		return nil, err
	}
	return adapters.URLResult(url), nil
}

func (p *Provider) taskCheck(task *adapters.TaskHandle) adapters.CheckFunc {
	return func(ctx context.Context) (*adapters.CheckResult, error) {
		headers := map[string]string{"X-ModelScope-Task-Type": "image_generation"}
		raw, err := p.do(ctx, http.MethodGet, task.StatusURL, headers, nil)
		if err != nil {
			return nil, err
		}

		var status taskResponse
		if err := json.Unmarshal(raw, &status); err != nil {
			return nil, &adapters.ResponseFormatError{Provider: providerName, Message: err.Error(), RawBody: raw}
		}

		switch status.TaskStatus {
		case taskStatusSucceed:
			// probe order: output_images[0], then images[0].url
			if len(status.OutputImages) > 0 && status.OutputImages[0] != "" {
				return &adapters.CheckResult{Completed: true, URL: status.OutputImages[0]}, nil
			}
			if len(status.Images) > 0 && status.Images[0].URL != "" {
				return &adapters.CheckResult{Completed: true, URL: status.Images[0].URL}, nil
			}
			return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "succeeded task has no image", RawBody: raw}
		case taskStatusFailed:
			reason := status.Message
			if reason == "" {
				reason = fmt.Sprintf("task %s reported FAILED", task.TaskID)
			}
			return &adapters.CheckResult{Error: reason}, nil
		case taskStatusPending, taskStatusRunning, taskStatusProcessing:
			return &adapters.CheckResult{}, nil
		default:
			return &adapters.CheckResult{}, nil
		}
	}
}

type inferenceRequest struct {
	Input      inferenceInput         `json:"input"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type inferenceInput struct {
	Prompt string `json:"prompt,omitempty"`
	Image  string `json:"image,omitempty"` // bare base64, data-URI prefix stripped
}

type inferenceResponse struct {
	Output *struct {
		ImageURL    string `json:"image_url"`
		ImageBase64 string `json:"image_base64"`
		Text        string `json:"text"`
	} `json:"output,omitempty"`
}

// legacyInference calls POST /models/{model}/inference and probes the
// response in fixed priority order: output.image_url, output.image_base64,
// output.text.
func (p *Provider) legacyInference(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	input := inferenceInput{Prompt: req.Prompt}
	if len(req.ReferenceImages) > 0 {
		ref := req.ReferenceImages[0]
		if adapters.IsURL(ref) {
			_, payload, err := adapters.FetchAsDataURI(ctx, p.client, ref)
			if err != nil {
				return nil, err
			}
			input.Image = payload
		} else {
			payload, _ := adapters.StripDataURI(ref)
			input.Image = payload
		}
	}

	params := map[string]interface{}{}
	if req.Size != "" {
		params["size"] = req.Size
	}
	if req.Seed != nil {
		params["seed"] = *req.Seed
	}

	body := &inferenceRequest{Input: input}
	if len(params) > 0 {
		body.Parameters = params
	}

	url := fmt.Sprintf("%s/models/%s/inference", p.baseURL, p.requestModel(req))
	raw, err := p.do(ctx, http.MethodPost, url, nil, body)
	if err != nil {
		return nil, err
	}

	var resp inferenceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: err.Error(), RawBody: raw}
	}

	if resp.Output != nil {
		switch {
		case resp.Output.ImageURL != "":
			return adapters.URLResult(resp.Output.ImageURL), nil
		case resp.Output.ImageBase64 != "":
			payload, mime := adapters.StripDataURI(resp.Output.ImageBase64)
			if mime == "" {
				mime = "image/png"
			}
			return adapters.DataURIResult(mime, payload), nil
		case resp.Output.Text != "":
			return adapters.TextResult(resp.Output.Text), nil
		}
	}

	return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "no known field in inference output", RawBody: raw}
}

// GenerateVideo is not offered by the api-inference service.
func (p *Provider) GenerateVideo(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	return nil, &adapters.UnsupportedModelError{Provider: providerName, Model: p.requestModel(req) + " (video generation)"}
}

// Analyze runs the legacy inference endpoint and expects a text output.
func (p *Provider) Analyze(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	return p.legacyInference(ctx, req)
}

func (p *Provider) do(ctx context.Context, method, url string, headers map[string]string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, &adapters.TransportError{Provider: providerName, Op: "create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("User-Agent", "mediago-sdk/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &adapters.TransportError{Provider: providerName, Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &adapters.TransportError{Provider: providerName, Op: "read response body", Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &adapters.TransportError{Provider: providerName, Op: method + " " + url,
			Err: errors.Errorf("status %d, body: %s", resp.StatusCode, raw)}
	}

	return raw, nil
}
