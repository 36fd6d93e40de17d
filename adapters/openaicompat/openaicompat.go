// Package openaicompat adapts the unified generation contract to any
// OpenAI-compatible endpoint. It is the default adapter when the model
// identifier matches no other provider family; a base URL must be supplied.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/coffee-tm/mediago/adapters"
)

const providerName = "OpenAI-Compatible"

// Provider implements the adapters.Provider interface for OpenAI-compatible
// endpoints.
type Provider struct {
	config  *adapters.ProviderConfig
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// New creates a new OpenAI-compatible provider instance
func New(config *adapters.ProviderConfig) (adapters.Provider, error) {
	if config == nil {
		return nil, &adapters.ConfigError{Field: "config", Message: "configuration is required"}
	}
	if config.APIKey == "" {
		return nil, &adapters.ConfigError{Field: "api_key", Message: "API key is required"}
	}
	baseURL := adapters.TrimBaseURL(config.BaseURL)
	if baseURL == "" {
		return nil, &adapters.ConfigError{Field: "base_url", Message: "base URL is required for OpenAI-compatible endpoints"}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Provider{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  adapters.NormalizeAPIKey(config.APIKey),
		model:   config.ModelID,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// SupportedModels returns supported models. The endpoint is generic, so the
// catalog is whatever the deployment serves.
func (p *Provider) SupportedModels() []string {
	return nil
}

// ValidateRequest validates the request
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

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
}

type imageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *apiErrorBody `json:"error,omitempty"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenerateImage generates an image. Plain prompts go to /images/generations;
// requests carrying reference images go to the multipart /images/edits
// endpoint.
func (p *Provider) GenerateImage(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	if len(req.ReferenceImages) > 0 {
		return p.editImage(ctx, req)
	}

	body := &imageRequest{
		Model:   p.requestModel(req),
		Prompt:  req.Prompt,
		N:       1,
		Size:    req.Size,
		Quality: string(req.Quality),
		Seed:    req.Seed,
	}
	if req.OutputEncoding == adapters.OutputBase64 {
		body.ResponseFormat = "b64_json"
	} else {
		body.ResponseFormat = "url"
	}

	raw, err := p.postJSON(ctx, "/images/generations", body)
	if err != nil {
		return nil, err
	}
	return p.parseImageResponse(raw)
}

// editImage posts the first reference image plus the prompt as
// multipart/form-data to /images/edits.
func (p *Provider) editImage(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	imageBytes, err := p.referenceBytes(ctx, req.ReferenceImages[0])
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, errors.Wrap(err, "create multipart image part")
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, errors.Wrap(err, "write multipart image part")
	}

	fields := map[string]string{
		"model":  p.requestModel(req),
		"prompt": req.Prompt,
	}
	if req.Size != "" {
		fields["size"] = req.Size
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, errors.Wrapf(err, "write multipart field %s", k)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart body")
	}

	raw, err := p.do(ctx, http.MethodPost, p.baseURL+"/images/edits", &buf, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return p.parseImageResponse(raw)
}

// referenceBytes turns a reference image (URL, data URI or bare base64)
// into raw bytes for upload.
func (p *Provider) referenceBytes(ctx context.Context, ref string) ([]byte, error) {
	if adapters.IsURL(ref) {
		_, payload, err := adapters.FetchAsDataURI(ctx, p.client, ref)
		if err != nil {
			return nil, err
		}
		return adapters.DecodeBase64(payload)
	}
	payload, _ := adapters.StripDataURI(ref)
	data, err := adapters.DecodeBase64(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decode reference image")
	}
	return data, nil
}

func (p *Provider) parseImageResponse(raw []byte) (*adapters.Result, error) {
	var resp imageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: err.Error(), RawBody: raw}
	}
	if resp.Error != nil {
		return nil, &adapters.APIError{Code: resp.Error.Code, Message: resp.Error.Message, Provider: providerName}
	}

	// probe order: data[0].url, then data[0].b64_json
	if len(resp.Data) > 0 {
		if resp.Data[0].URL != "" {
			return adapters.URLResult(resp.Data[0].URL), nil
		}
		if resp.Data[0].B64JSON != "" {
			payload, mime := adapters.StripDataURI(resp.Data[0].B64JSON)
			if mime == "" {
				mime = "image/png"
			}
			return adapters.DataURIResult(mime, payload), nil
		}
	}

	return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "no image in response", RawBody: raw}
}

type videoRequest struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt,omitempty"`
	Image    string `json:"image,omitempty"`
	Size     string `json:"size,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Seed     *int   `json:"seed,omitempty"`
}

type videoSubmitResponse struct {
	ID     string        `json:"id"`
	TaskID string        `json:"task_id"`
	Status string        `json:"status"`
	Error  *apiErrorBody `json:"error,omitempty"`
}

type videoTaskResponse struct {
	Status   string        `json:"status"`
	URL      string        `json:"url"`
	VideoURL string        `json:"video_url"`
	Output   []string      `json:"output"`
	Error    *apiErrorBody `json:"error,omitempty"`
}

// GenerateVideo submits to /videos/generations and polls /videos/{id}.
func (p *Provider) GenerateVideo(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	body := &videoRequest{
		Model:    p.requestModel(req),
		Prompt:   req.Prompt,
		Size:     req.Size,
		Duration: req.Duration,
		Seed:     req.Seed,
	}
	if len(req.ReferenceImages) > 0 {
		body.Image = adapters.EnsureDataURI(req.ReferenceImages[0], "image/jpeg")
	}

	raw, err := p.postJSON(ctx, "/videos/generations", body)
	if err != nil {
		return nil, err
	}

	var submit videoSubmitResponse
	if err := json.Unmarshal(raw, &submit); err != nil {
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: err.Error(), RawBody: raw}
	}
	if submit.Error != nil {
		return nil, &adapters.APIError{Code: submit.Error.Code, Message: submit.Error.Message, Provider: providerName}
	}
	taskID := submit.ID
	if taskID == "" {
		taskID = submit.TaskID
	}
	if taskID == "" {
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "no task id in response", RawBody: raw}
	}

	task := &adapters.TaskHandle{
		TaskID:    taskID,
		StatusURL: fmt.Sprintf("%s/videos/%s", p.baseURL, taskID),
	}

	url, err := adapters.Poll(ctx, p.videoCheck(task), p.config.PollInterval, p.config.PollTimeout)
	if err != nil {
		return nil, err
	}
	return adapters.URLResult(url), nil
}

func (p *Provider) videoCheck(task *adapters.TaskHandle) adapters.CheckFunc {
	return func(ctx context.Context) (*adapters.CheckResult, error) {
		raw, err := p.do(ctx, http.MethodGet, task.StatusURL, nil, "")
		if err != nil {
			return nil, err
		}

		var status videoTaskResponse
		if err := json.Unmarshal(raw, &status); err != nil {
			return nil, &adapters.ResponseFormatError{Provider: providerName, Message: err.Error(), RawBody: raw}
		}

		switch status.Status {
		case "completed", "succeeded":
			// probe order: url, video_url, output[0]
			url := status.URL
			if url == "" {
				url = status.VideoURL
			}
			if url == "" && len(status.Output) > 0 {
				url = status.Output[0]
			}
			if url == "" {
				return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "completed task has no video url", RawBody: raw}
			}
			return &adapters.CheckResult{Completed: true, URL: url}, nil
		case "failed":
			reason := fmt.Sprintf("task %s reported failed", task.TaskID)
			if status.Error != nil && status.Error.Message != "" {
				reason = status.Error.Message
			}
			return &adapters.CheckResult{Error: reason}, nil
		default:
			return &adapters.CheckResult{}, nil
		}
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL chatImageURL `json:"image_url"`
			} `json:"images,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// Analyze sends prompt plus reference images through /chat/completions.
// Gateways that return images on the message are probed first; otherwise
// the text content comes back base64-wrapped.
func (p *Provider) Analyze(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	content := []chatContent{{Type: "text", Text: req.Prompt}}
	for _, img := range req.ReferenceImages {
		content = append(content, chatContent{
			Type:     "image_url",
			ImageURL: &chatImageURL{URL: adapters.EnsureDataURI(img, "image/jpeg")},
		})
	}

	body := &chatRequest{
		Model:    p.requestModel(req),
		Messages: []chatMessage{{Role: "user", Content: content}},
	}

	raw, err := p.postJSON(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: err.Error(), RawBody: raw}
	}
	if resp.Error != nil {
		return nil, &adapters.APIError{Code: resp.Error.Code, Message: resp.Error.Message, Provider: providerName}
	}
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		if len(msg.Images) > 0 && msg.Images[0].ImageURL.URL != "" {
			url := msg.Images[0].ImageURL.URL
			if payload, mime := adapters.StripDataURI(url); mime != "" {
				return adapters.DataURIResult(mime, payload), nil
			}
			return adapters.URLResult(url), nil
		}
		if msg.Content != "" {
			return adapters.TextResult(msg.Content), nil
		}
	}

	return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "no content in chat response", RawBody: raw}
}

func (p *Provider) postJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request body")
	}
	return p.do(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(jsonBody), "application/json")
}

func (p *Provider) do(ctx context.Context, method, url string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &adapters.TransportError{Provider: providerName, Op: "create request", Err: err}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("User-Agent", "mediago-sdk/1.0")

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
		var errResp struct {
			Error *apiErrorBody `json:"error"`
		}
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != nil {
			return nil, &adapters.APIError{Code: errResp.Error.Code, Message: errResp.Error.Message, Provider: providerName}
		}
		return nil, &adapters.TransportError{Provider: providerName, Op: method + " " + url,
			Err: errors.Errorf("status %d, body: %s", resp.StatusCode, raw)}
	}

	return raw, nil
}
