// Package zhipu adapts the unified generation contract to the Zhipu
// BigModel API (CogView image generation, CogVideoX video generation, GLM
// vision chat). API reference: https://open.bigmodel.cn/dev/api
package zhipu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/golang-jwt/jwt"

	"github.com/coffee-tm/mediago/adapters"
)

const (
	// DefaultBaseURL is the BigModel open platform endpoint.
	DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"

	providerName = "Zhipu"

	// assertion tokens are valid for 30 minutes, same as the platform SDKs
	tokenTTL = 30 * time.Minute
)

// modelPrefixes is the allow-list for this provider.
var modelPrefixes = []string{"cogview-", "cogvideox-", "glm-"}

var knownModels = []string{
	"cogview-3-flash",
	"cogview-4",
	"cogview-4-250304",
	"cogvideox-flash",
	"cogvideox-2",
	"cogvideox-3",
	"glm-4v-flash",
	"glm-4v-plus",
}

// Provider implements the adapters.Provider interface for Zhipu BigModel.
type Provider struct {
	config  *adapters.ProviderConfig
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// New creates a new Zhipu provider instance
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

// ValidateRequest validates the request for Zhipu
func (p *Provider) ValidateRequest(req *adapters.GenerationRequest) error {
	model := p.requestModel(req)
	lower := strings.ToLower(model)
	for _, prefix := range modelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return nil
		}
	}
	return &adapters.UnsupportedModelError{Provider: providerName, Model: model}
}

func (p *Provider) requestModel(req *adapters.GenerationRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.model
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
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

// GenerateImage generates an image with CogView.
// Endpoint: POST /images/generations, synchronous.
func (p *Provider) GenerateImage(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	body := &imageRequest{
		Model:   p.requestModel(req),
		Prompt:  req.Prompt,
		Size:    req.Size,
		Quality: string(req.Quality),
	}

	raw, err := p.post(ctx, "/images/generations", body)
	if err != nil {
		return nil, err
	}

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
	ImageURL string `json:"image_url,omitempty"`
	Quality  string `json:"quality,omitempty"`
	Size     string `json:"size,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

type videoSubmitResponse struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"request_id"`
	TaskStatus string        `json:"task_status"`
	Error      *apiErrorBody `json:"error,omitempty"`
}

type videoTaskResponse struct {
	TaskStatus  string `json:"task_status"`
	VideoResult []struct {
		URL           string `json:"url"`
		CoverImageURL string `json:"cover_image_url"`
	} `json:"video_result"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// GenerateVideo submits a CogVideoX task and polls until it resolves.
// Endpoints: POST /videos/generations, GET /videos/{id}.
func (p *Provider) GenerateVideo(ctx context.Context, req *adapters.GenerationRequest) (*adapters.Result, error) {
	body := &videoRequest{
		Model:    p.requestModel(req),
		Prompt:   req.Prompt,
		Quality:  string(req.Quality),
		Size:     req.Size,
		Duration: req.Duration,
	}
	if len(req.ReferenceImages) > 0 {
		// BigModel accepts a URL or a data URI here
		body.ImageURL = adapters.EnsureDataURI(req.ReferenceImages[0], "image/jpeg")
	}

	raw, err := p.post(ctx, "/videos/generations", body)
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
	if submit.ID == "" {
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "no task id in response", RawBody: raw}
	}

	task := &adapters.TaskHandle{
		TaskID:    submit.ID,
		StatusURL: fmt.Sprintf("%s/videos/%s", p.baseURL, submit.ID),
	}

	url, err := adapters.Poll(ctx, p.videoCheck(task), p.config.PollInterval, p.config.PollTimeout)
	if err != nil {
		return nil, err
	}
	return adapters.URLResult(url), nil
}

func (p *Provider) videoCheck(task *adapters.TaskHandle) adapters.CheckFunc {
	return func(ctx context.Context) (*adapters.CheckResult, error) {
		raw, err := p.get(ctx, task.StatusURL)
		if err != nil {
			return nil, err
		}

		var status videoTaskResponse
		if err := json.Unmarshal(raw, &status); err != nil {
			return nil, &adapters.ResponseFormatError{Provider: providerName, Message: err.Error(), RawBody: raw}
		}
		if status.Error != nil {
			return &adapters.CheckResult{Error: status.Error.Message}, nil
		}

		switch status.TaskStatus {
		case "SUCCESS":
			if len(status.VideoResult) == 0 || status.VideoResult[0].URL == "" {
				return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "succeeded task has no video url", RawBody: raw}
			}
			return &adapters.CheckResult{Completed: true, URL: status.VideoResult[0].URL}, nil
		case "FAIL":
			return &adapters.CheckResult{Error: fmt.Sprintf("task %s reported FAIL", task.TaskID)}, nil
		default:
			// PROCESSING
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
		} `json:"message"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// Analyze sends the prompt plus reference images through GLM vision chat and
// returns the text answer base64-wrapped.
// Endpoint: POST /chat/completions.
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

	raw, err := p.post(ctx, "/chat/completions", body)
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
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &adapters.ResponseFormatError{Provider: providerName, Message: "no text in chat response", RawBody: raw}
	}

	return adapters.TextResult(resp.Choices[0].Message.Content), nil
}

// authToken returns the Authorization token. Keys of the form "id.secret"
// are exchanged for an HS256 assertion token; anything else is sent as-is.
func (p *Provider) authToken() (string, error) {
	parts := strings.Split(p.apiKey, ".")
	if len(parts) != 2 {
		return p.apiKey, nil
	}

	id, secret := parts[0], parts[1]
	now := time.Now().UnixNano() / int64(time.Millisecond)
	claims := jwt.MapClaims{
		"api_key":   id,
		"exp":       now + tokenTTL.Milliseconds(),
		"timestamp": now,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["sign_type"] = "SIGN"
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "sign assertion token")
	}
	return signed, nil
}

func (p *Provider) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return p.do(ctx, http.MethodPost, p.baseURL+path, body)
}

func (p *Provider) get(ctx context.Context, url string) ([]byte, error) {
	return p.do(ctx, http.MethodGet, url, nil)
}

func (p *Provider) do(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
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

	token, err := p.authToken()
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
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
