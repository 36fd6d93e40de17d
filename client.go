package mediago

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coffee-tm/mediago/adapters"
)

// Client is the main client for image and video generation
type Client struct {
	provider Provider
	kind     ProviderKind
	config   *ClientConfig
	frames   *FrameExtractor
}

// ClientConfig holds configuration for the client
type ClientConfig struct {
	// Timeout bounds one top-level call end to end, polling included.
	Timeout time.Duration
	// FrameEndpoint is the base URL of the external frame-extraction
	// collaborator, required only for AnalyzeVideo.
	FrameEndpoint string
	// FrameCount is how many frames AnalyzeVideo samples from a video.
	FrameCount int
	// Logger receives debug events around submit/poll/download. Defaults to
	// a no-op logger.
	Logger *zap.Logger
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:    10 * time.Minute,
		FrameCount: 4,
		Logger:     zap.NewNop(),
	}
}

// NewClient creates a new generation client. The provider is selected from
// the configured model identifier: Zhipu-family keywords first, then
// ModelScope keywords or an org/name path, defaulting to OpenAI-compatible.
func NewClient(providerConfig *ProviderConfig, clientConfig ...*ClientConfig) (*Client, error) {
	if providerConfig == nil {
		return nil, &ConfigError{Field: "config", Message: "provider configuration is required"}
	}

	cfg := *providerConfig
	cfg.APIKey = adapters.NormalizeAPIKey(cfg.APIKey)
	cfg.BaseURL = adapters.TrimBaseURL(cfg.BaseURL)

	if cfg.ModelID == "" {
		return nil, &ConfigError{Field: "model_id", Message: "model identifier is required"}
	}
	if cfg.APIKey == "" {
		return nil, &ConfigError{Field: "api_key", Message: "API key is required"}
	}

	kind := ClassifyModel(cfg.ModelID)
	provider, err := createProvider(kind, &cfg)
	if err != nil {
		return nil, err
	}

	config := DefaultClientConfig()
	if len(clientConfig) > 0 && clientConfig[0] != nil {
		config = clientConfig[0]
		if config.Logger == nil {
			config.Logger = zap.NewNop()
		}
		if config.FrameCount <= 0 {
			config.FrameCount = 4
		}
	}

	client := &Client{
		provider: provider,
		kind:     kind,
		config:   config,
	}
	if config.FrameEndpoint != "" {
		client.frames = NewFrameExtractor(config.FrameEndpoint, cfg.Timeout)
	}
	return client, nil
}

// NewClientWithProvider creates a new client with a custom provider
func NewClientWithProvider(provider Provider, config ...*ClientConfig) *Client {
	clientConfig := DefaultClientConfig()
	if len(config) > 0 && config[0] != nil {
		clientConfig = config[0]
		if clientConfig.Logger == nil {
			clientConfig.Logger = zap.NewNop()
		}
	}

	client := &Client{
		provider: provider,
		config:   clientConfig,
	}
	if clientConfig.FrameEndpoint != "" {
		client.frames = NewFrameExtractor(clientConfig.FrameEndpoint, 0)
	}
	return client
}

// GenerateImage generates an image and normalizes the result. When base64
// output is requested but the provider returned a bare URL, the image is
// downloaded and re-encoded as a data URI.
func (c *Client) GenerateImage(ctx context.Context, req *GenerationRequest) (*Result, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.config.Logger.Debug("submitting image generation",
		zap.String("provider", c.provider.Name()),
		zap.String("model", req.Model))

	result, err := c.provider.GenerateImage(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.OutputEncoding == OutputBase64 && result.Kind == ResultURL {
		c.config.Logger.Debug("re-encoding result as base64", zap.String("url", result.URL))
		mime, payload, err := adapters.FetchAsDataURI(ctx, nil, result.URL)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultDataURI, MIMEType: mime, Base64: payload}, nil
	}

	return result, nil
}

// GenerateVideo generates a video. Asynchronous providers are polled until
// the task resolves; the result is always a URL.
func (c *Client) GenerateVideo(ctx context.Context, req *GenerationRequest) (*Result, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.config.Logger.Debug("submitting video generation",
		zap.String("provider", c.provider.Name()),
		zap.String("model", req.Model))

	return c.provider.GenerateVideo(ctx, req)
}

// AnalyzeVideo extracts frames from a video through the external
// frame-extraction collaborator, asks the provider about them, and returns
// the answer as a data:text/plain;base64 payload.
func (c *Client) AnalyzeVideo(ctx context.Context, videoURL, prompt string) (*Result, error) {
	if videoURL == "" {
		return nil, &ValidationError{Field: "video_url", Message: "video URL cannot be empty"}
	}
	if prompt == "" {
		return nil, &ValidationError{Field: "prompt", Message: "prompt cannot be empty"}
	}
	if c.frames == nil {
		return nil, &ConfigError{Field: "frame_endpoint", Message: "frame extraction endpoint is required for video analysis"}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	frames, err := c.frames.Extract(ctx, videoURL, c.config.FrameCount)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, &ValidationError{Field: "video_url", Message: "no frames extracted from video"}
	}

	c.config.Logger.Debug("analyzing video frames",
		zap.String("provider", c.provider.Name()),
		zap.Int("frames", len(frames)))

	return c.provider.Analyze(ctx, &GenerationRequest{
		Prompt:          prompt,
		ReferenceImages: frames,
	})
}

// GetProviderName returns the name of the current provider
func (c *Client) GetProviderName() string {
	return c.provider.Name()
}

// ProviderKind returns the classified provider family
func (c *Client) ProviderKind() ProviderKind {
	return c.kind
}

// GetSupportedModels returns supported models for the current provider
func (c *Client) GetSupportedModels() []string {
	return c.provider.SupportedModels()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

// validateRequest validates the generation request
func (c *Client) validateRequest(req *GenerationRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request cannot be nil"}
	}

	if req.Prompt == "" && len(req.ReferenceImages) == 0 {
		return &ValidationError{Field: "prompt/reference_images", Message: "at least one of prompt or reference images must be provided"}
	}

	if req.Duration < 0 {
		return &ValidationError{Field: "duration", Message: "duration cannot be negative"}
	}

	return c.provider.ValidateRequest(req)
}
