package mediago

import (
	"context"

	"github.com/coffee-tm/mediago/adapters"
)

// adapterWrapper wraps an adapters.Provider to implement the main package Provider interface
type adapterWrapper struct {
	provider adapters.Provider
}

// Name returns the provider name
func (w *adapterWrapper) Name() string {
	return w.provider.Name()
}

// GenerateImage generates an image through the wrapped adapter
func (w *adapterWrapper) GenerateImage(ctx context.Context, req *GenerationRequest) (*Result, error) {
	result, err := w.provider.GenerateImage(ctx, toAdapterRequest(req))
	if err != nil {
		return nil, err
	}
	return fromAdapterResult(result), nil
}

// GenerateVideo generates a video through the wrapped adapter
func (w *adapterWrapper) GenerateVideo(ctx context.Context, req *GenerationRequest) (*Result, error) {
	result, err := w.provider.GenerateVideo(ctx, toAdapterRequest(req))
	if err != nil {
		return nil, err
	}
	return fromAdapterResult(result), nil
}

// Analyze answers a prompt about reference images through the wrapped adapter
func (w *adapterWrapper) Analyze(ctx context.Context, req *GenerationRequest) (*Result, error) {
	result, err := w.provider.Analyze(ctx, toAdapterRequest(req))
	if err != nil {
		return nil, err
	}
	return fromAdapterResult(result), nil
}

// SupportedModels returns a list of supported models for this provider
func (w *adapterWrapper) SupportedModels() []string {
	return w.provider.SupportedModels()
}

// ValidateRequest validates if the request is compatible with this provider
func (w *adapterWrapper) ValidateRequest(req *GenerationRequest) error {
	return w.provider.ValidateRequest(toAdapterRequest(req))
}

func toAdapterRequest(req *GenerationRequest) *adapters.GenerationRequest {
	return &adapters.GenerationRequest{
		Prompt:          req.Prompt,
		ReferenceImages: req.ReferenceImages,
		Size:            req.Size,
		AspectRatio:     req.AspectRatio,
		Seed:            req.Seed,
		Quality:         adapters.QualityLevel(req.Quality),
		Duration:        req.Duration,
		OutputEncoding:  adapters.OutputEncoding(req.OutputEncoding),
		Model:           req.Model,
		Metadata:        req.Metadata,
	}
}

func fromAdapterResult(result *adapters.Result) *Result {
	return &Result{
		Kind:     ResultKind(result.Kind),
		URL:      result.URL,
		MIMEType: result.MIMEType,
		Base64:   result.Base64,
	}
}
