package mediago

import "context"

// Provider defines the interface that all generation providers must implement
type Provider interface {
	// Name returns the provider name
	Name() string

	// GenerateImage generates an image and returns the normalized result
	GenerateImage(ctx context.Context, req *GenerationRequest) (*Result, error)

	// GenerateVideo generates a video, polling asynchronous providers until
	// the task resolves
	GenerateVideo(ctx context.Context, req *GenerationRequest) (*Result, error)

	// Analyze answers a prompt about the supplied reference images and
	// returns the text as a base64 data URI
	Analyze(ctx context.Context, req *GenerationRequest) (*Result, error)

	// SupportedModels returns a list of supported models for this provider
	SupportedModels() []string

	// ValidateRequest validates if the request is compatible with this provider
	ValidateRequest(req *GenerationRequest) error
}
