package mediago

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/coffee-tm/mediago/adapters"
)

// frameExtractPath is the collaborator's extraction endpoint.
const frameExtractPath = "/api/utils/extract-video-frames"

// FrameExtractor consumes the external frame-extraction collaborator. It is
// not a provider adapter: frames come back as base64 data URIs and are fed
// to a vision-capable provider as reference images.
type FrameExtractor struct {
	endpoint string
	client   *http.Client
}

// NewFrameExtractor creates a client for the frame-extraction endpoint
func NewFrameExtractor(endpoint string, timeout time.Duration) *FrameExtractor {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &FrameExtractor{
		endpoint: adapters.TrimBaseURL(endpoint),
		client:   &http.Client{Timeout: timeout},
	}
}

type frameExtractRequest struct {
	VideoURL   string `json:"video_url"`
	FrameCount int    `json:"frame_count,omitempty"`
}

type frameExtractResponse struct {
	Frames []string `json:"frames"`
	Error  string   `json:"error,omitempty"`
}

// Extract requests frameCount evenly sampled frames from the video at
// videoURL and returns them as base64 data URIs.
func (f *FrameExtractor) Extract(ctx context.Context, videoURL string, frameCount int) ([]string, error) {
	body, err := json.Marshal(&frameExtractRequest{VideoURL: videoURL, FrameCount: frameCount})
	if err != nil {
		return nil, errors.Wrap(err, "marshal frame extraction request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint+frameExtractPath, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "create frame extraction request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "extract video frames", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read frame extraction response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "extract video frames",
			Err: errors.Errorf("status %d, body: %s", resp.StatusCode, raw)}
	}

	var extracted frameExtractResponse
	if err := json.Unmarshal(raw, &extracted); err != nil {
		return nil, &ResponseFormatError{Provider: "frame-extractor", Message: err.Error(), RawBody: raw}
	}
	if extracted.Error != "" {
		return nil, errors.Errorf("frame extraction failed: %s", extracted.Error)
	}

	return extracted.Frames, nil
}
