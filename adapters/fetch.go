package adapters

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// DefaultMaxFetchSize bounds media downloads (20 MiB).
const DefaultMaxFetchSize = 20 << 20

// DefaultFetchMIME is assumed when the server declares no content type.
const DefaultFetchMIME = "image/png"

// FetchAsDataURI downloads a URL expecting a binary payload and re-encodes
// it as base64, returning the response's declared MIME type (parameters
// stripped, defaulting to image/png) and the payload. Used whenever base64
// output is requested but the provider only returned a URL.
func FetchAsDataURI(ctx context.Context, client *http.Client, rawURL string) (mimeType, payload string, err error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", &TransportError{Op: "create download request", Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", "", &TransportError{Op: "download media", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", &TransportError{Op: "download media", Err: errors.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxFetchSize))
	if err != nil {
		return "", "", &TransportError{Op: "read media body", Err: err}
	}

	mimeType = resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" {
		mimeType = DefaultFetchMIME
	}

	return mimeType, EncodeBase64(data), nil
}
