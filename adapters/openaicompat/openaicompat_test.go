package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffee-tm/mediago/adapters"
)

func newTestProvider(t *testing.T, baseURL string) adapters.Provider {
	t.Helper()
	p, err := New(&adapters.ProviderConfig{
		ModelID:      "gpt-image-1",
		APIKey:       "sk-test",
		BaseURL:      baseURL,
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  2 * time.Second,
	})
	require.NoError(t, err)
	return p
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(&adapters.ProviderConfig{ModelID: "gpt-image-1", APIKey: "sk-test"})
	require.Error(t, err)
	var ce *adapters.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "base_url", ce.Field)
}

func TestGenerateImageURL(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"url": "http://x/img.png"}},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	result, err := p.GenerateImage(context.Background(), &adapters.GenerationRequest{
		Prompt:         "a city at dusk",
		OutputEncoding: adapters.OutputURL,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://x/img.png", result.String())
	assert.Equal(t, "url", gotBody["response_format"])
}

func TestGenerateImageBase64RequestsB64JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "b64_json", body["response_format"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"b64_json": "AAA="}},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	result, err := p.GenerateImage(context.Background(), &adapters.GenerationRequest{
		Prompt:         "x",
		OutputEncoding: adapters.OutputBase64,
	})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAA=", result.String())
}

func TestGenerateImageWithReferenceUsesMultipartEdits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/edits", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "gpt-image-1", r.FormValue("model"))
		assert.Equal(t, "make it night", r.FormValue("prompt"))

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"b64_json": "BBB="}},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	result, err := p.GenerateImage(context.Background(), &adapters.GenerationRequest{
		Prompt:          "make it night",
		ReferenceImages: []string{"data:image/png;base64,AAAA"},
	})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,BBB=", result.String())
}

func TestGenerateImageUnknownShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images":[{"href":"nope"}]}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	_, err := p.GenerateImage(context.Background(), &adapters.GenerationRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, adapters.IsResponseFormat(err))
}

func TestGenerateVideoPollsStatus(t *testing.T) {
	var statusCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/videos/generations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "vid-1", "status": "queued"})
	})
	mux.HandleFunc("/videos/vid-1", func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		if statusCalls < 2 {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "completed", "url": "http://x/v.mp4"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)
	result, err := p.GenerateVideo(context.Background(), &adapters.GenerationRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "http://x/v.mp4", result.String())
	assert.Equal(t, 2, statusCalls)
}

func TestAnalyzeChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		messages := body["messages"].([]interface{})
		content := messages[0].(map[string]interface{})["content"].([]interface{})
		image := content[1].(map[string]interface{})["image_url"].(map[string]interface{})
		assert.True(t, strings.HasPrefix(image["url"].(string), "data:image/jpeg;base64,"),
			"bare base64 references must be re-wrapped as data URIs")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "a harbor at dawn"}},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	result, err := p.Analyze(context.Background(), &adapters.GenerationRequest{
		Prompt:          "describe",
		ReferenceImages: []string{"AAA="},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.String(), "data:text/plain;base64,"))
}

func TestAnalyzeChatImageProbePrecedesText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{
					"content": "here is your image",
					"images": []map[string]interface{}{
						{"image_url": map[string]string{"url": "data:image/webp;base64,CCC="}},
					},
				}},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	result, err := p.Analyze(context.Background(), &adapters.GenerationRequest{Prompt: "gen"})
	require.NoError(t, err)
	assert.Equal(t, adapters.ResultDataURI, result.Kind)
	assert.Equal(t, "data:image/webp;base64,CCC=", result.String())
}
