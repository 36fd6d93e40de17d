package zhipu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffee-tm/mediago/adapters"
)

func newTestProvider(t *testing.T, baseURL, apiKey string) adapters.Provider {
	t.Helper()
	p, err := New(&adapters.ProviderConfig{
		ModelID:      "cogview-4",
		APIKey:       apiKey,
		BaseURL:      baseURL,
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  2 * time.Second,
	})
	require.NoError(t, err)
	return p
}

func TestGenerateImageURLShape(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/generations", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"created": 1700000000,
			"data":    []map[string]string{{"url": "https://bigmodel.cn/out/img.png"}},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "keyid.keysecret")
	result, err := p.GenerateImage(context.Background(), &adapters.GenerationRequest{
		Prompt: "a red fox in the snow",
		Size:   "1024x1024",
	})
	require.NoError(t, err)
	assert.Equal(t, adapters.ResultURL, result.Kind)
	assert.Equal(t, "https://bigmodel.cn/out/img.png", result.String())

	assert.Equal(t, "cogview-4", gotBody["model"])
	assert.Equal(t, "a red fox in the snow", gotBody["prompt"])

	// the id.secret key must be exchanged for a signed assertion token
	signed := strings.TrimPrefix(gotAuth, "Bearer ")
	require.NotEqual(t, "keyid.keysecret", signed)
	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte("keysecret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "SIGN", token.Header["sign_type"])
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "keyid", claims["api_key"])
	assert.NotNil(t, claims["timestamp"])
}

func TestGenerateImageBase64Shape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"b64_json": "AAA="}},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "plain-token")
	result, err := p.GenerateImage(context.Background(), &adapters.GenerationRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, adapters.ResultDataURI, result.Kind)
	assert.Equal(t, "data:image/png;base64,AAA=", result.String())
}

func TestGenerateImageUnknownShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"something":"else"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "plain-token")
	_, err := p.GenerateImage(context.Background(), &adapters.GenerationRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, adapters.IsResponseFormat(err))
	assert.Contains(t, err.Error(), "something", "raw body must be carried for diagnostics")
}

func TestPlainKeyPassedThrough(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"url": "https://x/i.png"}},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "Bearer   plain-token  ")
	_, err := p.GenerateImage(context.Background(), &adapters.GenerationRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer plain-token", gotAuth)
}

func TestGenerateVideoPollsUntilSuccess(t *testing.T) {
	var statusCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/videos/generations", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cogvideox-2", body["model"])
		assert.Equal(t, "data:image/jpeg;base64,AAA=", body["image_url"])
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "task-42", "task_status": "PROCESSING"})
	})
	mux.HandleFunc("/videos/task-42", func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		if statusCalls < 3 {
			_ = json.NewEncoder(w).Encode(map[string]string{"task_status": "PROCESSING"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"task_status":  "SUCCESS",
			"video_result": []map[string]string{{"url": "https://bigmodel.cn/out/vid.mp4"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL, "plain-token")
	result, err := p.GenerateVideo(context.Background(), &adapters.GenerationRequest{
		Prompt:          "a fox runs",
		Model:           "cogvideox-2",
		ReferenceImages: []string{"AAA="},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://bigmodel.cn/out/vid.mp4", result.String())
	assert.Equal(t, 3, statusCalls)
}

func TestGenerateVideoTaskFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/videos/generations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "task-7", "task_status": "PROCESSING"})
	})
	mux.HandleFunc("/videos/task-7", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"task_status": "FAIL"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL, "plain-token")
	_, err := p.GenerateVideo(context.Background(), &adapters.GenerationRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, adapters.IsTaskFailed(err))
}

func TestAnalyzeReturnsTextAsDataURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		messages := body["messages"].([]interface{})
		content := messages[0].(map[string]interface{})["content"].([]interface{})
		assert.Len(t, content, 3, "prompt plus two images")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "two frames of a fox"}},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "plain-token")
	result, err := p.Analyze(context.Background(), &adapters.GenerationRequest{
		Prompt:          "what is shown?",
		Model:           "glm-4v-flash",
		ReferenceImages: []string{"AAA=", "BBB="},
	})
	require.NoError(t, err)
	assert.Equal(t, adapters.ResultTextDataURI, result.Kind)
	assert.True(t, strings.HasPrefix(result.String(), "data:text/plain;base64,"))
}

func TestValidateRequestModelAllowList(t *testing.T) {
	p := newTestProvider(t, "http://unused", "k")

	assert.NoError(t, p.ValidateRequest(&adapters.GenerationRequest{Model: "cogview-4"}))
	assert.NoError(t, p.ValidateRequest(&adapters.GenerationRequest{Model: "glm-4v-plus"}))

	err := p.ValidateRequest(&adapters.GenerationRequest{Model: "dall-e-3"})
	require.Error(t, err)
	var ume *adapters.UnsupportedModelError
	assert.ErrorAs(t, err, &ume)
}
