package drafting

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", errors.Join(errors.New("call"), context.DeadlineExceeded), KindTimeout},
		{"unauthorized", &StatusError{Provider: "openai", Code: 401}, KindAuth},
		{"forbidden", &StatusError{Provider: "openai", Code: 403}, KindAuth},
		{"not found", &StatusError{Provider: "github", Code: 404}, KindAuth},
		{"gateway timeout", &StatusError{Provider: "openai", Code: 504}, KindTimeout},
		{"server error", &StatusError{Provider: "openai", Code: 500}, KindUnavailable},
		{"other", errors.New("connection refused"), KindUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify(tc.err)
			var be *BackendError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tc.kind, be.Kind)
			assert.True(t, IsKind(err, tc.kind))
		})
	}

	original := &BackendError{Kind: KindAuth, Detail: "x"}
	assert.Same(t, original, Classify(original))
}

func TestScriptedBackend(t *testing.T) {
	b := NewScriptedBackend("one", "two")
	ctx := context.Background()

	out, err := b.Draft(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "one", out)
	out, err = b.Draft(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "two", out)

	_, err = b.Draft(ctx, "p3")
	assert.True(t, IsKind(err, KindUnavailable))
	assert.Equal(t, []string{"p1", "p2", "p3"}, b.Prompts())
	assert.Equal(t, 3, b.Calls())
}

func TestScriptedBackend_ConcurrentUse(t *testing.T) {
	b := NewScriptedBackend("a", "b", "c", "d")
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Draft(context.Background(), "p")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, b.Calls())
}

func TestWithTimeout(t *testing.T) {
	slow := NewScriptedBackend("late")
	slow.Delay = time.Second

	_, err := WithTimeout(slow, 20*time.Millisecond).Draft(context.Background(), "p")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, KindTimeout, be.Kind)
	assert.Contains(t, be.Detail, "scripted")

	fast := NewScriptedBackend("ok")
	out, err := WithTimeout(fast, time.Second).Draft(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	assert.Same(t, fast, WithTimeout(fast, 0))
}

func TestFunc(t *testing.T) {
	b := Func(func(ctx context.Context, prompt string) (string, error) {
		return "", &StatusError{Provider: "test", Code: 401}
	})
	_, err := b.Draft(context.Background(), "p")
	assert.True(t, IsKind(err, KindAuth))
}

func TestOpenAIBackend(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"plans: []"}}]}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend("sk-test", "gpt-4o-mini", srv.URL, 0.1)
	out, err := b.Draft(context.Background(), "draft plans")
	require.NoError(t, err)
	assert.Equal(t, "plans: []", out)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "draft plans", got.Messages[1].Content)
}

func TestOpenAIBackend_ErrorKinds(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"bad credentials"}}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend("sk-test", "gpt-4o-mini", srv.URL+"/v1", 0)
	_, err := b.Draft(context.Background(), "p")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, KindAuth, be.Kind)
	assert.Contains(t, be.Detail, "bad credentials")

	status = http.StatusServiceUnavailable
	_, err = b.Draft(context.Background(), "p")
	assert.True(t, IsKind(err, KindUnavailable))

	_, err = NewOpenAIBackend("", "m", srv.URL, 0).Draft(context.Background(), "p")
	assert.True(t, IsKind(err, KindAuth))
}

func TestGitHubModelsBackend_Headers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, githubAPIVersion, r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	b := NewGitHubModelsBackend("ghp_test", "gpt-4o-mini", srv.URL, 0)
	assert.Equal(t, "github", b.Name())
	out, err := b.Draft(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestOllamaBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaGenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3.1", req.Model)
		_, _ = w.Write([]byte(`{"response":"version: \"1.0\""}`))
	}))
	defer srv.Close()

	out, err := NewOllamaBackend("llama3.1", srv.URL, 0).Draft(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `version: "1.0"`, out)
}

func TestBackends_EncodeFailureIsBackendError(t *testing.T) {
	backends := []Backend{
		NewOpenAIBackend("sk-test", "gpt-4o-mini", "http://127.0.0.1:1", math.NaN()),
		NewOllamaBackend("llama3.1", "http://127.0.0.1:1", math.NaN()),
	}
	for _, b := range backends {
		_, err := b.Draft(context.Background(), "p")
		var be *BackendError
		require.ErrorAs(t, err, &be, b.Name())
		assert.Equal(t, KindUnavailable, be.Kind)
		assert.Contains(t, be.Error(), "failed to encode request")
	}
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	b, err := NewBackend(ctx, Options{Provider: "offline"})
	require.NoError(t, err)
	assert.Equal(t, "offline", b.Name())
	out, err := b.Draft(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, OfflinePlanYAML, out)

	_, err = NewBackend(ctx, Options{Provider: "openai"})
	assert.ErrorContains(t, err, "api key")

	b, err = NewBackend(ctx, Options{Provider: "github", FallbackOffline: true, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "offline", b.Name())

	b, err = NewBackend(ctx, Options{Provider: "OpenAI", APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())

	b, err = NewBackend(ctx, Options{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", b.Name())

	_, err = NewBackend(ctx, Options{Provider: "carrier-pigeon", APIKey: "x"})
	assert.ErrorContains(t, err, "unsupported")
}
