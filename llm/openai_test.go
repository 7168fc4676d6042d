package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/promoscrape/cleaner"
	"github.com/use-agent/promoscrape/models"
)

func TestParseSelectors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    models.FieldSelectors
		wantErr bool
	}{
		{
			name: "canonical keys",
			in:   `{"titulo": ".title", "descripcion": ".desc", "medioPago":"", "fecha":"", "condiciones":""}`,
			want: models.FieldSelectors{Title: ".title", Description: ".desc"},
		},
		{
			name: "english keys and null",
			in:   `{"title": "h2", "paymentMethod": " img + span ", "date": null}`,
			want: models.FieldSelectors{Title: "h2", PaymentMethod: "img + span"},
		},
		{
			name: "markdown fence and trailing comma",
			in:   "Here you go:\n```json\n{\"titulo\": \"h3\",}\n```",
			want: models.FieldSelectors{Title: "h3"},
		},
		{name: "not json", in: "I could not find promotions.", wantErr: true},
		{name: "broken json", in: `{"titulo": }`, wantErr: true},
		{name: "no known fields", in: `{"price": ".p"}`, wantErr: true},
		{name: "non-string selector", in: `{"titulo": 3}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelectors(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, models.IsCode(err, models.ErrCodeSelectorGeneration))
				assert.False(t, models.IsFatal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeCompletions serves an OpenAI-style chat completion endpoint.
func fakeCompletions(t *testing.T, status int, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, systemPrompt, req.Messages[0].Content)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "nope"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
}

func newTestClient(srv *httptest.Server, apiKey string) *Client {
	return NewClient(srv.Client(), NewLimiter(100, time.Millisecond), Params{
		APIKey:  apiKey,
		Model:   "gpt-4o-mini",
		BaseURL: srv.URL + "/v1/",
	})
}

func TestInferSelectors_Success(t *testing.T) {
	var calls atomic.Int32
	srv := fakeCompletions(t, http.StatusOK, `{"titulo": "h2", "descripcion": "p", "medioPago": "", "fecha": "", "condiciones": ""}`, &calls)
	defer srv.Close()

	got, err := newTestClient(srv, "sk-test").InferSelectors(context.Background(), cleaner.Chunk{Index: 0, Text: "<div><h2>a</h2><p>b</p></div>"})

	require.NoError(t, err)
	assert.Equal(t, models.FieldSelectors{Title: "h2", Description: "p"}, got)
	assert.EqualValues(t, 1, calls.Load())
}

func TestInferSelectors_ChunkScopedFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		content   string
		wantFatal bool
	}{
		{"non json", http.StatusOK, "sorry", false},
		{"empty content", http.StatusOK, "   ", false},
		{"rate limited upstream", http.StatusTooManyRequests, "", false},
		{"server error", http.StatusInternalServerError, "", false},
		{"unauthorized", http.StatusUnauthorized, "", true},
		{"forbidden", http.StatusForbidden, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := fakeCompletions(t, tt.status, tt.content, &calls)
			defer srv.Close()

			_, err := newTestClient(srv, "sk-test").InferSelectors(context.Background(), cleaner.Chunk{Index: 4, Text: "<p>x</p>"})

			require.Error(t, err)
			se := models.AsScrapeError(err)
			assert.Equal(t, models.ErrCodeSelectorGeneration, se.Code)
			assert.Equal(t, 4, se.Chunk)
			assert.Equal(t, tt.wantFatal, se.Fatal)
		})
	}
}

func TestInferSelectors_MissingKeyFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := fakeCompletions(t, http.StatusOK, `{}`, &calls)
	defer srv.Close()

	c := newTestClient(srv, "")
	assert.False(t, c.Ready())

	_, err := c.InferSelectors(context.Background(), cleaner.Chunk{})
	require.Error(t, err)
	assert.True(t, models.IsFatal(err))
	assert.Zero(t, calls.Load(), "no request is sent without a credential")
}

func TestLimiter_BurstThenWait(t *testing.T) {
	l := NewLimiter(2, 80*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "burst calls do not wait")

	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond, "third call waits for a refill")
}

func TestLimiter_SharedAcrossGoroutines(t *testing.T) {
	l := NewLimiter(3, 100*time.Millisecond)
	ctx := context.Background()

	var immediate atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			start := time.Now()
			_ = l.Wait(ctx)
			if time.Since(start) < 50*time.Millisecond {
				immediate.Add(1)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	assert.EqualValues(t, 3, immediate.Load())
}

func TestLimiter_WaitHonoursCancellation(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
