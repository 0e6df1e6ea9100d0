package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, Model, body["model"])
		assert.Equal(t, "Landing page\n\nBuild it", body["input"])
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,-1,0.25]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", "sk-test")
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "Landing page\n\nBuild it")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1, 0.25}, vec)
}

func TestEmbedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "sk-test")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = NewClient("", "")
	assert.Error(t, err)
}
