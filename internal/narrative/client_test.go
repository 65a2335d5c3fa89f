package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNarrate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/narrate", r.URL.Path)

		var req narrateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "a quiet tavern", req.Prompt)
		require.Equal(t, "village-square", req.Location)

		json.NewEncoder(w).Encode(narrateResponse{Text: "The tavern hums with low conversation."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zap.NewNop())

	text, err := c.Narrate(context.Background(), "a quiet tavern", "village-square", "EXPLORATION")
	require.NoError(t, err)
	require.Equal(t, "The tavern hums with low conversation.", text)
}

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/images", r.URL.Path)
		json.NewEncoder(w).Encode(imageResponse{URL: "https://img.example/scene-1.png"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zap.NewNop())

	url, err := c.GenerateImage(context.Background(), "a quiet tavern", "oil-painting")
	require.NoError(t, err)
	require.Equal(t, "https://img.example/scene-1.png", url)
}

func TestNarrateServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zap.NewNop())

	_, err := c.Narrate(context.Background(), "prompt", "", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable))
}

func TestNarrateConnectionRefused(t *testing.T) {
	// Point at a server that is already closed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())

	_, err := c.Narrate(context.Background(), "prompt", "", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable))
}
