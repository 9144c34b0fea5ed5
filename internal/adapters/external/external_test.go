package external_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reelforge/internal/adapters/external"
	"github.com/example/reelforge/internal/ports/secondary"
)

func newClient(retries uint64) *external.Client {
	return external.NewClient(external.ClientConfig{
		Timeout:      2 * time.Second,
		Retries:      retries,
		RetryBackoff: time.Millisecond,
	}, nil)
}

func TestContentDiscovery_RecentContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "creator-a", r.URL.Query().Get("creator_id"))
		assert.Equal(t, "7", r.URL.Query().Get("days_back"))
		assert.Equal(t, "2", r.URL.Query().Get("max_videos"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":"v1","title":"One","published_at":"2026-03-01T10:00:00Z"},
			{"id":"v2","title":"Two","published_at":"2026-02-28T10:00:00Z"},
			{"id":"v3","title":"Three","published_at":"2026-02-27T10:00:00Z"}]}`))
	}))
	defer srv.Close()

	d := external.NewContentDiscovery(newClient(0), srv.URL+"/videos?api_key=k")
	items, err := d.RecentContent(context.Background(), "creator-a", 7, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "v1", items[0].ID)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), items[0].PublishedAt.UTC())
}

func TestContentDiscovery_NotConfigured(t *testing.T) {
	d := external.NewContentDiscovery(newClient(0), "")
	_, err := d.RecentContent(context.Background(), "creator-a", 7, 5)
	assert.Error(t, err)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	d := external.NewContentDiscovery(newClient(3), srv.URL)
	items, err := d.RecentContent(context.Background(), "creator-a", 7, 5)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown creator", http.StatusNotFound)
	}))
	defer srv.Close()

	d := external.NewContentDiscovery(newClient(3), srv.URL)
	_, err := d.RecentContent(context.Background(), "creator-a", 7, 5)
	require.Error(t, err)

	var statusErr *external.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "unknown creator", statusErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := external.NewContentDiscovery(newClient(2), srv.URL)
	_, err := d.RecentContent(context.Background(), "creator-a", 7, 5)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStageBackend_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/story", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req secondary.StageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "story", req.Stage)
		assert.Equal(t, "v1", req.ContentID)
		assert.Contains(t, req.Inputs, "video")

		_, _ = w.Write([]byte(`{"title":"A story","description":"Told well"}`))
	}))
	defer srv.Close()

	b := external.NewStageBackend(newClient(0), map[string]string{"story": srv.URL + "/story"})
	out, err := b.Invoke(context.Background(), secondary.StageRequest{
		TaskID:    "t1",
		Stage:     "story",
		CreatorID: "c1",
		ContentID: "v1",
		Inputs:    map[string]map[string]any{"video": {"content_id": "v1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "A story", out["title"])
}

func TestStageBackend_UnconfiguredStage(t *testing.T) {
	b := external.NewStageBackend(newClient(0), map[string]string{})
	_, err := b.Invoke(context.Background(), secondary.StageRequest{Stage: "voice"})
	assert.ErrorContains(t, err, "no backend configured for stage voice")
}

func TestUploader_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req secondary.UploadRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.AccountID == "acc-bad" {
			http.Error(w, "token revoked", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(secondary.UploadResult{URL: "https://videos.example/" + req.PublishID})
	}))
	defer srv.Close()

	u := external.NewUploader(newClient(0), srv.URL)

	res, err := u.Upload(context.Background(), secondary.UploadRequest{PublishID: "p1", AccountID: "acc-1", ContentPath: "drafts/x"})
	require.NoError(t, err)
	assert.Equal(t, "https://videos.example/p1", res.URL)

	_, err = u.Upload(context.Background(), secondary.UploadRequest{PublishID: "p2", AccountID: "acc-bad"})
	assert.ErrorContains(t, err, "token revoked")
}

func TestUploader_EmptyURLInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := external.NewUploader(newClient(0), srv.URL).Upload(context.Background(), secondary.UploadRequest{AccountID: "acc-1"})
	assert.ErrorContains(t, err, "no url")
}
