package speech_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/speech"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *speech.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return speech.New(&config.SpeechConfig{
		BaseURL:         srv.URL,
		APIKey:          "key-1",
		CallbackBaseURL: "https://parley.example.com",
		Timeout:         "5s",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestUpload(t *testing.T) {
	t.Run("streams audio and returns hosted url", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/upload" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "key-1" {
				t.Errorf("Authorization = %q", got)
			}
			if got := r.Header.Get("Content-Type"); got != "application/octet-stream" {
				t.Errorf("Content-Type = %q", got)
			}
			data, _ := io.ReadAll(r.Body)
			if string(data) != "raw-audio" {
				t.Errorf("body = %q", data)
			}
			w.Write([]byte(`{"upload_url":"https://cdn.provider/u1"}`))
		})

		url, err := client.Upload(context.Background(), []byte("raw-audio"))
		if err != nil {
			t.Fatalf("Upload error: %v", err)
		}
		if url != "https://cdn.provider/u1" {
			t.Errorf("url = %q", url)
		}
	})

	t.Run("missing upload_url is an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})

		if _, err := client.Upload(context.Background(), []byte("x")); err == nil {
			t.Fatal("expected error for empty upload_url")
		}
	})

	t.Run("provider failure surfaces", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		if _, err := client.Upload(context.Background(), []byte("x")); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestSubmit(t *testing.T) {
	t.Run("requests diarized job with callback", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/transcript" {
				t.Errorf("path = %q", r.URL.Path)
			}

			var payload map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if payload["audio_url"] != "https://cdn/rec.mp3" {
				t.Errorf("audio_url = %v", payload["audio_url"])
			}
			if payload["webhook_url"] != "https://parley.example.com/hooks/transcription" {
				t.Errorf("webhook_url = %v", payload["webhook_url"])
			}
			if payload["speaker_labels"] != true {
				t.Errorf("speaker_labels = %v", payload["speaker_labels"])
			}
			if payload["speakers_expected"] != float64(2) {
				t.Errorf("speakers_expected = %v", payload["speakers_expected"])
			}

			w.Write([]byte(`{"id":"job-1","status":"queued"}`))
		})

		jobID, err := client.Submit(context.Background(), "https://cdn/rec.mp3")
		if err != nil {
			t.Fatalf("Submit error: %v", err)
		}
		if jobID != "job-1" {
			t.Errorf("jobID = %q, want job-1", jobID)
		}
	})

	t.Run("missing job id is an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"queued"}`))
		})

		if _, err := client.Submit(context.Background(), "https://cdn/x.mp3"); err == nil {
			t.Fatal("expected error for missing job id")
		}
	})

	t.Run("provider rejection surfaces", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"bad key"}`))
		})

		if _, err := client.Submit(context.Background(), "https://cdn/x.mp3"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestFetch(t *testing.T) {
	t.Run("returns full job payload", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/transcript/job-1" {
				t.Errorf("path = %q", r.URL.Path)
			}
			w.Write([]byte(`{
				"id":"job-1","status":"completed","text":"Hello.","audio_duration":42,
				"utterances":[{"speaker":"A","text":"Hello.","start":0,"end":900,"confidence":0.97}]
			}`))
		})

		job, err := client.Fetch(context.Background(), "job-1")
		if err != nil {
			t.Fatalf("Fetch error: %v", err)
		}
		if job.Status != speech.StatusCompleted || job.AudioDuration != 42 {
			t.Errorf("job = %+v", job)
		}
		if len(job.Utterances) != 1 || job.Utterances[0].End != 900 {
			t.Errorf("utterances = %+v", job.Utterances)
		}
	})

	t.Run("not found surfaces", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		if _, err := client.Fetch(context.Background(), "missing"); err == nil {
			t.Fatal("expected error")
		}
	})
}
