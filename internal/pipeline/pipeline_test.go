package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/parleyhq/parley/internal/analysis"
	"github.com/parleyhq/parley/internal/crm"
	"github.com/parleyhq/parley/internal/pipeline"
	"github.com/parleyhq/parley/internal/settings"
	"github.com/parleyhq/parley/internal/speech"
	"github.com/parleyhq/parley/internal/transcripts"
	"github.com/parleyhq/parley/pkg/pagination"
)

type mockSettings struct {
	findFn           func(ctx context.Context, tenantID string) (*settings.ClientSettings, error)
	findByLocationFn func(ctx context.Context, locationID string) (*settings.ClientSettings, error)
}

func (m *mockSettings) Handler() *settings.Handler { return nil }

func (m *mockSettings) Find(ctx context.Context, tenantID string) (*settings.ClientSettings, error) {
	return m.findFn(ctx, tenantID)
}

func (m *mockSettings) FindByLocation(ctx context.Context, locationID string) (*settings.ClientSettings, error) {
	return m.findByLocationFn(ctx, locationID)
}

func (m *mockSettings) Save(ctx context.Context, tenantID string, cmd settings.SaveCommand) (*settings.ClientSettings, error) {
	return nil, errors.New("not implemented")
}

type mockTranscripts struct {
	savePlaceholderFn func(ctx context.Context, cmd transcripts.PlaceholderCommand) (*transcripts.Transcript, error)
	setJobFn          func(ctx context.Context, messageID, jobID, audioURL string) (*transcripts.Transcript, error)
	findByMessageFn   func(ctx context.Context, tenantID, messageID string) (*transcripts.Transcript, error)
	findByJobFn       func(ctx context.Context, jobID string) (*transcripts.Transcript, error)
	completeFn        func(ctx context.Context, jobID string, cmd transcripts.CompleteCommand) (*transcripts.Transcript, error)
	markFailedMsgFn   func(ctx context.Context, messageID, summary string) error
	markFailedJobFn   func(ctx context.Context, jobID, summary string) error
	applyAnalysisFn   func(ctx context.Context, tenantID, messageID string, update transcripts.AnalysisUpdate) (*transcripts.Transcript, error)
}

func (m *mockTranscripts) Handler() *transcripts.Handler { return nil }

func (m *mockTranscripts) List(ctx context.Context, tenantID string, page pagination.PageRequest, filters transcripts.Filters) (*pagination.PageResult[transcripts.Transcript], error) {
	return nil, errors.New("not implemented")
}

func (m *mockTranscripts) FindByMessage(ctx context.Context, tenantID, messageID string) (*transcripts.Transcript, error) {
	return m.findByMessageFn(ctx, tenantID, messageID)
}

func (m *mockTranscripts) FindByJob(ctx context.Context, jobID string) (*transcripts.Transcript, error) {
	return m.findByJobFn(ctx, jobID)
}

func (m *mockTranscripts) SavePlaceholder(ctx context.Context, cmd transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
	return m.savePlaceholderFn(ctx, cmd)
}

func (m *mockTranscripts) SetJob(ctx context.Context, messageID, jobID, audioURL string) (*transcripts.Transcript, error) {
	return m.setJobFn(ctx, messageID, jobID, audioURL)
}

func (m *mockTranscripts) Complete(ctx context.Context, jobID string, cmd transcripts.CompleteCommand) (*transcripts.Transcript, error) {
	return m.completeFn(ctx, jobID, cmd)
}

func (m *mockTranscripts) MarkFailedByMessage(ctx context.Context, messageID, summary string) error {
	return m.markFailedMsgFn(ctx, messageID, summary)
}

func (m *mockTranscripts) MarkFailedByJob(ctx context.Context, jobID, summary string) error {
	return m.markFailedJobFn(ctx, jobID, summary)
}

func (m *mockTranscripts) ApplyAnalysis(ctx context.Context, tenantID, messageID string, update transcripts.AnalysisUpdate) (*transcripts.Transcript, error) {
	return m.applyAnalysisFn(ctx, tenantID, messageID, update)
}

func (m *mockTranscripts) Delete(ctx context.Context, tenantID, messageID string) error {
	return errors.New("not implemented")
}

type mockCRM struct {
	fetchMessageFn      func(ctx context.Context, messageID string, creds crm.Credentials) (*crm.Message, error)
	downloadRecordingFn func(ctx context.Context, messageID string, creds crm.Credentials) ([]byte, error)
	latestCallFn        func(ctx context.Context, contactID string, creds crm.Credentials) (*crm.Message, error)
	postNoteFn          func(ctx context.Context, contactID, noteBody string, creds crm.Credentials) error
}

func (m *mockCRM) FetchMessage(ctx context.Context, messageID string, creds crm.Credentials) (*crm.Message, error) {
	return m.fetchMessageFn(ctx, messageID, creds)
}

func (m *mockCRM) DownloadRecording(ctx context.Context, messageID string, creds crm.Credentials) ([]byte, error) {
	return m.downloadRecordingFn(ctx, messageID, creds)
}

func (m *mockCRM) LatestCallMessage(ctx context.Context, contactID string, creds crm.Credentials) (*crm.Message, error) {
	return m.latestCallFn(ctx, contactID, creds)
}

func (m *mockCRM) PostNote(ctx context.Context, contactID, noteBody string, creds crm.Credentials) error {
	return m.postNoteFn(ctx, contactID, noteBody, creds)
}

type mockSpeech struct {
	uploadFn func(ctx context.Context, audio []byte) (string, error)
	submitFn func(ctx context.Context, audioURL string) (string, error)
	fetchFn  func(ctx context.Context, jobID string) (*speech.Job, error)
}

func (m *mockSpeech) Upload(ctx context.Context, audio []byte) (string, error) {
	return m.uploadFn(ctx, audio)
}

func (m *mockSpeech) Submit(ctx context.Context, audioURL string) (string, error) {
	return m.submitFn(ctx, audioURL)
}

func (m *mockSpeech) Fetch(ctx context.Context, jobID string) (*speech.Job, error) {
	return m.fetchFn(ctx, jobID)
}

type mockAnalyzer struct {
	analyzeFn func(ctx context.Context, fullText string, speakers []transcripts.Turn) analysis.Analysis
	answerFn  func(ctx context.Context, question, fullText string, speakers []transcripts.Turn, history []analysis.HistoryTurn) string
}

func (m *mockAnalyzer) Analyze(ctx context.Context, fullText string, speakers []transcripts.Turn) analysis.Analysis {
	return m.analyzeFn(ctx, fullText, speakers)
}

func (m *mockAnalyzer) Answer(ctx context.Context, question, fullText string, speakers []transcripts.Turn, history []analysis.HistoryTurn) string {
	return m.answerFn(ctx, question, fullText, speakers, history)
}

func testSettings() *mockSettings {
	cs := &settings.ClientSettings{
		TenantID:    "t1",
		LocationID:  "loc1",
		AccessToken: "tok",
	}
	return &mockSettings{
		findFn:           func(_ context.Context, _ string) (*settings.ClientSettings, error) { return cs, nil },
		findByLocationFn: func(_ context.Context, _ string) (*settings.ClientSettings, error) { return cs, nil },
	}
}

func newOrchestrator(
	s settings.System,
	tr transcripts.System,
	c pipeline.CRMGateway,
	sp pipeline.SpeechClient,
	a pipeline.Analyzer,
) *pipeline.Orchestrator {
	return pipeline.New(s, tr, c, sp, a, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStartByTenant(t *testing.T) {
	t.Run("attachment url path submits and records job", func(t *testing.T) {
		var placeholder transcripts.PlaceholderCommand
		var submittedURL, jobMessage, jobID string

		tr := &mockTranscripts{
			savePlaceholderFn: func(_ context.Context, cmd transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
				placeholder = cmd
				return &transcripts.Transcript{MessageID: cmd.MessageID, TenantID: cmd.TenantID}, nil
			},
			setJobFn: func(_ context.Context, messageID, id, audioURL string) (*transcripts.Transcript, error) {
				jobMessage, jobID = messageID, id
				return &transcripts.Transcript{MessageID: messageID, ID: id}, nil
			},
		}
		c := &mockCRM{
			fetchMessageFn: func(_ context.Context, messageID string, creds crm.Credentials) (*crm.Message, error) {
				if creds.AccessToken != "tok" || creds.LocationID != "loc1" {
					t.Errorf("creds = %+v", creds)
				}
				return &crm.Message{
					ID:          messageID,
					MessageType: crm.CallMessageType,
					Attachments: []crm.Attachment{{URL: "https://cdn/rec.mp3"}},
				}, nil
			},
		}
		sp := &mockSpeech{
			submitFn: func(_ context.Context, audioURL string) (string, error) {
				submittedURL = audioURL
				return "job-1", nil
			},
		}

		o := newOrchestrator(testSettings(), tr, c, sp, &mockAnalyzer{})

		if err := o.StartByTenant(context.Background(), "t1", "m1", "c1"); err != nil {
			t.Fatalf("StartByTenant error: %v", err)
		}

		if placeholder.MessageID != "m1" || placeholder.TenantID != "t1" || placeholder.ContactID != "c1" {
			t.Errorf("placeholder = %+v", placeholder)
		}
		if submittedURL != "https://cdn/rec.mp3" {
			t.Errorf("submitted url = %q", submittedURL)
		}
		if jobMessage != "m1" || jobID != "job-1" {
			t.Errorf("job recorded = %s/%s", jobMessage, jobID)
		}
	})

	t.Run("binary fallback uploads downloaded audio", func(t *testing.T) {
		var uploaded []byte
		var submittedURL string

		tr := &mockTranscripts{
			savePlaceholderFn: func(_ context.Context, cmd transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{MessageID: cmd.MessageID}, nil
			},
			setJobFn: func(_ context.Context, messageID, id, audioURL string) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{MessageID: messageID}, nil
			},
		}
		c := &mockCRM{
			fetchMessageFn: func(_ context.Context, messageID string, _ crm.Credentials) (*crm.Message, error) {
				return &crm.Message{ID: messageID, MessageType: crm.CallMessageType}, nil
			},
			downloadRecordingFn: func(_ context.Context, _ string, _ crm.Credentials) ([]byte, error) {
				return []byte("raw-audio"), nil
			},
		}
		sp := &mockSpeech{
			uploadFn: func(_ context.Context, audio []byte) (string, error) {
				uploaded = audio
				return "https://provider/hosted", nil
			},
			submitFn: func(_ context.Context, audioURL string) (string, error) {
				submittedURL = audioURL
				return "job-2", nil
			},
		}

		o := newOrchestrator(testSettings(), tr, c, sp, &mockAnalyzer{})

		if err := o.StartByTenant(context.Background(), "t1", "m1", "c1"); err != nil {
			t.Fatalf("StartByTenant error: %v", err)
		}
		if string(uploaded) != "raw-audio" {
			t.Errorf("uploaded = %q", uploaded)
		}
		if submittedURL != "https://provider/hosted" {
			t.Errorf("submitted url = %q", submittedURL)
		}
	})

	t.Run("no recording marks failed with guidance", func(t *testing.T) {
		var failedSummary string

		tr := &mockTranscripts{
			savePlaceholderFn: func(_ context.Context, cmd transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{MessageID: cmd.MessageID}, nil
			},
			markFailedMsgFn: func(_ context.Context, _, summary string) error {
				failedSummary = summary
				return nil
			},
		}
		c := &mockCRM{
			fetchMessageFn: func(_ context.Context, messageID string, _ crm.Credentials) (*crm.Message, error) {
				return &crm.Message{ID: messageID, MessageType: crm.CallMessageType}, nil
			},
			downloadRecordingFn: func(_ context.Context, _ string, _ crm.Credentials) ([]byte, error) {
				return nil, crm.ErrNotFound
			},
		}

		o := newOrchestrator(testSettings(), tr, c, &mockSpeech{}, &mockAnalyzer{})

		if err := o.StartByTenant(context.Background(), "t1", "m1", "c1"); err == nil {
			t.Fatal("expected error when no recording available")
		}
		if failedSummary != crm.NoRecordingGuidance {
			t.Errorf("summary = %q, want guidance text", failedSummary)
		}
	})

	t.Run("submission failure marks failed", func(t *testing.T) {
		var failedSummary string

		tr := &mockTranscripts{
			savePlaceholderFn: func(_ context.Context, cmd transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{MessageID: cmd.MessageID}, nil
			},
			markFailedMsgFn: func(_ context.Context, _, summary string) error {
				failedSummary = summary
				return nil
			},
		}
		c := &mockCRM{
			fetchMessageFn: func(_ context.Context, messageID string, _ crm.Credentials) (*crm.Message, error) {
				return &crm.Message{
					ID:          messageID,
					Attachments: []crm.Attachment{{URL: "https://cdn/rec.mp3"}},
				}, nil
			},
		}
		sp := &mockSpeech{
			submitFn: func(_ context.Context, _ string) (string, error) {
				return "", errors.New("provider down")
			},
		}

		o := newOrchestrator(testSettings(), tr, c, sp, &mockAnalyzer{})

		if err := o.StartByTenant(context.Background(), "t1", "m1", "c1"); err == nil {
			t.Fatal("expected error on submission failure")
		}
		if !strings.HasPrefix(failedSummary, "Transcription submission failed:") {
			t.Errorf("summary = %q", failedSummary)
		}
	})

	t.Run("completed transcript short-circuits", func(t *testing.T) {
		tr := &mockTranscripts{
			savePlaceholderFn: func(_ context.Context, _ transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
				return nil, transcripts.ErrAlreadyCompleted
			},
		}
		c := &mockCRM{
			fetchMessageFn: func(_ context.Context, _ string, _ crm.Credentials) (*crm.Message, error) {
				t.Error("audio resolution ran for a completed transcript")
				return nil, crm.ErrNotFound
			},
		}

		o := newOrchestrator(testSettings(), tr, c, &mockSpeech{}, &mockAnalyzer{})

		if err := o.StartByTenant(context.Background(), "t1", "m1", "c1"); err != nil {
			t.Errorf("StartByTenant error = %v, want nil", err)
		}
	})

	t.Run("unknown tenant fails before any write", func(t *testing.T) {
		s := &mockSettings{
			findFn: func(_ context.Context, _ string) (*settings.ClientSettings, error) {
				return nil, settings.ErrNotFound
			},
		}
		tr := &mockTranscripts{
			savePlaceholderFn: func(_ context.Context, _ transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
				t.Error("placeholder written without credentials")
				return nil, nil
			},
		}

		o := newOrchestrator(s, tr, &mockCRM{}, &mockSpeech{}, &mockAnalyzer{})

		if err := o.StartByTenant(context.Background(), "ghost", "m1", "c1"); !errors.Is(err, settings.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestHandleCompletion(t *testing.T) {
	t.Run("unknown job acknowledged without provider fetch", func(t *testing.T) {
		tr := &mockTranscripts{
			findByJobFn: func(_ context.Context, _ string) (*transcripts.Transcript, error) {
				return nil, transcripts.ErrNotFound
			},
		}
		sp := &mockSpeech{
			fetchFn: func(_ context.Context, _ string) (*speech.Job, error) {
				t.Error("provider fetched for unknown job")
				return nil, nil
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, sp, &mockAnalyzer{})

		if err := o.HandleCompletion(context.Background(), "never-seen"); err != nil {
			t.Errorf("HandleCompletion error = %v, want nil", err)
		}
	})

	t.Run("store failure surfaces instead of dropping the signal", func(t *testing.T) {
		storeErr := errors.New("connection refused")
		tr := &mockTranscripts{
			findByJobFn: func(_ context.Context, _ string) (*transcripts.Transcript, error) {
				return nil, storeErr
			},
		}
		sp := &mockSpeech{
			fetchFn: func(_ context.Context, _ string) (*speech.Job, error) {
				t.Error("provider fetched despite store failure")
				return nil, nil
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, sp, &mockAnalyzer{})

		if err := o.HandleCompletion(context.Background(), "job-1"); !errors.Is(err, storeErr) {
			t.Errorf("error = %v, want the store failure", err)
		}
	})

	t.Run("provider error marks job failed", func(t *testing.T) {
		var failedSummary string
		tr := &mockTranscripts{
			findByJobFn: func(_ context.Context, jobID string) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{ID: jobID, MessageID: "m1", TenantID: "t1"}, nil
			},
			markFailedJobFn: func(_ context.Context, _, summary string) error {
				failedSummary = summary
				return nil
			},
		}
		sp := &mockSpeech{
			fetchFn: func(_ context.Context, jobID string) (*speech.Job, error) {
				return &speech.Job{ID: jobID, Status: speech.StatusError, Error: "bad audio"}, nil
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, sp, &mockAnalyzer{})

		if err := o.HandleCompletion(context.Background(), "job-1"); err != nil {
			t.Fatalf("HandleCompletion error: %v", err)
		}
		if failedSummary != "Transcription failed: bad audio" {
			t.Errorf("summary = %q", failedSummary)
		}
	})

	t.Run("in-flight job acknowledged without mutation", func(t *testing.T) {
		tr := &mockTranscripts{
			findByJobFn: func(_ context.Context, jobID string) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{ID: jobID}, nil
			},
			completeFn: func(_ context.Context, _ string, _ transcripts.CompleteCommand) (*transcripts.Transcript, error) {
				t.Error("completed a job still processing")
				return nil, nil
			},
		}
		sp := &mockSpeech{
			fetchFn: func(_ context.Context, jobID string) (*speech.Job, error) {
				return &speech.Job{ID: jobID, Status: speech.StatusProcessing}, nil
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, sp, &mockAnalyzer{})

		if err := o.HandleCompletion(context.Background(), "job-1"); err != nil {
			t.Errorf("HandleCompletion error = %v, want nil", err)
		}
	})

	t.Run("completed job analyzed, stored, and noted back", func(t *testing.T) {
		var completed transcripts.CompleteCommand
		var noteBody string

		tr := &mockTranscripts{
			findByJobFn: func(_ context.Context, jobID string) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{ID: jobID, MessageID: "m1", TenantID: "t1", ContactID: "c1"}, nil
			},
			completeFn: func(_ context.Context, jobID string, cmd transcripts.CompleteCommand) (*transcripts.Transcript, error) {
				completed = cmd
				return &transcripts.Transcript{
					ID: jobID, MessageID: "m1", ContactID: "c1",
					Status:      transcripts.StatusCompleted,
					Summary:     cmd.Summary,
					Sentiment:   cmd.Sentiment,
					ActionItems: cmd.ActionItems,
				}, nil
			},
		}
		sp := &mockSpeech{
			fetchFn: func(_ context.Context, jobID string) (*speech.Job, error) {
				return &speech.Job{
					ID: jobID, Status: speech.StatusCompleted,
					Text:          "Hello. Hi.",
					AudioDuration: 60,
					Utterances: []speech.Utterance{
						{Speaker: "A", Text: "Hello.", Start: 0, End: 800},
						{Speaker: "B", Text: "Hi.", Start: 900, End: 1500},
					},
				}, nil
			},
		}
		a := &mockAnalyzer{
			analyzeFn: func(_ context.Context, fullText string, speakers []transcripts.Turn) analysis.Analysis {
				if fullText != "Hello. Hi." || len(speakers) != 2 {
					t.Errorf("analyze input = %q / %d turns", fullText, len(speakers))
				}
				return analysis.Analysis{
					Summary:        "Short greeting call.",
					Sentiment:      "POSITIVE",
					SentimentScore: 80,
					ActionItems:    []string{"Follow up next week"},
				}
			},
		}
		c := &mockCRM{
			postNoteFn: func(_ context.Context, contactID, body string, _ crm.Credentials) error {
				if contactID != "c1" {
					t.Errorf("note contact = %q", contactID)
				}
				noteBody = body
				return nil
			},
		}

		o := newOrchestrator(testSettings(), tr, c, sp, a)

		if err := o.HandleCompletion(context.Background(), "job-1"); err != nil {
			t.Fatalf("HandleCompletion error: %v", err)
		}

		if completed.FullText != "Hello. Hi." || completed.DurationSeconds != 60 {
			t.Errorf("completed = %+v", completed)
		}
		if completed.Sentiment != "POSITIVE" || completed.SentimentScore != 80 {
			t.Errorf("sentiment = %s/%d", completed.Sentiment, completed.SentimentScore)
		}
		if !strings.HasPrefix(noteBody, "Call Summary (POSITIVE)\n\nShort greeting call.") {
			t.Errorf("note = %q", noteBody)
		}
		if !strings.Contains(noteBody, "- Follow up next week") {
			t.Errorf("note missing action item: %q", noteBody)
		}
	})

	t.Run("note failure does not fail completion", func(t *testing.T) {
		tr := &mockTranscripts{
			findByJobFn: func(_ context.Context, jobID string) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{ID: jobID, MessageID: "m1", TenantID: "t1", ContactID: "c1"}, nil
			},
			completeFn: func(_ context.Context, jobID string, cmd transcripts.CompleteCommand) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{ID: jobID, ContactID: "c1", Status: transcripts.StatusCompleted}, nil
			},
		}
		sp := &mockSpeech{
			fetchFn: func(_ context.Context, jobID string) (*speech.Job, error) {
				return &speech.Job{ID: jobID, Status: speech.StatusCompleted, Text: "x"}, nil
			},
		}
		a := &mockAnalyzer{
			analyzeFn: func(_ context.Context, _ string, _ []transcripts.Turn) analysis.Analysis {
				return analysis.Analysis{Summary: "s", Sentiment: "NEUTRAL", SentimentScore: 50}
			},
		}
		c := &mockCRM{
			postNoteFn: func(_ context.Context, _, _ string, _ crm.Credentials) error {
				return errors.New("crm down")
			},
		}

		o := newOrchestrator(testSettings(), tr, c, sp, a)

		if err := o.HandleCompletion(context.Background(), "job-1"); err != nil {
			t.Errorf("HandleCompletion error = %v, want nil", err)
		}
	})
}

func TestReanalyze(t *testing.T) {
	completedRecord := func() *transcripts.Transcript {
		return &transcripts.Transcript{
			MessageID: "m1", TenantID: "t1",
			Status:   transcripts.StatusCompleted,
			FullText: "Hello.",
			Speakers: []transcripts.Turn{{Speaker: "A", Text: "Hello."}},
		}
	}

	t.Run("rewrites enrichment for completed transcript", func(t *testing.T) {
		var applied transcripts.AnalysisUpdate
		tr := &mockTranscripts{
			findByMessageFn: func(_ context.Context, _, _ string) (*transcripts.Transcript, error) {
				return completedRecord(), nil
			},
			applyAnalysisFn: func(_ context.Context, _, _ string, update transcripts.AnalysisUpdate) (*transcripts.Transcript, error) {
				applied = update
				rec := completedRecord()
				rec.Summary = update.Summary
				return rec, nil
			},
		}
		a := &mockAnalyzer{
			analyzeFn: func(_ context.Context, _ string, _ []transcripts.Turn) analysis.Analysis {
				return analysis.Analysis{Summary: "fresh take", Sentiment: "NEGATIVE", SentimentScore: 30}
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, &mockSpeech{}, a)

		result, err := o.Reanalyze(context.Background(), "t1", "m1")
		if err != nil {
			t.Fatalf("Reanalyze error: %v", err)
		}
		if applied.Summary != "fresh take" || applied.Sentiment != "NEGATIVE" {
			t.Errorf("applied = %+v", applied)
		}
		if result.Summary != "fresh take" {
			t.Errorf("result summary = %q", result.Summary)
		}
	})

	t.Run("processing transcript rejected", func(t *testing.T) {
		tr := &mockTranscripts{
			findByMessageFn: func(_ context.Context, _, _ string) (*transcripts.Transcript, error) {
				rec := completedRecord()
				rec.Status = transcripts.StatusProcessing
				return rec, nil
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, &mockSpeech{}, &mockAnalyzer{})

		if _, err := o.Reanalyze(context.Background(), "t1", "m1"); !errors.Is(err, transcripts.ErrNotReady) {
			t.Errorf("error = %v, want ErrNotReady", err)
		}
	})

	t.Run("completed without speakers rejected", func(t *testing.T) {
		tr := &mockTranscripts{
			findByMessageFn: func(_ context.Context, _, _ string) (*transcripts.Transcript, error) {
				rec := completedRecord()
				rec.Speakers = nil
				return rec, nil
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, &mockSpeech{}, &mockAnalyzer{})

		if _, err := o.Reanalyze(context.Background(), "t1", "m1"); !errors.Is(err, transcripts.ErrNotReady) {
			t.Errorf("error = %v, want ErrNotReady", err)
		}
	})

	t.Run("missing transcript surfaces not found", func(t *testing.T) {
		tr := &mockTranscripts{
			findByMessageFn: func(_ context.Context, _, _ string) (*transcripts.Transcript, error) {
				return nil, transcripts.ErrNotFound
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, &mockSpeech{}, &mockAnalyzer{})

		if _, err := o.Reanalyze(context.Background(), "t1", "missing"); !errors.Is(err, transcripts.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestAsk(t *testing.T) {
	t.Run("answers for completed transcript", func(t *testing.T) {
		tr := &mockTranscripts{
			findByMessageFn: func(_ context.Context, _, _ string) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{
					Status:   transcripts.StatusCompleted,
					FullText: "Hello.",
					Speakers: []transcripts.Turn{{Speaker: "A", Text: "Hello."}},
				}, nil
			},
		}
		a := &mockAnalyzer{
			answerFn: func(_ context.Context, question, _ string, _ []transcripts.Turn, _ []analysis.HistoryTurn) string {
				if question != "What happened?" {
					t.Errorf("question = %q", question)
				}
				return "A greeting."
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, &mockSpeech{}, a)

		answer, err := o.Ask(context.Background(), "t1", "m1", "What happened?", nil)
		if err != nil {
			t.Fatalf("Ask error: %v", err)
		}
		if answer != "A greeting." {
			t.Errorf("answer = %q", answer)
		}
	})

	t.Run("incomplete transcript rejected", func(t *testing.T) {
		tr := &mockTranscripts{
			findByMessageFn: func(_ context.Context, _, _ string) (*transcripts.Transcript, error) {
				return &transcripts.Transcript{Status: transcripts.StatusProcessing}, nil
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, &mockSpeech{}, &mockAnalyzer{})

		if _, err := o.Ask(context.Background(), "t1", "m1", "q", nil); !errors.Is(err, transcripts.ErrNotReady) {
			t.Errorf("error = %v, want ErrNotReady", err)
		}
	})
}

func TestPreparePlaceholder(t *testing.T) {
	t.Run("resolves tenant by location and writes placeholder", func(t *testing.T) {
		var placeholder transcripts.PlaceholderCommand
		tr := &mockTranscripts{
			savePlaceholderFn: func(_ context.Context, cmd transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
				placeholder = cmd
				return &transcripts.Transcript{MessageID: cmd.MessageID}, nil
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, &mockSpeech{}, &mockAnalyzer{})

		if err := o.PreparePlaceholder(context.Background(), "loc1", "m42", "c1"); err != nil {
			t.Fatalf("PreparePlaceholder error: %v", err)
		}
		if placeholder.MessageID != "m42" || placeholder.TenantID != "t1" || placeholder.ContactID != "c1" {
			t.Errorf("placeholder = %+v", placeholder)
		}
	})

	t.Run("already completed passes through", func(t *testing.T) {
		tr := &mockTranscripts{
			savePlaceholderFn: func(_ context.Context, _ transcripts.PlaceholderCommand) (*transcripts.Transcript, error) {
				return nil, transcripts.ErrAlreadyCompleted
			},
		}

		o := newOrchestrator(testSettings(), tr, &mockCRM{}, &mockSpeech{}, &mockAnalyzer{})

		if err := o.PreparePlaceholder(context.Background(), "loc1", "m1", "c1"); !errors.Is(err, transcripts.ErrAlreadyCompleted) {
			t.Errorf("error = %v, want ErrAlreadyCompleted", err)
		}
	})
}

func TestResolveMessageID(t *testing.T) {
	t.Run("returns latest call id", func(t *testing.T) {
		c := &mockCRM{
			latestCallFn: func(_ context.Context, contactID string, _ crm.Credentials) (*crm.Message, error) {
				if contactID != "c1" {
					t.Errorf("contact = %q", contactID)
				}
				return &crm.Message{ID: "m-latest"}, nil
			},
		}

		o := newOrchestrator(testSettings(), &mockTranscripts{}, c, &mockSpeech{}, &mockAnalyzer{})

		id, err := o.ResolveMessageID(context.Background(), "loc1", "c1")
		if err != nil {
			t.Fatalf("ResolveMessageID error: %v", err)
		}
		if id != "m-latest" {
			t.Errorf("id = %q, want m-latest", id)
		}
	})

	t.Run("no calls surfaces error", func(t *testing.T) {
		c := &mockCRM{
			latestCallFn: func(_ context.Context, _ string, _ crm.Credentials) (*crm.Message, error) {
				return nil, crm.ErrNotFound
			},
		}

		o := newOrchestrator(testSettings(), &mockTranscripts{}, c, &mockSpeech{}, &mockAnalyzer{})

		if _, err := o.ResolveMessageID(context.Background(), "loc1", "c1"); !errors.Is(err, crm.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}
