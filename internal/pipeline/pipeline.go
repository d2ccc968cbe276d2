// Package pipeline drives a call recording from "just finished" to
// "fully analyzed and stored": credential resolution, placeholder
// write, audio resolution, speech submission, completion handling,
// analysis, and the best-effort CRM note post-back.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parleyhq/parley/internal/analysis"
	"github.com/parleyhq/parley/internal/crm"
	"github.com/parleyhq/parley/internal/settings"
	"github.com/parleyhq/parley/internal/speech"
	"github.com/parleyhq/parley/internal/transcripts"
	"github.com/parleyhq/parley/pkg/storage"
)

// CRMGateway is the subset of the CRM client the pipeline needs.
type CRMGateway interface {
	FetchMessage(ctx context.Context, messageID string, creds crm.Credentials) (*crm.Message, error)
	DownloadRecording(ctx context.Context, messageID string, creds crm.Credentials) ([]byte, error)
	LatestCallMessage(ctx context.Context, contactID string, creds crm.Credentials) (*crm.Message, error)
	PostNote(ctx context.Context, contactID, noteBody string, creds crm.Credentials) error
}

// SpeechClient is the subset of the speech client the pipeline needs.
type SpeechClient interface {
	Upload(ctx context.Context, audio []byte) (string, error)
	Submit(ctx context.Context, audioURL string) (string, error)
	Fetch(ctx context.Context, jobID string) (*speech.Job, error)
}

// Analyzer is the subset of the analysis engine the pipeline needs.
type Analyzer interface {
	Analyze(ctx context.Context, fullText string, speakers []transcripts.Turn) analysis.Analysis
	Answer(ctx context.Context, question, fullText string, speakers []transcripts.Turn, history []analysis.HistoryTurn) string
}

// Orchestrator coordinates the transcription pipeline.
type Orchestrator struct {
	settings    settings.System
	transcripts transcripts.System
	crm         CRMGateway
	speech      SpeechClient
	analyzer    Analyzer
	archive     storage.System
	logger      *slog.Logger
}

// New creates an orchestrator over the given systems. The storage
// system is optional; when nil no recording archive copies are kept.
func New(
	settingsSys settings.System,
	transcriptsSys transcripts.System,
	crmGateway CRMGateway,
	speechClient SpeechClient,
	analyzer Analyzer,
	archive storage.System,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		settings:    settingsSys,
		transcripts: transcriptsSys,
		crm:         crmGateway,
		speech:      speechClient,
		analyzer:    analyzer,
		archive:     archive,
		logger:      logger.With("system", "pipeline"),
	}
}

// StartByTenant runs the transcription pipeline with credentials
// resolved by tenant id (authenticated manual flows).
func (o *Orchestrator) StartByTenant(ctx context.Context, tenantID, messageID, contactID string) error {
	cs, err := o.settings.Find(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("resolve tenant %s: %w", tenantID, err)
	}
	return o.run(ctx, cs, messageID, contactID)
}

// StartByLocation runs the transcription pipeline with credentials
// resolved by CRM location id (webhook-triggered flows).
func (o *Orchestrator) StartByLocation(ctx context.Context, locationID, messageID, contactID string) error {
	cs, err := o.settings.FindByLocation(ctx, locationID)
	if err != nil {
		return fmt.Errorf("resolve location %s: %w", locationID, err)
	}
	return o.run(ctx, cs, messageID, contactID)
}

// PreparePlaceholder resolves the tenant for a location and writes the
// processing placeholder synchronously, so in-flight work is visible
// before the background run starts.
func (o *Orchestrator) PreparePlaceholder(ctx context.Context, locationID, messageID, contactID string) error {
	cs, err := o.settings.FindByLocation(ctx, locationID)
	if err != nil {
		return fmt.Errorf("resolve location %s: %w", locationID, err)
	}

	_, err = o.transcripts.SavePlaceholder(ctx, transcripts.PlaceholderCommand{
		MessageID: messageID,
		ContactID: contactID,
		TenantID:  cs.TenantID,
	})
	if errors.Is(err, transcripts.ErrAlreadyCompleted) {
		return err
	}
	if err != nil {
		return fmt.Errorf("save placeholder for %s: %w", messageID, err)
	}
	return nil
}

// ResolveMessageID returns the latest call-type message for a contact.
// Webhook fallback for deliveries that omit the message id; racy when
// multiple calls finish concurrently for one contact, tolerated because
// every write is an idempotent upsert.
func (o *Orchestrator) ResolveMessageID(ctx context.Context, locationID, contactID string) (string, error) {
	cs, err := o.settings.FindByLocation(ctx, locationID)
	if err != nil {
		return "", fmt.Errorf("resolve location %s: %w", locationID, err)
	}

	msg, err := o.crm.LatestCallMessage(ctx, contactID, credentials(cs))
	if err != nil {
		return "", fmt.Errorf("resolve latest call for %s: %w", contactID, err)
	}
	return msg.ID, nil
}

// run executes steps 1-4: placeholder, audio resolution, submission,
// job id persistence. Failures mark the transcript failed with a
// diagnostic summary; completion arrives later through the callback.
func (o *Orchestrator) run(ctx context.Context, cs *settings.ClientSettings, messageID, contactID string) error {
	creds := credentials(cs)

	if _, err := o.transcripts.SavePlaceholder(ctx, transcripts.PlaceholderCommand{
		MessageID: messageID,
		ContactID: contactID,
		TenantID:  cs.TenantID,
	}); err != nil {
		if errors.Is(err, transcripts.ErrAlreadyCompleted) {
			o.logger.Info("message already transcribed", "message", messageID)
			return nil
		}
		return fmt.Errorf("save placeholder for %s: %w", messageID, err)
	}

	audioURL, err := o.resolveAudio(ctx, messageID, creds)
	if err != nil {
		o.fail(ctx, messageID, err.Error())
		return err
	}
	if audioURL == "" {
		o.fail(ctx, messageID, crm.NoRecordingGuidance)
		return fmt.Errorf("no recording available for %s", messageID)
	}

	jobID, err := o.speech.Submit(ctx, audioURL)
	if err != nil {
		o.fail(ctx, messageID, fmt.Sprintf("Transcription submission failed: %v", err))
		return fmt.Errorf("submit %s: %w", messageID, err)
	}

	if _, err := o.transcripts.SetJob(ctx, messageID, jobID, audioURL); err != nil {
		return fmt.Errorf("record job for %s: %w", messageID, err)
	}

	o.logger.Info("pipeline submitted", "message", messageID, "job", jobID)
	return nil
}

// resolveAudio tries the attachment-URL path first, then falls back to
// the binary download + provider upload path. An empty result with nil
// error means no recording exists.
func (o *Orchestrator) resolveAudio(ctx context.Context, messageID string, creds crm.Credentials) (string, error) {
	msg, err := o.crm.FetchMessage(ctx, messageID, creds)
	if err != nil {
		return "", fmt.Errorf("fetch message: %w", err)
	}

	if url := msg.AudioURL(); url != "" {
		return url, nil
	}

	audio, err := o.crm.DownloadRecording(ctx, messageID, creds)
	if err != nil {
		o.logger.Warn("recording download failed", "message", messageID, "error", err)
		return "", nil
	}

	o.archiveRecording(ctx, messageID, audio)

	url, err := o.speech.Upload(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("upload recording: %w", err)
	}
	return url, nil
}

// archiveRecording keeps a blob copy of downloaded audio for playback
// and debugging. Best-effort.
func (o *Orchestrator) archiveRecording(ctx context.Context, messageID string, audio []byte) {
	if o.archive == nil {
		return
	}

	key := "recordings/" + messageID
	if err := o.archive.Upload(ctx, key, bytes.NewReader(audio), "audio/mpeg"); err != nil {
		o.logger.Warn("recording archive failed", "message", messageID, "error", err)
		return
	}
	o.logger.Info("recording archived", "key", key)
}

// HandleCompletion processes a provider completion signal for a job.
// The signal is a trigger only; content is re-fetched by job id.
func (o *Orchestrator) HandleCompletion(ctx context.Context, jobID string) error {
	existing, err := o.transcripts.FindByJob(ctx, jobID)
	if errors.Is(err, transcripts.ErrNotFound) {
		// benign: a signal for a job this system never recorded
		o.logger.Warn("completion signal for unknown job", "job", jobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find job %s: %w", jobID, err)
	}

	job, err := o.speech.Fetch(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job %s: %w", jobID, err)
	}

	result := speech.Normalize(job)

	if result.ErrorMessage != "" {
		summary := "Transcription failed: " + result.ErrorMessage
		if err := o.transcripts.MarkFailedByJob(ctx, jobID, summary); err != nil {
			return fmt.Errorf("mark job %s failed: %w", jobID, err)
		}
		return nil
	}

	if job.Status != speech.StatusCompleted {
		// out-of-order or duplicate delivery; acknowledge without mutation
		o.logger.Info("job not yet completed", "job", jobID, "status", job.Status)
		return nil
	}

	enrichment := o.analyzer.Analyze(ctx, result.FullText, result.Speakers)

	t, err := o.transcripts.Complete(ctx, jobID, transcripts.CompleteCommand{
		FullText:        result.FullText,
		Speakers:        result.Speakers,
		DurationSeconds: result.DurationSeconds,
		Summary:         enrichment.Summary,
		Sentiment:       transcripts.Sentiment(enrichment.Sentiment),
		SentimentScore:  enrichment.SentimentScore,
		ActionItems:     enrichment.ActionItems,
	})
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}

	o.postNote(ctx, existing.TenantID, t)
	return nil
}

// postNote pushes the call summary back to the CRM contact. Failures
// are logged only and never change transcript state.
func (o *Orchestrator) postNote(ctx context.Context, tenantID string, t *transcripts.Transcript) {
	if t.ContactID == "" {
		return
	}

	cs, err := o.settings.Find(ctx, tenantID)
	if err != nil {
		o.logger.Warn("note skipped, no settings", "tenant", tenantID, "error", err)
		return
	}

	var note strings.Builder
	note.WriteString("Call Summary (")
	note.WriteString(string(t.Sentiment))
	note.WriteString(")\n\n")
	note.WriteString(t.Summary)
	if len(t.ActionItems) > 0 {
		note.WriteString("\n\nAction Items:\n")
		for _, item := range t.ActionItems {
			note.WriteString("- ")
			note.WriteString(item)
			note.WriteString("\n")
		}
	}

	if err := o.crm.PostNote(ctx, t.ContactID, note.String(), credentials(cs)); err != nil {
		o.logger.Warn("note post-back failed", "contact", t.ContactID, "error", err)
	}
}

// Reanalyze re-runs only the analysis step against stored content.
// The store enforces the completed-with-content precondition.
func (o *Orchestrator) Reanalyze(ctx context.Context, tenantID, messageID string) (*transcripts.Transcript, error) {
	t, err := o.transcripts.FindByMessage(ctx, tenantID, messageID)
	if err != nil {
		return nil, err
	}

	if t.Status != transcripts.StatusCompleted || t.FullText == "" || len(t.Speakers) == 0 {
		return nil, transcripts.ErrNotReady
	}

	enrichment := o.analyzer.Analyze(ctx, t.FullText, t.Speakers)

	return o.transcripts.ApplyAnalysis(ctx, tenantID, messageID, transcripts.AnalysisUpdate{
		Summary:        enrichment.Summary,
		Sentiment:      transcripts.Sentiment(enrichment.Sentiment),
		SentimentScore: enrichment.SentimentScore,
		ActionItems:    enrichment.ActionItems,
	})
}

// Ask answers a question about a completed transcript.
func (o *Orchestrator) Ask(ctx context.Context, tenantID, messageID, question string, history []analysis.HistoryTurn) (string, error) {
	t, err := o.transcripts.FindByMessage(ctx, tenantID, messageID)
	if err != nil {
		return "", err
	}

	if t.Status != transcripts.StatusCompleted {
		return "", transcripts.ErrNotReady
	}

	return o.analyzer.Answer(ctx, question, t.FullText, t.Speakers, history), nil
}

func (o *Orchestrator) fail(ctx context.Context, messageID, summary string) {
	if err := o.transcripts.MarkFailedByMessage(ctx, messageID, summary); err != nil {
		o.logger.Error("failed to record failure", "message", messageID, "error", err)
	}
}

func credentials(cs *settings.ClientSettings) crm.Credentials {
	return crm.Credentials{
		AccessToken: cs.AccessToken,
		LocationID:  cs.LocationID,
	}
}
