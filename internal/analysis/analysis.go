// Package analysis produces LLM enrichment for completed transcripts:
// a whole-call summary, sentiment classification with score, action
// items, and transcript-grounded Q&A. The engine never fails hard; an
// unusable model response degrades to a minimal valid analysis so the
// pipeline always reaches a terminal state.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/transcripts"
	"github.com/parleyhq/parley/pkg/formatting"
)

// Analysis is the structured enrichment produced for one call.
type Analysis struct {
	Summary        string   `json:"summary"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore int      `json:"sentiment_score"`
	ActionItems    []string `json:"action_items"`
	KeyInsights    []string `json:"key_insights"`
	Topics         []string `json:"topics"`
}

// apologyAnswer is returned when a Q&A completion fails outright.
const apologyAnswer = "I'm sorry, I encountered an error while analyzing the transcript. Please try again."

// historyLimit caps how many prior Q&A turns are carried into a prompt.
const historyLimit = 5

// HistoryTurn is one prior exchange in a Q&A session.
type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Engine runs chat completions against the configured model.
type Engine struct {
	client oai.Client
	model  string
	logger *slog.Logger
}

// New creates an analysis engine from configuration.
func New(cfg *config.AnalysisConfig, logger *slog.Logger) *Engine {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if d := cfg.TimeoutDuration(); d > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: d}))
	}

	return &Engine{
		client: oai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger.With("system", "analysis"),
	}
}

// Analyze enriches a transcript. Model output is parsed leniently
// (markdown fences stripped), validated against the closed sentiment
// enum, and the score clamped to [0,100]. Any total failure yields a
// degraded analysis instead of an error.
func (e *Engine) Analyze(ctx context.Context, fullText string, speakers []transcripts.Turn) Analysis {
	prompt := analyzePrompt(speakers)

	content, err := e.complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("analysis completion failed", "error", err)
		return degraded(fullText)
	}

	parsed, err := formatting.Parse[Analysis](content)
	if err != nil {
		e.logger.Warn("analysis response unparsable", "error", err)
		return degraded(fullText)
	}

	return normalize(parsed)
}

// Answer responds to a question about the transcript, grounded only in
// its content. The last few history turns carry over for continuity.
// Failures return a fixed apology rather than an error.
func (e *Engine) Answer(
	ctx context.Context,
	question, fullText string,
	speakers []transcripts.Turn,
	history []HistoryTurn,
) string {
	prompt := answerPrompt(question, speakers, history)

	content, err := e.complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("answer completion failed", "error", err)
		return apologyAnswer
	}

	return strings.TrimSpace(content)
}

func (e *Engine) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

// normalize enforces the analysis contract on a parsed model response.
func normalize(a Analysis) Analysis {
	switch a.Sentiment {
	case string(transcripts.SentimentPositive),
		string(transcripts.SentimentNeutral),
		string(transcripts.SentimentNegative):
	default:
		a.Sentiment = string(transcripts.SentimentNeutral)
	}

	if a.SentimentScore < 0 {
		a.SentimentScore = 0
	}
	if a.SentimentScore > 100 {
		a.SentimentScore = 100
	}

	if a.Summary == "" {
		a.Summary = "No summary available"
	}
	if a.ActionItems == nil {
		a.ActionItems = []string{}
	}
	if a.KeyInsights == nil {
		a.KeyInsights = []string{}
	}
	if a.Topics == nil {
		a.Topics = []string{}
	}

	return a
}

// degraded is the fallback analysis when the model cannot be used:
// a truncated prefix of the raw text, neutral sentiment, empty arrays.
func degraded(fullText string) Analysis {
	summary := fullText
	if len(summary) > 200 {
		cut := 200
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "..."
	}

	return Analysis{
		Summary:        summary,
		Sentiment:      string(transcripts.SentimentNeutral),
		SentimentScore: 50,
		ActionItems:    []string{},
		KeyInsights:    []string{},
		Topics:         []string{},
	}
}
