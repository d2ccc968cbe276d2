package analysis

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/transcripts"
)

func formatTranscript(speakers []transcripts.Turn) string {
	lines := make([]string, len(speakers))
	for i, turn := range speakers {
		lines[i] = fmt.Sprintf("%s: %s", turn.Speaker, turn.Text)
	}
	return strings.Join(lines, "\n")
}

func analyzePrompt(speakers []transcripts.Turn) string {
	return fmt.Sprintf(`You are an expert sales call analyst. Analyze the following phone call transcript and provide a comprehensive analysis.

TRANSCRIPT:
%s

Provide your analysis in the following JSON format:
{
  "summary": "A concise 2-3 sentence executive summary of the entire call, highlighting the main purpose, key discussion points, and outcome",
  "sentiment": "POSITIVE, NEUTRAL, or NEGATIVE - the overall sentiment of the call",
  "sentiment_score": "A number from 0-100 where 0 is very negative, 50 is neutral, and 100 is very positive",
  "action_items": ["Array of specific, actionable next steps mentioned or implied in the call"],
  "key_insights": ["Array of important insights, objections, concerns, or opportunities mentioned"],
  "topics": ["Array of main topics discussed in the call"]
}

Important:
- The summary should cover the ENTIRE conversation, not just the beginning
- Be specific and actionable in action items
- Identify both explicit and implicit action items
- Consider the tone, word choice, and context for sentiment analysis
- Return ONLY valid JSON, no additional text`, formatTranscript(speakers))
}

func answerPrompt(question string, speakers []transcripts.Turn, history []HistoryTurn) string {
	var historyContext string
	if len(history) > 0 {
		if len(history) > historyLimit {
			history = history[len(history)-historyLimit:]
		}

		lines := make([]string, len(history))
		for i, turn := range history {
			role := "AI"
			if turn.Role == "user" {
				role = "User"
			}
			lines[i] = fmt.Sprintf("%s: %s", role, turn.Text)
		}
		historyContext = "\n\nPrevious conversation:\n" + strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`You are an AI assistant helping analyze a sales call transcript. Answer the user's question based ONLY on the information in the transcript.

TRANSCRIPT:
%s%s

USER QUESTION: %s

Provide a helpful, specific answer based on the transcript. If the information isn't in the transcript, say so. Be concise but thorough.`,
		formatTranscript(speakers), historyContext, question)
}
