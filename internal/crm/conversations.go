package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// listConcurrency bounds the per-conversation fan-out in ListCalls.
const listConcurrency = 4

// Conversation is a CRM conversation summary.
type Conversation struct {
	ID              string `json:"id"`
	ContactID       string `json:"contactId"`
	LastMessageBody string `json:"lastMessageBody"`
	LastMessageDate string `json:"lastMessageDate"`
	LastMessageType string `json:"lastMessageType"`
}

// Call is a call-type message flattened for dashboard listings.
type Call struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	DateAdded      string `json:"dateAdded"`
	Direction      string `json:"direction"`
	Status         string `json:"status"`
	Duration       int    `json:"duration"`
	AudioURL       string `json:"audioUrl"`
	Body           string `json:"body"`
	AltID          string `json:"altId"`
}

// ListConversations returns a contact's conversations, most recent first
// as delivered by the API.
func (c *Client) ListConversations(ctx context.Context, contactID string, creds Credentials) ([]Conversation, error) {
	u := fmt.Sprintf(
		"%s/conversations/search?contactId=%s&limit=50",
		c.baseURL, url.QueryEscape(contactID),
	)

	body, err := c.get(ctx, u, creds)
	if err != nil {
		return nil, fmt.Errorf("list conversations for %s: %w", contactID, err)
	}

	var payload struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode conversations for %s: %w", contactID, err)
	}

	return payload.Conversations, nil
}

// ListMessages returns a conversation's call-type messages, newest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string, creds Credentials) ([]Message, error) {
	u := fmt.Sprintf("%s/conversations/%s/messages?limit=100", c.baseURL, conversationID)

	body, err := c.get(ctx, u, creds)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", conversationID, err)
	}

	messages, err := decodeMessageList(body)
	if err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", conversationID, err)
	}

	calls := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.IsCall() {
			calls = append(calls, m)
		}
	}

	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].DateAdded.After(calls[j].DateAdded)
	})

	return calls, nil
}

// ListCalls fans out over a contact's conversations and collects all
// call messages with their recording metadata, newest first.
func (c *Client) ListCalls(ctx context.Context, contactID string, creds Credentials) ([]Call, error) {
	conversations, err := c.ListConversations(ctx, contactID, creds)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		calls []Call
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)

	for _, conv := range conversations {
		g.Go(func() error {
			messages, err := c.ListMessages(gctx, conv.ID, creds)
			if err != nil {
				// a single bad conversation should not sink the listing
				c.logger.Warn("conversation skipped", "conversation", conv.ID, "error", err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for _, m := range messages {
				call := Call{
					ID:             m.ID,
					ConversationID: conv.ID,
					DateAdded:      m.DateAdded.Format("2006-01-02T15:04:05.000Z07:00"),
					Direction:      m.Direction,
					Status:         m.Status,
					AudioURL:       m.AudioURL(),
					Body:           m.Body,
					AltID:          m.AltID,
				}
				if m.Meta != nil && m.Meta.Call != nil {
					call.Duration = m.Meta.Call.Duration
				}
				calls = append(calls, call)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].DateAdded > calls[j].DateAdded
	})

	return calls, nil
}

// LatestCallMessage returns the most recent call-type message across a
// contact's conversations. Used as the webhook fallback when a delivery
// omits the message id.
func (c *Client) LatestCallMessage(ctx context.Context, contactID string, creds Credentials) (*Message, error) {
	conversations, err := c.ListConversations(ctx, contactID, creds)
	if err != nil {
		return nil, err
	}

	var latest *Message
	for _, conv := range conversations {
		messages, err := c.ListMessages(ctx, conv.ID, creds)
		if err != nil {
			c.logger.Warn("conversation skipped", "conversation", conv.ID, "error", err)
			continue
		}
		for i := range messages {
			if latest == nil || messages[i].DateAdded.After(latest.DateAdded) {
				latest = &messages[i]
			}
		}
	}

	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// decodeMessageList handles both the nested messages.messages shape and
// the flat messages array shape the API is known to deliver.
func decodeMessageList(data []byte) ([]Message, error) {
	var nested struct {
		Messages struct {
			Messages []Message `json:"messages"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && len(nested.Messages.Messages) > 0 {
		return nested.Messages.Messages, nil
	}

	var flat struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	return flat.Messages, nil
}
