package crm

import (
	"encoding/json"
	"time"
)

// CallMessageType is the CRM's message type marker for phone calls.
const CallMessageType = "TYPE_CALL"

// Message is a normalized CRM conversation message.
type Message struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	MessageType string       `json:"messageType"`
	Direction   string       `json:"direction"`
	Status      string       `json:"status"`
	Body        string       `json:"body"`
	AltID       string       `json:"altId"`
	DateAdded   time.Time    `json:"dateAdded"`
	Attachments []Attachment `json:"attachments"`
	Meta        *Meta        `json:"meta"`
}

// Attachment is a message attachment. The CRM delivers these either as
// objects carrying a url field or as bare URL strings; both decode into
// URL.
type Attachment struct {
	URL string `json:"url"`
}

// UnmarshalJSON accepts both the object and bare-string attachment shapes.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.URL = s
		return nil
	}

	type attachment Attachment
	var obj attachment
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = Attachment(obj)
	return nil
}

// Meta holds recording metadata nested under a message.
type Meta struct {
	RecordingURL string    `json:"recording_url"`
	Call         *CallMeta `json:"call"`
}

// CallMeta holds call-specific metadata.
type CallMeta struct {
	RecordingURL string `json:"recording_url"`
	Duration     int    `json:"duration"`
}

// IsCall reports whether the message is a phone call. Some API versions
// mark the type field, others messageType.
func (m *Message) IsCall() bool {
	return m.MessageType == CallMessageType || m.Type == CallMessageType
}

// AudioURL resolves a playable recording URL. Resolution order: first
// attachment URL (object or bare string), then meta.recording_url, then
// meta.call.recording_url. An empty result is expected when no
// recording exists yet; see NoRecordingGuidance.
func (m *Message) AudioURL() string {
	if len(m.Attachments) > 0 && m.Attachments[0].URL != "" {
		return m.Attachments[0].URL
	}
	if m.Meta != nil {
		if m.Meta.RecordingURL != "" {
			return m.Meta.RecordingURL
		}
		if m.Meta.Call != nil && m.Meta.Call.RecordingURL != "" {
			return m.Meta.Call.RecordingURL
		}
	}
	return ""
}

func decodeMessage(data []byte) (*Message, error) {
	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Message) > 0 {
		data = envelope.Message
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
