package webhooks

// CallEvent is a normalized call-finished webhook payload.
type CallEvent struct {
	ContactID  string
	MessageID  string
	LocationID string
}

// ExtractCallEvent pulls the contact, message, and location ids out of
// a webhook payload. Field names vary by delivery configuration:
// camelCase, snake_case, or nested under an object.
func ExtractCallEvent(payload map[string]any) CallEvent {
	return CallEvent{
		ContactID:  extractID(payload, "contactId", "contact_id", "contact"),
		MessageID:  extractID(payload, "messageId", "message_id", "message"),
		LocationID: extractID(payload, "locationId", "location_id", "location"),
	}
}

// extractID tries a camelCase key, a snake_case key, and finally an
// "id" field nested under the given object key.
func extractID(payload map[string]any, camel, snake, nested string) string {
	if v, ok := payload[camel].(string); ok && v != "" {
		return v
	}
	if v, ok := payload[snake].(string); ok && v != "" {
		return v
	}
	if obj, ok := payload[nested].(map[string]any); ok {
		if v, ok := obj["id"].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
