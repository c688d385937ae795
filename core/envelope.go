package core

// APIEnvelope mirrors the response header shared by every stat-search
// endpoint. Status is the server-reported body status (200/400/500/503
// or 0 when absent).
type APIEnvelope struct {
	Status    int    `json:"status"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
	Date      string `json:"date"`
}

// EnvelopeFromPayload builds an APIEnvelope from a decoded response
// body. An absent body STATUS surfaces as 0.
func EnvelopeFromPayload(payload map[string]interface{}) APIEnvelope {
	status, _ := ExtractStatus(payload)
	return APIEnvelope{
		Status:    status,
		MessageID: ExtractMessageID(payload),
		Message:   ExtractMessage(payload),
		Date:      stringField(payload, "DATE"),
	}
}
