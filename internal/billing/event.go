package billing

import "encoding/json"

// Purchase event types that unlock premium.
const (
	EventOrderCreated      = "order.created"
	EventOrderCompleted    = "order.completed"
	EventCheckoutCompleted = "checkout.completed"
)

// Event is the normalized shape of a loosely specified webhook payload.
type Event struct {
	Type        string
	ReferenceID string
}

// IsPurchase reports whether the event type unlocks premium.
func (e Event) IsPurchase() bool {
	switch e.Type {
	case EventOrderCreated, EventOrderCompleted, EventCheckoutCompleted:
		return true
	}
	return false
}

type rawEvent struct {
	Type     string          `json:"type"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data"`
	Payload  json.RawMessage `json:"payload"`
	Metadata json.RawMessage `json:"metadata"`
}

type rawData struct {
	Metadata rawMetadata `json:"metadata"`
}

type rawMetadata struct {
	ReferenceID string `json:"reference_id"`
	ReferenceId string `json:"referenceId"`
}

// DecodeEvent normalizes a webhook body into an Event. The provider's
// schema is loosely specified, so known field names are tried in priority
// order: type from "type" then "event"; data from "data" then "payload"
// then the root object; reference id from metadata "reference_id" then
// "referenceId". An unrecognized body decodes to a zero-typed Event
// rather than an error; only malformed JSON fails.
func DecodeEvent(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, err
	}

	event := Event{Type: raw.Type}
	if event.Type == "" {
		event.Type = raw.Event
	}

	data := raw.Data
	if len(data) == 0 {
		data = raw.Payload
	}

	var meta rawMetadata
	if len(data) > 0 {
		var parsed rawData
		if err := json.Unmarshal(data, &parsed); err == nil {
			meta = parsed.Metadata
		}
	} else if len(raw.Metadata) > 0 {
		_ = json.Unmarshal(raw.Metadata, &meta)
	}

	event.ReferenceID = meta.ReferenceID
	if event.ReferenceID == "" {
		event.ReferenceID = meta.ReferenceId
	}
	return event, nil
}
