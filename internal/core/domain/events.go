package domain

// EventType defines the type of real-time event.
type EventType string

const (
	EventTallyUpdated EventType = "TALLY_UPDATED"
	EventPong         EventType = "PONG"
)

// Event is the payload sent over WebSocket.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// TallyUpdatedPayload describes a committed submission.
type TallyUpdatedPayload struct {
	Action      string            `json:"action"`
	Position    int               `json:"position"`
	Date        string            `json:"date"`
	Row         map[string]string `json:"row"`
	SubmittedBy string            `json:"submittedBy,omitempty"`
}
