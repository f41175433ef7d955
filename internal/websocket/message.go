package websocket

import "encoding/json"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// Actions pushed by the server.
const (
	ActionAgendaUpdated = "agenda.updated"
	ActionSystemStats   = "system.stats"
	ActionError         = "error"
)

// Encode marshals a message for the wire, returning nil on failure so callers
// can skip the send.
func Encode(action string, payload interface{}) []byte {
	b, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		return nil
	}
	return b
}

// NewErrorMessage builds an encoded error message for a client.
func NewErrorMessage(detail string) []byte {
	return Encode(ActionError, map[string]string{"message": detail})
}
