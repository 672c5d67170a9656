package types

// Event is a typed notification with string attributes. The sale engine
// emits these for settlements, guard trips and administrative changes.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
