package notification

import "time"

// Known notification types. The decision of when to emit one belongs to the
// calling workflow, not to storage.
const (
	TypeNewResponse  = "new_response"
	TypeNewMessage   = "new_message"
	TypeNewRating    = "new_rating"
	TypeBestResponse = "best_response"
)

// Notification is an event fanned out to a user by a write operation
// elsewhere in the system. EntityType/EntityID form a polymorphic reference
// to the subject; ActionUserID is the actor that triggered it.
type Notification struct {
	ID           string
	UserID       string
	Type         string
	Title        string
	Message      string
	EntityType   string
	EntityID     string
	ActionUserID string
	IsRead       bool
	CreatedAt    time.Time
}
