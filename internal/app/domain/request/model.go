package request

import "time"

// Status enumerates the lifecycle states of a help request.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further responses are expected.
func (s Status) Terminal() bool {
	return s == StatusClosed
}

// Urgency enumerates how pressing a help request is.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
)

// Valid reports whether u is one of the known urgencies.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium:
		return true
	}
	return false
}

// Request is a call for help posted by a user. Resolved is stored alongside
// Status and must equal (Status == StatusResolved); a non-nil BestResponseID
// implies the request is resolved.
type Request struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	Urgency        Urgency
	Status         Status
	BestResponseID *string
	Resolved       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Summary is a request joined with its owner and response count. Assembling
// it is a backend responsibility so each backend can pick its own join
// strategy.
type Summary struct {
	Request
	OwnerName     string
	OwnerPhone    string
	ResponseCount int
}
