package user

import "time"

// User represents a registered member of the platform. Phone is the unique
// identity; experts additionally carry a daily response limit and a set of
// expertise areas.
type User struct {
	ID                string
	Phone             string
	Name              string
	Bio               string
	Location          string
	PasswordHash      string
	IsExpert          bool
	DailyRequestLimit int
	ExpertiseAreas    []string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
