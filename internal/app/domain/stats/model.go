package stats

import "time"

// ExpertStats is a denormalized per-expert view derived from responses and
// reviews. It is a cache, never a source of truth: every field must be
// re-derivable from stored rows. LastResetDate drives the lazy daily reset
// of TodayResponses.
type ExpertStats struct {
	ID               string
	ExpertID         string
	TotalResponses   int
	TotalReviews     int
	AverageRating    float64
	HelpfulResponses int
	TodayResponses   int
	LastResetDate    time.Time
	UpdatedAt        time.Time
}

// TopHelper is one entry of the rolling-window community ranking.
type TopHelper struct {
	UserID         string
	Name           string
	TotalResponses int
	AverageRating  float64
	BestAnswers    int
	Score          float64
}

// Dashboard aggregates platform-wide totals.
type Dashboard struct {
	TotalUsers       int
	TotalExperts     int
	TotalRequests    int
	OpenRequests     int
	ResolvedRequests int
	TotalResponses   int
}
