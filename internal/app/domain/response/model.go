package response

import "time"

// Response is an expert's answer to a help request. HelpfulCount only ever
// grows; IsHelpful flips to true the first time the count leaves zero.
type Response struct {
	ID           string
	RequestID    string
	ExpertID     string
	Content      string
	HelpfulCount int
	IsHelpful    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Review is a rating left by the request owner on a response. Rating is a
// 1-5 integer. Nothing in the data model forbids several reviews for the
// same response.
type Review struct {
	ID         string
	ResponseID string
	RequestID  string
	UserID     string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}
