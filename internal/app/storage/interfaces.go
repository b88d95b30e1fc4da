package storage

import (
	"context"
	"time"

	"github.com/helphub/platform/internal/app/domain/message"
	"github.com/helphub/platform/internal/app/domain/notification"
	"github.com/helphub/platform/internal/app/domain/otp"
	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/response"
	"github.com/helphub/platform/internal/app/domain/stats"
	"github.com/helphub/platform/internal/app/domain/user"
)

// Every write returns the fully-populated entity (generated id, timestamps)
// so callers never need a follow-up read. Reads that join across entities
// are a backend responsibility, not a caller-side assembly step.

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByPhone(ctx context.Context, phone string) (user.User, error)
	// ListExperts returns active experts, most recently registered first.
	// limit <= 0 means no limit.
	ListExperts(ctx context.Context, limit int) ([]user.User, error)
	ListExpertsByExpertise(ctx context.Context, tag string) ([]user.User, error)
}

// RequestStore persists help requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, r request.Request) (request.Request, error)
	GetRequest(ctx context.Context, id string) (request.Request, error)
	// GetRequestSummary joins the request with its owner and response count.
	GetRequestSummary(ctx context.Context, id string) (request.Summary, error)
	// ListRequests returns requests most recent first, optionally filtered
	// by status (empty status means all), with page starting at 1. The
	// second return value is the total matching count.
	ListRequests(ctx context.Context, status request.Status, page, pageSize int) ([]request.Summary, int, error)
	ListRequestsByUser(ctx context.Context, userID string, status request.Status, page, pageSize int) ([]request.Request, int, error)
	// UpdateRequestFields patches title and/or description; nil leaves a
	// field untouched.
	UpdateRequestFields(ctx context.Context, id string, title, description *string) (request.Request, error)
	// UpdateRequestStatus sets the status and keeps the stored Resolved
	// flag and BestResponseID consistent with it.
	UpdateRequestStatus(ctx context.Context, id string, status request.Status) (request.Request, error)
	// MarkBestResponse designates the single best response for a request,
	// resolving it. A later call with a different response supersedes the
	// previous designation.
	MarkBestResponse(ctx context.Context, requestID, responseID string) (request.Request, error)
}

// ResponseStore persists expert responses.
type ResponseStore interface {
	CreateResponse(ctx context.Context, r response.Response) (response.Response, error)
	GetResponse(ctx context.Context, id string) (response.Response, error)
	// ListResponsesForRequest returns responses oldest first.
	ListResponsesForRequest(ctx context.Context, requestID string) ([]response.Response, error)
	// IncrementHelpful bumps the monotonic helpful counter.
	IncrementHelpful(ctx context.Context, id string) (response.Response, error)
	// CountResponsesSince counts an expert's responses created at or after
	// the given instant. Quota checks use it with the start of the current
	// UTC day so they never trust a cached counter.
	CountResponsesSince(ctx context.Context, expertID string, since time.Time) (int, error)
}

// ReviewStore persists response reviews. Several reviews per response are
// structurally permitted.
type ReviewStore interface {
	CreateReview(ctx context.Context, r response.Review) (response.Review, error)
	ListReviewsForResponse(ctx context.Context, responseID string) ([]response.Review, error)
	// ListReviewsForExpert returns reviews attached to any response
	// authored by the expert, most recent first.
	ListReviewsForExpert(ctx context.Context, expertID string) ([]response.Review, error)
}

// StatsStore persists the denormalized per-expert stats view.
type StatsStore interface {
	GetExpertStats(ctx context.Context, expertID string) (stats.ExpertStats, error)
	UpsertExpertStats(ctx context.Context, s stats.ExpertStats) (stats.ExpertStats, error)
	// RecomputeExpertStats derives the stats row from response and review
	// rows and upserts it in one step. Recomputation is all-or-nothing: a
	// failure leaves the previous row untouched.
	RecomputeExpertStats(ctx context.Context, expertID string) (stats.ExpertStats, error)
	// RankingAggregates returns, for every user with at least one response
	// created at or after since, the raw window aggregates used by the
	// community ranking. No score is attached; scoring and ordering belong
	// to the reputation engine.
	RankingAggregates(ctx context.Context, since time.Time) ([]stats.TopHelper, error)
	DashboardStats(ctx context.Context) (stats.Dashboard, error)
}

// OtpStore is the append-only ledger of one-time codes.
type OtpStore interface {
	CreateOtp(ctx context.Context, v otp.Verification) (otp.Verification, error)
	// VerifyOtp reports whether an unverified, unexpired row matches phone
	// and code exactly, marking that row verified on success. Among several
	// matching rows the most recently created wins. A previously consumed
	// code never matches again.
	VerifyOtp(ctx context.Context, phone, code string) (bool, error)
	// DeleteExpiredOtps removes unverified rows that expired before the
	// given instant and returns how many were removed.
	DeleteExpiredOtps(ctx context.Context, before time.Time) (int, error)
}

// MessageStore persists private messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, m message.PrivateMessage) (message.PrivateMessage, error)
	// ListConversation returns the thread between two users on a request,
	// oldest first.
	ListConversation(ctx context.Context, requestID, userA, userB string) ([]message.PrivateMessage, error)
	// ListConversationsForUser groups messages by (request, counterpart)
	// and summarizes each group for the given user, most recent first.
	ListConversationsForUser(ctx context.Context, userID string) ([]message.ConversationSummary, error)
	// MarkMessageRead marks a message read only when userID is its
	// receiver; a sender calling it is a no-op.
	MarkMessageRead(ctx context.Context, messageID, userID string) error
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	// ListNotifications returns a user's notifications most recent first.
	// limit <= 0 means no limit.
	ListNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error)
	UnreadNotificationCount(ctx context.Context, userID string) (int, error)
	// MarkNotificationRead marks one notification read; userID must be the
	// recipient.
	MarkNotificationRead(ctx context.Context, id, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// Store is the full storage contract a backend must satisfy.
type Store interface {
	UserStore
	RequestStore
	ResponseStore
	ReviewStore
	StatsStore
	OtpStore
	MessageStore
	NotificationStore
}
