// Package requests implements the help-request lifecycle: posting
// requests, responding under the daily quota, reviews, helpful votes and
// best-response resolution, with notification fan-out to the affected
// users. Nothing here prevents a user from responding to their own
// request or reviewing their own response; that guard, if wanted,
// belongs to an outer surface.
package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/helphub/platform/internal/app/domain/notification"
	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/response"
	"github.com/helphub/platform/internal/app/metrics"
	"github.com/helphub/platform/internal/app/services/reputation"
	"github.com/helphub/platform/internal/app/storage"
	"github.com/helphub/platform/pkg/logger"
)

// ErrQuotaExhausted is returned when an expert has no response slots left
// today.
var ErrQuotaExhausted = errors.New("daily response quota exhausted")

// Service manages the request/response/review lifecycle.
type Service struct {
	users         storage.UserStore
	requests      storage.RequestStore
	responses     storage.ResponseStore
	reviews       storage.ReviewStore
	notifications storage.NotificationStore
	reputation    *reputation.Service
	log           *logger.Logger
}

// New constructs the service.
func New(store storage.Store, rep *reputation.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("requests")
	}
	return &Service{
		users:         store,
		requests:      store,
		responses:     store,
		reviews:       store,
		notifications: store,
		reputation:    rep,
		log:           log,
	}
}

// Create posts a new help request for a user.
func (s *Service) Create(ctx context.Context, userID, title, description string, urgency request.Urgency) (request.Request, error) {
	if title == "" {
		return request.Request{}, fmt.Errorf("title is required")
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return request.Request{}, fmt.Errorf("owner validation failed: %w", err)
	}

	created, err := s.requests.CreateRequest(ctx, request.Request{
		UserID:      userID,
		Title:       title,
		Description: description,
		Urgency:     urgency,
	})
	metrics.RecordStorageOp("create_request", err)
	if err != nil {
		return request.Request{}, err
	}
	s.log.Infof("request %s created by user %s", created.ID, userID)
	return created, nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id string) (request.Request, error) {
	return s.requests.GetRequest(ctx, id)
}

// GetSummary returns a request joined with its owner and response count.
func (s *Service) GetSummary(ctx context.Context, id string) (request.Summary, error) {
	return s.requests.GetRequestSummary(ctx, id)
}

// List returns requests most recent first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status request.Status, page, pageSize int) ([]request.Summary, int, error) {
	return s.requests.ListRequests(ctx, status, page, pageSize)
}

// ListByUser returns a user's requests most recent first.
func (s *Service) ListByUser(ctx context.Context, userID string, status request.Status, page, pageSize int) ([]request.Request, int, error) {
	return s.requests.ListRequestsByUser(ctx, userID, status, page, pageSize)
}

// UpdateFields patches the title and/or description of a request.
func (s *Service) UpdateFields(ctx context.Context, id string, title, description *string) (request.Request, error) {
	return s.requests.UpdateRequestFields(ctx, id, title, description)
}

// UpdateStatus moves a request to another status. The storage layer keeps
// the resolved flag and best-response pointer consistent.
func (s *Service) UpdateStatus(ctx context.Context, id string, status request.Status) (request.Request, error) {
	updated, err := s.requests.UpdateRequestStatus(ctx, id, status)
	metrics.RecordStorageOp("update_request_status", err)
	return updated, err
}

// Respond records an expert's response to a request, charging one slot of
// the expert's daily quota and notifying the request owner.
func (s *Service) Respond(ctx context.Context, requestID, expertID, content string) (response.Response, error) {
	if content == "" {
		return response.Response{}, fmt.Errorf("content is required")
	}

	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return response.Response{}, fmt.Errorf("load request: %w", err)
	}
	if req.Status.Terminal() {
		return response.Response{}, fmt.Errorf("request %s is closed: %w", requestID, storage.ErrInvalidState)
	}

	slots, err := s.reputation.AvailableSlots(ctx, expertID)
	if err != nil {
		return response.Response{}, err
	}
	if slots == 0 {
		return response.Response{}, fmt.Errorf("expert %s: %w", expertID, ErrQuotaExhausted)
	}

	created, err := s.responses.CreateResponse(ctx, response.Response{
		RequestID: requestID,
		ExpertID:  expertID,
		Content:   content,
	})
	metrics.RecordStorageOp("create_response", err)
	if err != nil {
		return response.Response{}, err
	}

	if _, err := s.reputation.Recompute(ctx, expertID); err != nil {
		s.log.WithError(err).Warnf("stats recompute for expert %s failed", expertID)
	}
	s.notify(ctx, notification.Notification{
		UserID:       req.UserID,
		Type:         notification.TypeNewResponse,
		Title:        "New response to your request",
		Message:      req.Title,
		EntityType:   "response",
		EntityID:     created.ID,
		ActionUserID: expertID,
	})

	s.log.Infof("response %s created on request %s", created.ID, requestID)
	return created, nil
}

// ListResponses returns a request's responses oldest first.
func (s *Service) ListResponses(ctx context.Context, requestID string) ([]response.Response, error) {
	return s.responses.ListResponsesForRequest(ctx, requestID)
}

// MarkHelpful bumps a response's monotonic helpful counter. It works in
// any request status.
func (s *Service) MarkHelpful(ctx context.Context, responseID string) (response.Response, error) {
	updated, err := s.responses.IncrementHelpful(ctx, responseID)
	metrics.RecordStorageOp("increment_helpful", err)
	if err != nil {
		return response.Response{}, err
	}
	if _, err := s.reputation.Recompute(ctx, updated.ExpertID); err != nil {
		s.log.WithError(err).Warnf("stats recompute for expert %s failed", updated.ExpertID)
	}
	return updated, nil
}

// MarkBest designates the best response for a request, resolving it. A
// later call with a different response moves the pointer; the previous
// best is superseded, never kept alongside.
func (s *Service) MarkBest(ctx context.Context, requestID, responseID string) (request.Request, error) {
	updated, err := s.requests.MarkBestResponse(ctx, requestID, responseID)
	metrics.RecordStorageOp("mark_best_response", err)
	if err != nil {
		return request.Request{}, err
	}

	if resp, err := s.responses.GetResponse(ctx, responseID); err == nil {
		s.notify(ctx, notification.Notification{
			UserID:       resp.ExpertID,
			Type:         notification.TypeBestResponse,
			Title:        "Your response was marked best",
			Message:      updated.Title,
			EntityType:   "request",
			EntityID:     requestID,
			ActionUserID: updated.UserID,
		})
	}
	s.reputation.InvalidateRanking(ctx)

	s.log.Infof("request %s resolved with best response %s", requestID, responseID)
	return updated, nil
}

// Review records a rating on a response and notifies its author. The data
// model permits several reviews per response; re-rating is not rejected
// here.
func (s *Service) Review(ctx context.Context, rv response.Review) (response.Review, error) {
	resp, err := s.responses.GetResponse(ctx, rv.ResponseID)
	if err != nil {
		return response.Review{}, fmt.Errorf("load response: %w", err)
	}
	rv.RequestID = resp.RequestID

	created, err := s.reviews.CreateReview(ctx, rv)
	metrics.RecordStorageOp("create_review", err)
	if err != nil {
		return response.Review{}, err
	}

	if _, err := s.reputation.Recompute(ctx, resp.ExpertID); err != nil {
		s.log.WithError(err).Warnf("stats recompute for expert %s failed", resp.ExpertID)
	}
	s.notify(ctx, notification.Notification{
		UserID:       resp.ExpertID,
		Type:         notification.TypeNewRating,
		Title:        "Your response was rated",
		Message:      fmt.Sprintf("Rated %d/5", created.Rating),
		EntityType:   "response",
		EntityID:     resp.ID,
		ActionUserID: created.UserID,
	})
	return created, nil
}

// ListReviewsForResponse returns a response's reviews, most recent first.
func (s *Service) ListReviewsForResponse(ctx context.Context, responseID string) ([]response.Review, error) {
	return s.reviews.ListReviewsForResponse(ctx, responseID)
}

// ListReviewsForExpert returns reviews across all of an expert's
// responses, most recent first.
func (s *Service) ListReviewsForExpert(ctx context.Context, expertID string) ([]response.Review, error) {
	return s.reviews.ListReviewsForExpert(ctx, expertID)
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if _, err := s.notifications.CreateNotification(ctx, n); err != nil {
		// Fan-out is best-effort; the triggering write already succeeded.
		s.log.WithError(err).Warnf("notification fan-out to user %s failed", n.UserID)
		return
	}
	metrics.RecordNotification(n.Type)
}
