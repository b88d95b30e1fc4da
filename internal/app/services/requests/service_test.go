package requests

import (
	"context"
	"errors"
	"testing"

	"github.com/helphub/platform/internal/app/domain/notification"
	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/response"
	"github.com/helphub/platform/internal/app/domain/user"
	"github.com/helphub/platform/internal/app/services/reputation"
	"github.com/helphub/platform/internal/app/storage"
	"github.com/helphub/platform/internal/app/storage/memory"
)

type fixture struct {
	store  *memory.Store
	svc    *Service
	owner  user.User
	expert user.User
}

func newFixture(t *testing.T, dailyLimit int) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	owner, err := store.CreateUser(ctx, user.User{Phone: "+owner", Name: "Owner"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	expert, err := store.CreateUser(ctx, user.User{
		Phone:             "+expert",
		Name:              "Expert",
		IsExpert:          true,
		IsActive:          true,
		DailyRequestLimit: dailyLimit,
	})
	if err != nil {
		t.Fatalf("create expert: %v", err)
	}

	rep := reputation.New(store, store, store, nil, nil)
	return &fixture{
		store:  store,
		svc:    New(store, rep, nil),
		owner:  owner,
		expert: expert,
	}
}

func (f *fixture) openRequest(t *testing.T) request.Request {
	t.Helper()
	r, err := f.svc.Create(context.Background(), f.owner.ID, "leaky tap", "drips all night", request.UrgencyHigh)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r
}

func (f *fixture) lastNotification(t *testing.T, userID string) notification.Notification {
	t.Helper()
	list, err := f.store.ListNotifications(context.Background(), userID, 1)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(list) == 0 {
		t.Fatalf("no notifications for user %s", userID)
	}
	return list[0]
}

func TestCreateValidatesOwner(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.svc.Create(context.Background(), "ghost", "title", "", request.UrgencyMedium)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), f.owner.ID, "", "", request.UrgencyMedium); err == nil {
		t.Fatal("expected error for empty title")
	}
}

func TestRespondEnforcesDailyQuota(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	r := f.openRequest(t)

	if _, err := f.svc.Respond(ctx, r.ID, f.expert.ID, "first"); err != nil {
		t.Fatalf("first response: %v", err)
	}
	_, err := f.svc.Respond(ctx, r.ID, f.expert.ID, "second")
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestRespondRejectsClosedRequest(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	r := f.openRequest(t)

	if _, err := f.svc.UpdateStatus(ctx, r.ID, request.StatusClosed); err != nil {
		t.Fatalf("close request: %v", err)
	}
	_, err := f.svc.Respond(ctx, r.ID, f.expert.ID, "too late")
	if !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRespondNotifiesOwnerAndUpdatesStats(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	r := f.openRequest(t)

	resp, err := f.svc.Respond(ctx, r.ID, f.expert.ID, "tighten the washer")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}

	n := f.lastNotification(t, f.owner.ID)
	if n.Type != notification.TypeNewResponse {
		t.Fatalf("expected new response notification, got %s", n.Type)
	}
	if n.EntityID != resp.ID || n.ActionUserID != f.expert.ID {
		t.Fatalf("unexpected notification payload: %+v", n)
	}

	row, err := f.store.GetExpertStats(ctx, f.expert.ID)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if row.TotalResponses != 1 || row.TodayResponses != 1 {
		t.Fatalf("stats not recomputed: %+v", row)
	}
}

func TestMarkBestNotifiesAuthor(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	r := f.openRequest(t)

	resp, err := f.svc.Respond(ctx, r.ID, f.expert.ID, "answer")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}

	updated, err := f.svc.MarkBest(ctx, r.ID, resp.ID)
	if err != nil {
		t.Fatalf("mark best: %v", err)
	}
	if !updated.Resolved || updated.BestResponseID == nil || *updated.BestResponseID != resp.ID {
		t.Fatalf("request not resolved: %+v", updated)
	}

	n := f.lastNotification(t, f.expert.ID)
	if n.Type != notification.TypeBestResponse {
		t.Fatalf("expected best response notification, got %s", n.Type)
	}
	if n.ActionUserID != f.owner.ID {
		t.Fatalf("expected owner as actor, got %s", n.ActionUserID)
	}
}

func TestReviewUpdatesAverageAndNotifies(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	r := f.openRequest(t)

	resp, err := f.svc.Respond(ctx, r.ID, f.expert.ID, "answer")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}

	created, err := f.svc.Review(ctx, response.Review{ResponseID: resp.ID, UserID: f.owner.ID, Rating: 4, Comment: "helped"})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if created.RequestID != r.ID {
		t.Fatalf("review not linked to request: %+v", created)
	}

	row, err := f.store.GetExpertStats(ctx, f.expert.ID)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if row.TotalReviews != 1 || row.AverageRating != 4.0 {
		t.Fatalf("stats not updated by review: %+v", row)
	}

	n := f.lastNotification(t, f.expert.ID)
	if n.Type != notification.TypeNewRating {
		t.Fatalf("expected rating notification, got %s", n.Type)
	}
}

func TestReviewRejectsOutOfRangeRating(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	r := f.openRequest(t)

	resp, err := f.svc.Respond(ctx, r.ID, f.expert.ID, "answer")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	_, err = f.svc.Review(ctx, response.Review{ResponseID: resp.ID, UserID: f.owner.ID, Rating: 6})
	if !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestMarkHelpfulIncrements(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	r := f.openRequest(t)

	resp, err := f.svc.Respond(ctx, r.ID, f.expert.ID, "answer")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	for i := 1; i <= 2; i++ {
		updated, err := f.svc.MarkHelpful(ctx, resp.ID)
		if err != nil {
			t.Fatalf("mark helpful %d: %v", i, err)
		}
		if updated.HelpfulCount != i || !updated.IsHelpful {
			t.Fatalf("unexpected helpful state after %d votes: %+v", i, updated)
		}
	}
}
