package reputation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/response"
	"github.com/helphub/platform/internal/app/domain/stats"
	"github.com/helphub/platform/internal/app/domain/user"
	"github.com/helphub/platform/internal/app/storage/memory"
)

type fakeCache struct {
	stored      []stats.TopHelper
	hit         bool
	sets        int
	invalidates int
}

func (c *fakeCache) Get(context.Context) ([]stats.TopHelper, bool) {
	if !c.hit {
		return nil, false
	}
	return c.stored, true
}

func (c *fakeCache) Set(_ context.Context, helpers []stats.TopHelper) {
	c.stored = helpers
	c.sets++
}

func (c *fakeCache) Invalidate(context.Context) {
	c.invalidates++
	c.hit = false
}

func newExpert(t *testing.T, store *memory.Store, phone string, limit int) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Phone:             phone,
		Name:              "expert " + phone,
		IsExpert:          true,
		IsActive:          true,
		DailyRequestLimit: limit,
	})
	if err != nil {
		t.Fatalf("create expert: %v", err)
	}
	return u
}

func TestAvailableSlotsCountsTodayResponses(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, nil)
	ctx := context.Background()

	expert := newExpert(t, store, "+1", 3)

	for want := 3; want > 0; want-- {
		slots, err := svc.AvailableSlots(ctx, expert.ID)
		if err != nil {
			t.Fatalf("available slots: %v", err)
		}
		if slots != want {
			t.Fatalf("expected %d slots, got %d", want, slots)
		}
		if _, err := store.CreateResponse(ctx, response.Response{RequestID: "r", ExpertID: expert.ID, Content: "x"}); err != nil {
			t.Fatalf("create response: %v", err)
		}
	}

	slots, err := svc.AvailableSlots(ctx, expert.ID)
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if slots != 0 {
		t.Fatalf("expected 0 slots after limit, got %d", slots)
	}
}

func TestAvailableSlotsNeverNegative(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, nil)
	ctx := context.Background()

	expert := newExpert(t, store, "+1", 1)
	for i := 0; i < 2; i++ {
		if _, err := store.CreateResponse(ctx, response.Response{RequestID: "r", ExpertID: expert.ID}); err != nil {
			t.Fatalf("create response: %v", err)
		}
	}

	slots, err := svc.AvailableSlots(ctx, expert.ID)
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if slots != 0 {
		t.Fatalf("expected 0 slots, got %d", slots)
	}
}

func TestEnsureDailyResetZeroesStaleRow(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, nil)
	ctx := context.Background()

	yesterday := stats.StartOfDayUTC(time.Now().UTC().Add(-24 * time.Hour))
	if _, err := store.UpsertExpertStats(ctx, stats.ExpertStats{
		ExpertID:       "e1",
		TotalResponses: 9,
		TodayResponses: 5,
		LastResetDate:  yesterday,
	}); err != nil {
		t.Fatalf("seed stats: %v", err)
	}

	row, err := svc.EnsureDailyReset(ctx, "e1")
	if err != nil {
		t.Fatalf("daily reset: %v", err)
	}
	if row.TodayResponses != 0 {
		t.Fatalf("expected zeroed today count, got %d", row.TodayResponses)
	}
	if !stats.SameDayUTC(row.LastResetDate, time.Now().UTC()) {
		t.Fatalf("last reset date not advanced: %v", row.LastResetDate)
	}
	if row.TotalResponses != 9 {
		t.Fatalf("reset touched lifetime counters: %+v", row)
	}

	again, err := svc.EnsureDailyReset(ctx, "e1")
	if err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if again.LastResetDate != row.LastResetDate || again.TodayResponses != 0 {
		t.Fatalf("reset is not idempotent: %+v", again)
	}
}

func TestEnsureDailyResetCreatesMissingRow(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, nil)

	row, err := svc.EnsureDailyReset(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("daily reset for unknown expert: %v", err)
	}
	if row.ExpertID != "fresh" || row.TotalResponses != 0 {
		t.Fatalf("unexpected created row: %+v", row)
	}
}

func seedRankingState(t *testing.T, store *memory.Store) {
	t.Helper()
	now := time.Now().UTC()
	recent := now.Add(-24 * time.Hour)
	best := "100"

	st := memory.New().ExportState()
	st.Users["1"] = user.User{ID: "1", Name: "Quality"}
	st.Users["2"] = user.User{ID: "2", Name: "Volume"}
	st.Users["3"] = user.User{ID: "3", Name: "Casual"}
	st.Users["4"] = user.User{ID: "4", Name: "Fourth"}
	st.Users["5"] = user.User{ID: "5", Name: "Dormant"}

	// Quality: 2 responses, avg rating 5, 1 best answer. Score 2.9.
	st.Responses["100"] = response.Response{ID: "100", RequestID: "200", ExpertID: "1", CreatedAt: recent}
	st.Responses["101"] = response.Response{ID: "101", RequestID: "201", ExpertID: "1", CreatedAt: recent}
	st.Reviews["300"] = response.Review{ID: "300", ResponseID: "100", UserID: "u", Rating: 5, CreatedAt: recent}
	st.Requests["200"] = request.Request{ID: "200", Status: request.StatusResolved, Resolved: true, BestResponseID: &best}

	// Volume: 10 responses, no reviews, no best answers. Score 3.0.
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		st.Responses[id] = response.Response{ID: id, RequestID: "202", ExpertID: "2", CreatedAt: recent}
	}

	// Casual: 1 response, rating 4. Score 1.9.
	st.Responses["110"] = response.Response{ID: "110", RequestID: "203", ExpertID: "3", CreatedAt: recent}
	st.Reviews["301"] = response.Review{ID: "301", ResponseID: "110", UserID: "u", Rating: 4, CreatedAt: recent}

	// Fourth: 1 response, nothing else. Score 0.3; truncated from the top 3.
	st.Responses["111"] = response.Response{ID: "111", RequestID: "204", ExpertID: "4", CreatedAt: recent}

	// Dormant: activity outside the 30-day window only.
	st.Responses["112"] = response.Response{ID: "112", RequestID: "205", ExpertID: "5", CreatedAt: now.AddDate(0, 0, -45)}

	store.RestoreState(st)
}

func TestTopHelpersScoresAndTruncates(t *testing.T) {
	store := memory.New()
	seedRankingState(t, store)
	svc := New(store, store, store, nil, nil)

	helpers, err := svc.TopHelpers(context.Background())
	if err != nil {
		t.Fatalf("top helpers: %v", err)
	}
	if len(helpers) != 3 {
		t.Fatalf("expected top 3, got %d", len(helpers))
	}
	if helpers[0].UserID != "2" || helpers[1].UserID != "1" || helpers[2].UserID != "3" {
		t.Fatalf("unexpected order: %s, %s, %s", helpers[0].UserID, helpers[1].UserID, helpers[2].UserID)
	}
	if math.Abs(helpers[0].Score-3.0) > 1e-9 {
		t.Fatalf("expected volume score 3.0, got %v", helpers[0].Score)
	}
	if math.Abs(helpers[1].Score-2.9) > 1e-9 {
		t.Fatalf("expected quality score 2.9, got %v", helpers[1].Score)
	}
	for _, h := range helpers {
		if h.UserID == "5" {
			t.Fatal("expert with no in-window activity ranked")
		}
	}
}

func TestTopHelpersTieBreaksByUserID(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()

	// Ids 2 and 10 disagree between numeric and lexical order; the
	// counter-issued ids of the in-memory backends sort numerically.
	st := memory.New().ExportState()
	st.Responses["20"] = response.Response{ID: "20", RequestID: "r", ExpertID: "10", CreatedAt: now}
	st.Responses["21"] = response.Response{ID: "21", RequestID: "r", ExpertID: "2", CreatedAt: now}
	store.RestoreState(st)

	svc := New(store, store, store, nil, nil)
	helpers, err := svc.TopHelpers(context.Background())
	if err != nil {
		t.Fatalf("top helpers: %v", err)
	}
	if len(helpers) != 2 {
		t.Fatalf("expected 2 helpers, got %d", len(helpers))
	}
	if helpers[0].UserID != "2" || helpers[1].UserID != "10" {
		t.Fatalf("tie not broken by user id: %s, %s", helpers[0].UserID, helpers[1].UserID)
	}
}

func TestTopHelpersUsesCache(t *testing.T) {
	store := memory.New()
	seedRankingState(t, store)
	cache := &fakeCache{}
	svc := New(store, store, store, cache, nil)
	ctx := context.Background()

	if _, err := svc.TopHelpers(ctx); err != nil {
		t.Fatalf("top helpers: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected 1 cache fill, got %d", cache.sets)
	}

	cache.hit = true
	cache.stored = []stats.TopHelper{{UserID: "cached"}}
	helpers, err := svc.TopHelpers(ctx)
	if err != nil {
		t.Fatalf("cached top helpers: %v", err)
	}
	if len(helpers) != 1 || helpers[0].UserID != "cached" {
		t.Fatalf("cache hit ignored: %+v", helpers)
	}

	if _, err := svc.Recompute(ctx, "1"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if cache.invalidates != 1 {
		t.Fatalf("expected invalidation after recompute, got %d", cache.invalidates)
	}
}
