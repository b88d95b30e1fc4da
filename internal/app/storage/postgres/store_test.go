package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/user"
	"github.com/helphub/platform/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := s.CreateUser(context.Background(), user.User{Phone: "+1", Name: "Ana"})
	if !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	expectMet(t, mock)
}

func TestUpdateUserMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{"id", "phone", "name", "bio", "location", "password_hash",
		"is_expert", "daily_request_limit", "expertise_areas", "is_active",
		"created_at", "updated_at"}
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u1", "+1", "Ana", "", "", "", false, 0, "{}", true, now, now))
	mock.ExpectExec("UPDATE users").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := s.UpdateUser(context.Background(), user.User{ID: "u1", Phone: "+2", Name: "Ana"})
	if !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	expectMet(t, mock)
}

func TestGetUserNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetUser(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestCreateRequestRejectsInvalidUrgency(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.CreateRequest(context.Background(), request.Request{Title: "x", Urgency: "whenever"})
	if !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	expectMet(t, mock)
}

func TestMarkBestResponseRejectsForeignResponse(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE requests").
		WithArgs("req-1", "resp-9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.MarkBestResponse(context.Background(), "req-1", "resp-9")
	if !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	expectMet(t, mock)
}

func TestIncrementHelpfulNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE responses").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.IncrementHelpful(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestVerifyOtpReportsRowUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE otp_verifications").
		WithArgs("+1", "123456", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE otp_verifications").
		WithArgs("+1", "123456", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.VerifyOtp(ctx, "+1", "123456")
	if err != nil || !ok {
		t.Fatalf("first verify: ok=%v err=%v", ok, err)
	}
	ok, err = s.VerifyOtp(ctx, "+1", "123456")
	if err != nil {
		t.Fatalf("replay verify: %v", err)
	}
	if ok {
		t.Fatal("replay verified")
	}
	expectMet(t, mock)
}

func TestCountResponsesSince(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM responses`).
		WithArgs("e1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := s.CountResponsesSince(context.Background(), "e1", time.Now().UTC())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	expectMet(t, mock)
}

func TestRecomputeExpertStatsRoundsAverage(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`count\(\*\) FILTER`).
		WithArgs("e1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total", "helpful", "today"}).AddRow(3, 1, 2))
	mock.ExpectQuery(`avg\(rv\.rating\)`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(3, 4.666666))
	mock.ExpectQuery("INSERT INTO expert_stats").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stats-1"))

	row, err := s.RecomputeExpertStats(context.Background(), "e1")
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if row.TotalResponses != 3 || row.HelpfulResponses != 1 || row.TodayResponses != 2 {
		t.Fatalf("unexpected response counts: %+v", row)
	}
	if row.AverageRating != 4.7 {
		t.Fatalf("expected rounded average 4.7, got %v", row.AverageRating)
	}
	if row.ID != "stats-1" {
		t.Fatalf("expected returned id, got %q", row.ID)
	}
	expectMet(t, mock)
}

func TestDashboardStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"u", "e", "r", "o", "res", "resp"}).
			AddRow(10, 3, 7, 4, 2, 12))

	d, err := s.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.TotalUsers != 10 || d.TotalExperts != 3 || d.TotalRequests != 7 {
		t.Fatalf("unexpected dashboard: %+v", d)
	}
	if d.OpenRequests != 4 || d.ResolvedRequests != 2 || d.TotalResponses != 12 {
		t.Fatalf("unexpected dashboard: %+v", d)
	}
	expectMet(t, mock)
}

func TestMarkMessageReadUnknownMessage(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.MarkMessageRead(context.Background(), "missing", "u1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectMet(t, mock)
}
