package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/helphub/platform/internal/app/domain/otp"
	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/response"
	"github.com/helphub/platform/internal/app/domain/user"
	"github.com/helphub/platform/internal/platform/migrations"
)

func userFixture(phone, name string) user.User {
	return user.User{
		Phone:             phone,
		Name:              name,
		IsExpert:          true,
		IsActive:          true,
		DailyRequestLimit: 3,
	}
}

// TestPostgresIntegration runs the contract against a real database. Set
// TEST_POSTGRES_DSN to enable it, for example:
//
//	TEST_POSTGRES_DSN="postgres://localhost/helphub_test?sslmode=disable" go test ./...
func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	s := New(db)
	phone := fmt.Sprintf("+test-%d", time.Now().UnixNano())

	owner, err := s.CreateUser(ctx, userFixture(phone+"-owner", "Owner"))
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	expert, err := s.CreateUser(ctx, userFixture(phone+"-expert", "Expert"))
	if err != nil {
		t.Fatalf("create expert: %v", err)
	}

	req, err := s.CreateRequest(ctx, request.Request{UserID: owner.ID, Title: "leaky tap", Urgency: request.UrgencyHigh})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	resp, err := s.CreateResponse(ctx, response.Response{RequestID: req.ID, ExpertID: expert.ID, Content: "tighten the washer"})
	if err != nil {
		t.Fatalf("create response: %v", err)
	}

	resolved, err := s.MarkBestResponse(ctx, req.ID, resp.ID)
	if err != nil {
		t.Fatalf("mark best: %v", err)
	}
	if resolved.BestResponseID == nil || *resolved.BestResponseID != resp.ID {
		t.Fatalf("best response not recorded: %+v", resolved)
	}

	if _, err := s.CreateReview(ctx, response.Review{ResponseID: resp.ID, RequestID: req.ID, UserID: owner.ID, Rating: 5}); err != nil {
		t.Fatalf("create review: %v", err)
	}
	row, err := s.RecomputeExpertStats(ctx, expert.ID)
	if err != nil {
		t.Fatalf("recompute stats: %v", err)
	}
	if row.TotalResponses != 1 || row.TotalReviews != 1 || row.AverageRating != 5.0 {
		t.Fatalf("unexpected stats: %+v", row)
	}

	if _, err := s.CreateOtp(ctx, otp.Verification{Phone: phone, Code: "123456", ExpiresAt: time.Now().UTC().Add(5 * time.Minute)}); err != nil {
		t.Fatalf("create otp: %v", err)
	}
	if ok, err := s.VerifyOtp(ctx, phone, "123456"); err != nil || !ok {
		t.Fatalf("first verify: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.VerifyOtp(ctx, phone, "123456"); ok {
		t.Fatal("consumed code verified a second time")
	}
}
