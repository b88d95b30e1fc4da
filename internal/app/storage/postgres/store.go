// Package postgres implements the storage contract on PostgreSQL. Joins and
// aggregates run server-side; quota-sensitive counts are window queries over
// the current UTC day instead of cached counters, so concurrent callers can
// not race a stale value.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/helphub/platform/internal/app/domain/message"
	"github.com/helphub/platform/internal/app/domain/notification"
	"github.com/helphub/platform/internal/app/domain/otp"
	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/response"
	"github.com/helphub/platform/internal/app/domain/stats"
	"github.com/helphub/platform/internal/app/domain/user"
	"github.com/helphub/platform/internal/app/storage"
)

// Store implements the storage contract backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// --- UserStore ---------------------------------------------------------------

const userColumns = `id, phone, name, bio, location, password_hash, is_expert,
	daily_request_limit, expertise_areas, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Bio, &u.Location, &u.PasswordHash,
		&u.IsExpert, &u.DailyRequestLimit, pq.Array(&u.ExpertiseAreas), &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, phone, name, bio, location, password_hash, is_expert,
			daily_request_limit, expertise_areas, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, u.ID, u.Phone, u.Name, u.Bio, u.Location, u.PasswordHash, u.IsExpert,
		u.DailyRequestLimit, pq.Array(u.ExpertiseAreas), u.IsActive, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return user.User{}, fmt.Errorf("phone %s already registered: %w", u.Phone, storage.ErrInvalidState)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET phone = $2, name = $3, bio = $4, location = $5, password_hash = $6,
			is_expert = $7, daily_request_limit = $8, expertise_areas = $9,
			is_active = $10, updated_at = $11
		WHERE id = $1
	`, u.ID, u.Phone, u.Name, u.Bio, u.Location, u.PasswordHash, u.IsExpert,
		u.DailyRequestLimit, pq.Array(u.ExpertiseAreas), u.IsActive, u.UpdatedAt)
	if isUniqueViolation(err) {
		return user.User{}, fmt.Errorf("phone %s already registered: %w", u.Phone, storage.ErrInvalidState)
	}
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

func (s *Store) listUsers(ctx context.Context, query string, args ...any) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) ListExperts(ctx context.Context, limit int) ([]user.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE is_expert AND is_active
		ORDER BY created_at DESC, id ASC`
	if limit > 0 {
		return s.listUsers(ctx, query+` LIMIT $1`, limit)
	}
	return s.listUsers(ctx, query)
}

func (s *Store) ListExpertsByExpertise(ctx context.Context, tag string) ([]user.User, error) {
	return s.listUsers(ctx, `SELECT `+userColumns+`
		FROM users
		WHERE is_expert AND is_active
			AND EXISTS (
				SELECT 1 FROM unnest(expertise_areas) AS area
				WHERE lower(area) = lower($1)
			)
		ORDER BY created_at DESC, id ASC`, tag)
}

// --- RequestStore ------------------------------------------------------------

const requestColumns = `id, user_id, title, description, urgency, status,
	best_response_id, resolved, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (request.Request, error) {
	var (
		r    request.Request
		best sql.NullString
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.Urgency, &r.Status,
		&best, &r.Resolved, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return request.Request{}, storage.ErrNotFound
	}
	if err != nil {
		return request.Request{}, err
	}
	if best.Valid {
		r.BestResponseID = &best.String
	}
	return r, nil
}

func (s *Store) CreateRequest(ctx context.Context, r request.Request) (request.Request, error) {
	if r.Status == "" {
		r.Status = request.StatusOpen
	}
	if r.Urgency == "" {
		r.Urgency = request.UrgencyMedium
	}
	if !r.Status.Valid() || !r.Urgency.Valid() {
		return request.Request{}, fmt.Errorf("request status %q urgency %q: %w", r.Status, r.Urgency, storage.ErrInvalidState)
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Resolved = r.Status == request.StatusResolved
	r.BestResponseID = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, user_id, title, description, urgency, status,
			best_response_id, resolved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, $9)
	`, r.ID, r.UserID, r.Title, r.Description, r.Urgency, r.Status, r.Resolved,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return request.Request{}, err
	}
	return r, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (request.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)
	return scanRequest(row)
}

const summarySelect = `
	SELECT r.id, r.user_id, r.title, r.description, r.urgency, r.status,
		r.best_response_id, r.resolved, r.created_at, r.updated_at,
		COALESCE(u.name, ''), COALESCE(u.phone, ''),
		(SELECT count(*) FROM responses resp WHERE resp.request_id = r.id)
	FROM requests r
	LEFT JOIN users u ON u.id = r.user_id`

func scanSummary(row interface{ Scan(...any) error }) (request.Summary, error) {
	var (
		sum  request.Summary
		best sql.NullString
	)
	err := row.Scan(&sum.ID, &sum.UserID, &sum.Title, &sum.Description, &sum.Urgency,
		&sum.Status, &best, &sum.Resolved, &sum.CreatedAt, &sum.UpdatedAt,
		&sum.OwnerName, &sum.OwnerPhone, &sum.ResponseCount)
	if errors.Is(err, sql.ErrNoRows) {
		return request.Summary{}, storage.ErrNotFound
	}
	if err != nil {
		return request.Summary{}, err
	}
	if best.Valid {
		sum.BestResponseID = &best.String
	}
	return sum, nil
}

func (s *Store) GetRequestSummary(ctx context.Context, id string) (request.Summary, error) {
	row := s.db.QueryRowContext(ctx, summarySelect+` WHERE r.id = $1`, id)
	return scanSummary(row)
}

func normalizePage(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		// No pagination requested; a high limit keeps the query shape.
		return 1<<31 - 1, 0
	}
	return pageSize, (page - 1) * pageSize
}

func (s *Store) ListRequests(ctx context.Context, status request.Status, page, pageSize int) ([]request.Summary, int, error) {
	where := ``
	args := []any{}
	if status != "" {
		where = ` WHERE r.status = $1`
		args = append(args, string(status))
	}

	var total int
	countQuery := `SELECT count(*) FROM requests r` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePage(page, pageSize)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`%s%s ORDER BY r.created_at DESC, r.id ASC LIMIT $%d OFFSET $%d`,
		summarySelect, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []request.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, sum)
	}
	return result, total, rows.Err()
}

func (s *Store) ListRequestsByUser(ctx context.Context, userID string, status request.Status, page, pageSize int) ([]request.Request, int, error) {
	where := ` WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, string(status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePage(page, pageSize)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM requests%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []request.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, r)
	}
	return result, total, rows.Err()
}

func (s *Store) UpdateRequestFields(ctx context.Context, id string, title, description *string) (request.Request, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET title = COALESCE($2::text, title),
			description = COALESCE($3::text, description),
			updated_at = $4
		WHERE id = $1
	`, id, title, description, time.Now().UTC())
	if err != nil {
		return request.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return request.Request{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return s.GetRequest(ctx, id)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status request.Status) (request.Request, error) {
	if !status.Valid() {
		return request.Request{}, fmt.Errorf("request status %q: %w", status, storage.ErrInvalidState)
	}

	// Resolved and the best-response pointer stay consistent with the
	// status in the same statement.
	result, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = $2,
			resolved = ($2 = 'resolved'),
			best_response_id = CASE WHEN $2 = 'resolved' THEN best_response_id ELSE NULL END,
			updated_at = $3
		WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return request.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return request.Request{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return s.GetRequest(ctx, id)
}

func (s *Store) MarkBestResponse(ctx context.Context, requestID, responseID string) (request.Request, error) {
	// One statement: validates the response belongs to the request and
	// supersedes any previous best-response pointer atomically.
	result, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = 'resolved', resolved = true, best_response_id = $2, updated_at = $3
		WHERE id = $1
			AND EXISTS (SELECT 1 FROM responses WHERE id = $2 AND request_id = $1)
	`, requestID, responseID, time.Now().UTC())
	if err != nil {
		return request.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return request.Request{}, fmt.Errorf("response %s on request %s: %w", responseID, requestID, storage.ErrInvalidState)
	}
	return s.GetRequest(ctx, requestID)
}

// --- ResponseStore -----------------------------------------------------------

const responseColumns = `id, request_id, expert_id, content, helpful_count, is_helpful,
	created_at, updated_at`

func scanResponse(row interface{ Scan(...any) error }) (response.Response, error) {
	var r response.Response
	err := row.Scan(&r.ID, &r.RequestID, &r.ExpertID, &r.Content, &r.HelpfulCount,
		&r.IsHelpful, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return response.Response{}, storage.ErrNotFound
	}
	return r, err
}

func (s *Store) CreateResponse(ctx context.Context, r response.Response) (response.Response, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.HelpfulCount = 0
	r.IsHelpful = false

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (id, request_id, expert_id, content, helpful_count,
			is_helpful, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, false, $5, $6)
	`, r.ID, r.RequestID, r.ExpertID, r.Content, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return response.Response{}, err
	}
	return r, nil
}

func (s *Store) GetResponse(ctx context.Context, id string) (response.Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id)
	return scanResponse(row)
}

func (s *Store) ListResponsesForRequest(ctx context.Context, requestID string) ([]response.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+responseColumns+`
		FROM responses
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []response.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) IncrementHelpful(ctx context.Context, id string) (response.Response, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE responses
		SET helpful_count = helpful_count + 1, is_helpful = true, updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return response.Response{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return response.Response{}, fmt.Errorf("response %s: %w", id, storage.ErrNotFound)
	}
	return s.GetResponse(ctx, id)
}

func (s *Store) CountResponsesSince(ctx context.Context, expertID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM responses WHERE expert_id = $1 AND created_at >= $2
	`, expertID, since).Scan(&count)
	return count, err
}

// --- ReviewStore -------------------------------------------------------------

const reviewColumns = `id, response_id, request_id, user_id, rating, comment, created_at`

func scanReview(row interface{ Scan(...any) error }) (response.Review, error) {
	var r response.Review
	err := row.Scan(&r.ID, &r.ResponseID, &r.RequestID, &r.UserID, &r.Rating,
		&r.Comment, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return response.Review{}, storage.ErrNotFound
	}
	return r, err
}

func (s *Store) CreateReview(ctx context.Context, r response.Review) (response.Review, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return response.Review{}, fmt.Errorf("rating %d out of range: %w", r.Rating, storage.ErrInvalidState)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_reviews (id, response_id, request_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.ResponseID, r.RequestID, r.UserID, r.Rating, r.Comment, r.CreatedAt)
	if err != nil {
		return response.Review{}, err
	}
	return r, nil
}

func (s *Store) listReviews(ctx context.Context, query string, args ...any) ([]response.Review, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []response.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) ListReviewsForResponse(ctx context.Context, responseID string) ([]response.Review, error) {
	return s.listReviews(ctx, `
		SELECT `+reviewColumns+`
		FROM response_reviews
		WHERE response_id = $1
		ORDER BY created_at DESC, id ASC
	`, responseID)
}

func (s *Store) ListReviewsForExpert(ctx context.Context, expertID string) ([]response.Review, error) {
	return s.listReviews(ctx, `
		SELECT rv.id, rv.response_id, rv.request_id, rv.user_id, rv.rating, rv.comment, rv.created_at
		FROM response_reviews rv
		JOIN responses r ON r.id = rv.response_id
		WHERE r.expert_id = $1
		ORDER BY rv.created_at DESC, rv.id ASC
	`, expertID)
}

// --- StatsStore --------------------------------------------------------------

const statsColumns = `id, expert_id, total_responses, total_reviews, average_rating,
	helpful_responses, today_responses, last_reset_date, updated_at`

func scanStats(row interface{ Scan(...any) error }) (stats.ExpertStats, error) {
	var es stats.ExpertStats
	err := row.Scan(&es.ID, &es.ExpertID, &es.TotalResponses, &es.TotalReviews,
		&es.AverageRating, &es.HelpfulResponses, &es.TodayResponses,
		&es.LastResetDate, &es.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return stats.ExpertStats{}, storage.ErrNotFound
	}
	return es, err
}

func (s *Store) GetExpertStats(ctx context.Context, expertID string) (stats.ExpertStats, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM expert_stats WHERE expert_id = $1`, expertID)
	return scanStats(row)
}

func (s *Store) UpsertExpertStats(ctx context.Context, row stats.ExpertStats) (stats.ExpertStats, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.UpdatedAt = time.Now().UTC()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO expert_stats (id, expert_id, total_responses, total_reviews,
			average_rating, helpful_responses, today_responses, last_reset_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (expert_id) DO UPDATE SET
			total_responses = EXCLUDED.total_responses,
			total_reviews = EXCLUDED.total_reviews,
			average_rating = EXCLUDED.average_rating,
			helpful_responses = EXCLUDED.helpful_responses,
			today_responses = EXCLUDED.today_responses,
			last_reset_date = EXCLUDED.last_reset_date,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, row.ID, row.ExpertID, row.TotalResponses, row.TotalReviews, row.AverageRating,
		row.HelpfulResponses, row.TodayResponses, row.LastResetDate, row.UpdatedAt).Scan(&row.ID)
	if err != nil {
		return stats.ExpertStats{}, err
	}
	return row, nil
}

func (s *Store) RecomputeExpertStats(ctx context.Context, expertID string) (stats.ExpertStats, error) {
	now := time.Now().UTC()
	row := stats.ExpertStats{ExpertID: expertID, LastResetDate: stats.StartOfDayUTC(now)}

	err := s.db.QueryRowContext(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE helpful_count > 0),
			count(*) FILTER (WHERE created_at >= $2)
		FROM responses
		WHERE expert_id = $1
	`, expertID, row.LastResetDate).Scan(&row.TotalResponses, &row.HelpfulResponses, &row.TodayResponses)
	if err != nil {
		return stats.ExpertStats{}, err
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT count(*), avg(rv.rating)
		FROM response_reviews rv
		JOIN responses r ON r.id = rv.response_id
		WHERE r.expert_id = $1
	`, expertID).Scan(&row.TotalReviews, &avg)
	if err != nil {
		return stats.ExpertStats{}, err
	}
	if avg.Valid {
		row.AverageRating = stats.Round1(avg.Float64)
	}

	// The upsert is a single statement, so a failed recomputation never
	// clobbers the previous row.
	return s.UpsertExpertStats(ctx, row)
}

func (s *Store) RankingAggregates(ctx context.Context, since time.Time) ([]stats.TopHelper, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.expert_id,
			COALESCE(u.name, ''),
			count(DISTINCT r.id),
			avg(rv.rating),
			count(DISTINCT req.id)
		FROM responses r
		LEFT JOIN users u ON u.id = r.expert_id
		LEFT JOIN response_reviews rv ON rv.response_id = r.id
		LEFT JOIN requests req ON req.best_response_id = r.id
		WHERE r.created_at >= $1
		GROUP BY r.expert_id, u.name
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []stats.TopHelper
	for rows.Next() {
		var (
			helper stats.TopHelper
			avg    sql.NullFloat64
		)
		if err := rows.Scan(&helper.UserID, &helper.Name, &helper.TotalResponses,
			&avg, &helper.BestAnswers); err != nil {
			return nil, err
		}
		if avg.Valid {
			helper.AverageRating = stats.Round1(avg.Float64)
		}
		result = append(result, helper)
	}
	return result, rows.Err()
}

func (s *Store) DashboardStats(ctx context.Context) (stats.Dashboard, error) {
	var d stats.Dashboard
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM users WHERE is_expert),
			(SELECT count(*) FROM requests),
			(SELECT count(*) FROM requests WHERE status = 'open'),
			(SELECT count(*) FROM requests WHERE status = 'resolved'),
			(SELECT count(*) FROM responses)
	`).Scan(&d.TotalUsers, &d.TotalExperts, &d.TotalRequests, &d.OpenRequests,
		&d.ResolvedRequests, &d.TotalResponses)
	return d, err
}

// --- OtpStore ----------------------------------------------------------------

func (s *Store) CreateOtp(ctx context.Context, v otp.Verification) (otp.Verification, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.Verified = false
	v.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO otp_verifications (id, phone, code, expires_at, verified, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
	`, v.ID, v.Phone, v.Code, v.ExpiresAt, v.CreatedAt)
	if err != nil {
		return otp.Verification{}, err
	}
	return v, nil
}

func (s *Store) VerifyOtp(ctx context.Context, phone, code string) (bool, error) {
	// Consumes exactly the most recent matching outstanding code; rows
	// already verified never match again, so replay fails.
	result, err := s.db.ExecContext(ctx, `
		UPDATE otp_verifications
		SET verified = true
		WHERE id = (
			SELECT id FROM otp_verifications
			WHERE phone = $1 AND code = $2 AND NOT verified AND expires_at > $3
			ORDER BY created_at DESC
			LIMIT 1
		)
	`, phone, code, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *Store) DeleteExpiredOtps(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM otp_verifications WHERE NOT verified AND expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- MessageStore ------------------------------------------------------------

const messageColumns = `id, request_id, sender_id, receiver_id, content, is_read, created_at`

func scanMessage(row interface{ Scan(...any) error }) (message.PrivateMessage, error) {
	var m message.PrivateMessage
	err := row.Scan(&m.ID, &m.RequestID, &m.SenderID, &m.ReceiverID, &m.Content,
		&m.IsRead, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return message.PrivateMessage{}, storage.ErrNotFound
	}
	return m, err
}

func (s *Store) CreateMessage(ctx context.Context, m message.PrivateMessage) (message.PrivateMessage, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.IsRead = false
	m.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO private_messages (id, request_id, sender_id, receiver_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`, m.ID, m.RequestID, m.SenderID, m.ReceiverID, m.Content, m.CreatedAt)
	if err != nil {
		return message.PrivateMessage{}, err
	}
	return m, nil
}

func (s *Store) ListConversation(ctx context.Context, requestID, userA, userB string) ([]message.PrivateMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM private_messages
		WHERE request_id = $1
			AND ((sender_id = $2 AND receiver_id = $3) OR (sender_id = $3 AND receiver_id = $2))
		ORDER BY created_at ASC, id ASC
	`, requestID, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []message.PrivateMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) ListConversationsForUser(ctx context.Context, userID string) ([]message.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH convo AS (
			SELECT *,
				CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS other_id
			FROM private_messages
			WHERE sender_id = $1 OR receiver_id = $1
		),
		latest AS (
			SELECT DISTINCT ON (request_id, other_id)
				request_id, other_id, content, created_at
			FROM convo
			ORDER BY request_id, other_id, created_at DESC, id ASC
		),
		unread AS (
			SELECT request_id, other_id, count(*) AS unread_count
			FROM convo
			WHERE receiver_id = $1 AND NOT is_read
			GROUP BY request_id, other_id
		)
		SELECT l.request_id, l.other_id, COALESCE(u.name, ''), l.content, l.created_at,
			COALESCE(un.unread_count, 0)
		FROM latest l
		LEFT JOIN unread un ON un.request_id = l.request_id AND un.other_id = l.other_id
		LEFT JOIN users u ON u.id = l.other_id
		ORDER BY l.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []message.ConversationSummary
	for rows.Next() {
		var sum message.ConversationSummary
		if err := rows.Scan(&sum.RequestID, &sum.OtherUserID, &sum.OtherUserName,
			&sum.LastMessage, &sum.LastMessageAt, &sum.UnreadCount); err != nil {
			return nil, err
		}
		result = append(result, sum)
	}
	return result, rows.Err()
}

func (s *Store) MarkMessageRead(ctx context.Context, messageID, userID string) error {
	// The receiver_id guard keeps senders from marking their own messages
	// read; the update is then a silent no-op.
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM private_messages WHERE id = $1)`, messageID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("message %s: %w", messageID, storage.ErrNotFound)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE private_messages SET is_read = true WHERE id = $1 AND receiver_id = $2
	`, messageID, userID)
	return err
}

// --- NotificationStore -------------------------------------------------------

const notificationColumns = `id, user_id, type, title, message, entity_type, entity_id,
	action_user_id, is_read, created_at`

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.IsRead = false
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, entity_type,
			entity_id, action_user_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, n.EntityType, n.EntityID,
		n.ActionUserID, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.EntityType, &n.EntityID, &n.ActionUserID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *Store) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT is_read
	`, userID).Scan(&count)
	return count, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("notification %s: %w", id, storage.ErrNotFound)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2
	`, id, userID)
	return err
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true WHERE user_id = $1 AND NOT is_read
	`, userID)
	return err
}
