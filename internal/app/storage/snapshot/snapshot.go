// Package snapshot wraps the in-memory backend with a save-after-every-
// mutation policy: each successful write serializes the entire state to a
// single JSON document and atomically replaces the data file (temp file,
// fsync, rename — never an in-place write, so a crash can not leave a
// partial file). The triggering write is acknowledged only after the
// replace completes.
//
// The backend assumes a single writer process; it trades write
// amplification for simplicity and crash safety.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/helphub/platform/internal/app/domain/message"
	"github.com/helphub/platform/internal/app/domain/notification"
	"github.com/helphub/platform/internal/app/domain/otp"
	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/response"
	"github.com/helphub/platform/internal/app/domain/stats"
	"github.com/helphub/platform/internal/app/domain/user"
	"github.com/helphub/platform/internal/app/storage"
	"github.com/helphub/platform/internal/app/storage/memory"
)

// Store is the file-snapshotted in-memory backend.
type Store struct {
	mem  *memory.Store
	path string

	// saveMu serializes snapshot writes so concurrent in-process callers
	// can not interleave temp files.
	saveMu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// Open creates a store persisting to path. If the file already exists its
// contents fully replace the in-memory state before any request is served.
func Open(path string) (*Store, error) {
	s := &Store{mem: memory.New(), path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var st memory.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	s.mem.RestoreState(st)
	return s, nil
}

// save writes the full state to a temp file in the same directory and
// renames it over the data file.
func (s *Store) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	st := s.mem.ExportState()
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// afterWrite persists state following a successful mutation. A persistence
// failure is reported to the caller: the write is not acknowledged, even
// though the in-memory state already carries it.
func (s *Store) afterWrite(err error) error {
	if err != nil {
		return err
	}
	return s.save()
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	created, err := s.mem.CreateUser(ctx, u)
	return created, s.afterWrite(err)
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	updated, err := s.mem.UpdateUser(ctx, u)
	return updated, s.afterWrite(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.mem.GetUser(ctx, id)
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (user.User, error) {
	return s.mem.GetUserByPhone(ctx, phone)
}

func (s *Store) ListExperts(ctx context.Context, limit int) ([]user.User, error) {
	return s.mem.ListExperts(ctx, limit)
}

func (s *Store) ListExpertsByExpertise(ctx context.Context, tag string) ([]user.User, error) {
	return s.mem.ListExpertsByExpertise(ctx, tag)
}

// --- RequestStore ------------------------------------------------------------

func (s *Store) CreateRequest(ctx context.Context, r request.Request) (request.Request, error) {
	created, err := s.mem.CreateRequest(ctx, r)
	return created, s.afterWrite(err)
}

func (s *Store) GetRequest(ctx context.Context, id string) (request.Request, error) {
	return s.mem.GetRequest(ctx, id)
}

func (s *Store) GetRequestSummary(ctx context.Context, id string) (request.Summary, error) {
	return s.mem.GetRequestSummary(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, status request.Status, page, pageSize int) ([]request.Summary, int, error) {
	return s.mem.ListRequests(ctx, status, page, pageSize)
}

func (s *Store) ListRequestsByUser(ctx context.Context, userID string, status request.Status, page, pageSize int) ([]request.Request, int, error) {
	return s.mem.ListRequestsByUser(ctx, userID, status, page, pageSize)
}

func (s *Store) UpdateRequestFields(ctx context.Context, id string, title, description *string) (request.Request, error) {
	updated, err := s.mem.UpdateRequestFields(ctx, id, title, description)
	return updated, s.afterWrite(err)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status request.Status) (request.Request, error) {
	updated, err := s.mem.UpdateRequestStatus(ctx, id, status)
	return updated, s.afterWrite(err)
}

func (s *Store) MarkBestResponse(ctx context.Context, requestID, responseID string) (request.Request, error) {
	updated, err := s.mem.MarkBestResponse(ctx, requestID, responseID)
	return updated, s.afterWrite(err)
}

// --- ResponseStore -----------------------------------------------------------

func (s *Store) CreateResponse(ctx context.Context, r response.Response) (response.Response, error) {
	created, err := s.mem.CreateResponse(ctx, r)
	return created, s.afterWrite(err)
}

func (s *Store) GetResponse(ctx context.Context, id string) (response.Response, error) {
	return s.mem.GetResponse(ctx, id)
}

func (s *Store) ListResponsesForRequest(ctx context.Context, requestID string) ([]response.Response, error) {
	return s.mem.ListResponsesForRequest(ctx, requestID)
}

func (s *Store) IncrementHelpful(ctx context.Context, id string) (response.Response, error) {
	updated, err := s.mem.IncrementHelpful(ctx, id)
	return updated, s.afterWrite(err)
}

func (s *Store) CountResponsesSince(ctx context.Context, expertID string, since time.Time) (int, error) {
	return s.mem.CountResponsesSince(ctx, expertID, since)
}

// --- ReviewStore -------------------------------------------------------------

func (s *Store) CreateReview(ctx context.Context, r response.Review) (response.Review, error) {
	created, err := s.mem.CreateReview(ctx, r)
	return created, s.afterWrite(err)
}

func (s *Store) ListReviewsForResponse(ctx context.Context, responseID string) ([]response.Review, error) {
	return s.mem.ListReviewsForResponse(ctx, responseID)
}

func (s *Store) ListReviewsForExpert(ctx context.Context, expertID string) ([]response.Review, error) {
	return s.mem.ListReviewsForExpert(ctx, expertID)
}

// --- StatsStore --------------------------------------------------------------

func (s *Store) GetExpertStats(ctx context.Context, expertID string) (stats.ExpertStats, error) {
	return s.mem.GetExpertStats(ctx, expertID)
}

func (s *Store) UpsertExpertStats(ctx context.Context, row stats.ExpertStats) (stats.ExpertStats, error) {
	upserted, err := s.mem.UpsertExpertStats(ctx, row)
	return upserted, s.afterWrite(err)
}

func (s *Store) RecomputeExpertStats(ctx context.Context, expertID string) (stats.ExpertStats, error) {
	row, err := s.mem.RecomputeExpertStats(ctx, expertID)
	return row, s.afterWrite(err)
}

func (s *Store) RankingAggregates(ctx context.Context, since time.Time) ([]stats.TopHelper, error) {
	return s.mem.RankingAggregates(ctx, since)
}

func (s *Store) DashboardStats(ctx context.Context) (stats.Dashboard, error) {
	return s.mem.DashboardStats(ctx)
}

// --- OtpStore ----------------------------------------------------------------

func (s *Store) CreateOtp(ctx context.Context, v otp.Verification) (otp.Verification, error) {
	created, err := s.mem.CreateOtp(ctx, v)
	return created, s.afterWrite(err)
}

func (s *Store) VerifyOtp(ctx context.Context, phone, code string) (bool, error) {
	ok, err := s.mem.VerifyOtp(ctx, phone, code)
	if err != nil {
		return false, err
	}
	if !ok {
		// Nothing changed; skip the snapshot write.
		return false, nil
	}
	return true, s.save()
}

func (s *Store) DeleteExpiredOtps(ctx context.Context, before time.Time) (int, error) {
	removed, err := s.mem.DeleteExpiredOtps(ctx, before)
	if err != nil || removed == 0 {
		return removed, err
	}
	return removed, s.save()
}

// --- MessageStore ------------------------------------------------------------

func (s *Store) CreateMessage(ctx context.Context, m message.PrivateMessage) (message.PrivateMessage, error) {
	created, err := s.mem.CreateMessage(ctx, m)
	return created, s.afterWrite(err)
}

func (s *Store) ListConversation(ctx context.Context, requestID, userA, userB string) ([]message.PrivateMessage, error) {
	return s.mem.ListConversation(ctx, requestID, userA, userB)
}

func (s *Store) ListConversationsForUser(ctx context.Context, userID string) ([]message.ConversationSummary, error) {
	return s.mem.ListConversationsForUser(ctx, userID)
}

func (s *Store) MarkMessageRead(ctx context.Context, messageID, userID string) error {
	if err := s.mem.MarkMessageRead(ctx, messageID, userID); err != nil {
		return err
	}
	return s.save()
}

// --- NotificationStore -------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	created, err := s.mem.CreateNotification(ctx, n)
	return created, s.afterWrite(err)
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	return s.mem.ListNotifications(ctx, userID, limit)
}

func (s *Store) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	return s.mem.UnreadNotificationCount(ctx, userID)
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	if err := s.mem.MarkNotificationRead(ctx, id, userID); err != nil {
		return err
	}
	return s.save()
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if err := s.mem.MarkAllNotificationsRead(ctx, userID); err != nil {
		return err
	}
	return s.save()
}
