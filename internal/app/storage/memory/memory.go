// Package memory provides a thread-safe in-memory implementation of the
// storage contract. All filtering, sorting and joining is done by linear
// scan, which is fine for the development and test workloads this backend
// is meant for. It is not safe for concurrent writers from multiple
// processes; the single mutex only protects callers within one process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
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
)

// Store is the transient in-memory backend. A single shared counter
// generates ids across all entity types.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	users         map[string]user.User
	requests      map[string]request.Request
	responses     map[string]response.Response
	reviews       map[string]response.Review
	expertStats   map[string]stats.ExpertStats // keyed by expert id
	otps          map[string]otp.Verification
	messages      map[string]message.PrivateMessage
	notifications map[string]notification.Notification
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		users:         make(map[string]user.User),
		requests:      make(map[string]request.Request),
		responses:     make(map[string]response.Response),
		reviews:       make(map[string]response.Review),
		expertStats:   make(map[string]stats.ExpertStats),
		otps:          make(map[string]otp.Verification),
		messages:      make(map[string]message.PrivateMessage),
		notifications: make(map[string]notification.Notification),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return strconv.FormatInt(id, 10)
}

// newestFirst reports whether (tA, idA) sorts before (tB, idB) in a
// most-recent-first listing: CreatedAt descending, ties by id ascending.
// Insertion-order tie-breaking relies on stats.IDLess because the shared
// counter makes later rows carry larger ids.
func newestFirst(tA time.Time, idA string, tB time.Time, idB string) bool {
	if !tA.Equal(tB) {
		return tA.After(tB)
	}
	return stats.IDLess(idA, idB)
}

func cloneUser(u user.User) user.User {
	u.ExpertiseAreas = append([]string(nil), u.ExpertiseAreas...)
	return u
}

func cloneRequest(r request.Request) request.Request {
	if r.BestResponseID != nil {
		id := *r.BestResponseID
		r.BestResponseID = &id
	}
	return r
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Phone == u.Phone {
			return user.User{}, fmt.Errorf("phone %s already registered: %w", u.Phone, storage.ErrInvalidState)
		}
	}

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.ExpertiseAreas = append([]string(nil), u.ExpertiseAreas...)

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	for _, existing := range s.users {
		if existing.ID != u.ID && existing.Phone == u.Phone {
			return user.User{}, fmt.Errorf("phone %s already registered: %w", u.Phone, storage.ErrInvalidState)
		}
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.ExpertiseAreas = append([]string(nil), u.ExpertiseAreas...)

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Phone == phone {
			return cloneUser(u), nil
		}
	}
	return user.User{}, fmt.Errorf("user phone %s: %w", phone, storage.ErrNotFound)
}

func (s *Store) ListExperts(_ context.Context, limit int) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []user.User
	for _, u := range s.users {
		if u.IsExpert && u.IsActive {
			result = append(result, cloneUser(u))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newestFirst(result[i].CreatedAt, result[i].ID, result[j].CreatedAt, result[j].ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListExpertsByExpertise(_ context.Context, tag string) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []user.User
	for _, u := range s.users {
		if !u.IsExpert || !u.IsActive {
			continue
		}
		for _, area := range u.ExpertiseAreas {
			if strings.EqualFold(area, tag) {
				result = append(result, cloneUser(u))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newestFirst(result[i].CreatedAt, result[i].ID, result[j].CreatedAt, result[j].ID)
	})
	return result, nil
}

// --- RequestStore ------------------------------------------------------------

func (s *Store) CreateRequest(_ context.Context, r request.Request) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
		r.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Resolved = r.Status == request.StatusResolved
	r.BestResponseID = nil

	s.requests[r.ID] = r
	return cloneRequest(r), nil
}

func (s *Store) GetRequest(_ context.Context, id string) (request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return request.Request{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return cloneRequest(r), nil
}

func (s *Store) summaryLocked(r request.Request) request.Summary {
	sum := request.Summary{Request: cloneRequest(r)}
	if owner, ok := s.users[r.UserID]; ok {
		sum.OwnerName = owner.Name
		sum.OwnerPhone = owner.Phone
	}
	for _, resp := range s.responses {
		if resp.RequestID == r.ID {
			sum.ResponseCount++
		}
	}
	return sum
}

func (s *Store) GetRequestSummary(_ context.Context, id string) (request.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return request.Summary{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return s.summaryLocked(r), nil
}

func paginate(total, page, pageSize int) (lo, hi int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		return 0, total
	}
	lo = (page - 1) * pageSize
	if lo > total {
		lo = total
	}
	hi = lo + pageSize
	if hi > total {
		hi = total
	}
	return lo, hi
}

func (s *Store) ListRequests(_ context.Context, status request.Status, page, pageSize int) ([]request.Summary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []request.Request
	for _, r := range s.requests {
		if status != "" && r.Status != status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return newestFirst(matched[i].CreatedAt, matched[i].ID, matched[j].CreatedAt, matched[j].ID)
	})

	total := len(matched)
	lo, hi := paginate(total, page, pageSize)
	result := make([]request.Summary, 0, hi-lo)
	for _, r := range matched[lo:hi] {
		result = append(result, s.summaryLocked(r))
	}
	return result, total, nil
}

func (s *Store) ListRequestsByUser(_ context.Context, userID string, status request.Status, page, pageSize int) ([]request.Request, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []request.Request
	for _, r := range s.requests {
		if r.UserID != userID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return newestFirst(matched[i].CreatedAt, matched[i].ID, matched[j].CreatedAt, matched[j].ID)
	})

	total := len(matched)
	lo, hi := paginate(total, page, pageSize)
	result := make([]request.Request, 0, hi-lo)
	for _, r := range matched[lo:hi] {
		result = append(result, cloneRequest(r))
	}
	return result, total, nil
}

func (s *Store) UpdateRequestFields(_ context.Context, id string, title, description *string) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return request.Request{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	if title != nil {
		r.Title = *title
	}
	if description != nil {
		r.Description = *description
	}
	r.UpdatedAt = time.Now().UTC()

	s.requests[id] = r
	return cloneRequest(r), nil
}

func (s *Store) UpdateRequestStatus(_ context.Context, id string, status request.Status) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !status.Valid() {
		return request.Request{}, fmt.Errorf("request status %q: %w", status, storage.ErrInvalidState)
	}
	r, ok := s.requests[id]
	if !ok {
		return request.Request{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}

	r.Status = status
	r.Resolved = status == request.StatusResolved
	if !r.Resolved {
		r.BestResponseID = nil
	}
	r.UpdatedAt = time.Now().UTC()

	s.requests[id] = r
	return cloneRequest(r), nil
}

func (s *Store) MarkBestResponse(_ context.Context, requestID, responseID string) (request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return request.Request{}, fmt.Errorf("request %s: %w", requestID, storage.ErrInvalidState)
	}
	resp, ok := s.responses[responseID]
	if !ok || resp.RequestID != requestID {
		return request.Request{}, fmt.Errorf("response %s does not belong to request %s: %w", responseID, requestID, storage.ErrInvalidState)
	}

	// Supersedes any previous best response; the pointer moves, it never
	// stacks.
	r.Status = request.StatusResolved
	r.Resolved = true
	r.BestResponseID = &responseID
	r.UpdatedAt = time.Now().UTC()

	s.requests[requestID] = r
	return cloneRequest(r), nil
}

// --- ResponseStore -----------------------------------------------------------

func (s *Store) CreateResponse(_ context.Context, r response.Response) (response.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.HelpfulCount = 0
	r.IsHelpful = false

	s.responses[r.ID] = r
	return r, nil
}

func (s *Store) GetResponse(_ context.Context, id string) (response.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.responses[id]
	if !ok {
		return response.Response{}, fmt.Errorf("response %s: %w", id, storage.ErrNotFound)
	}
	return r, nil
}

func (s *Store) ListResponsesForRequest(_ context.Context, requestID string) ([]response.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []response.Response
	for _, r := range s.responses {
		if r.RequestID == requestID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return stats.IDLess(result[i].ID, result[j].ID)
	})
	return result, nil
}

func (s *Store) IncrementHelpful(_ context.Context, id string) (response.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.responses[id]
	if !ok {
		return response.Response{}, fmt.Errorf("response %s: %w", id, storage.ErrNotFound)
	}
	r.HelpfulCount++
	r.IsHelpful = true
	r.UpdatedAt = time.Now().UTC()

	s.responses[id] = r
	return r, nil
}

func (s *Store) CountResponsesSince(_ context.Context, expertID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.responses {
		if r.ExpertID == expertID && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// --- ReviewStore -------------------------------------------------------------

func (s *Store) CreateReview(_ context.Context, r response.Review) (response.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Rating < 1 || r.Rating > 5 {
		return response.Review{}, fmt.Errorf("rating %d out of range: %w", r.Rating, storage.ErrInvalidState)
	}
	if r.ID == "" {
		r.ID = s.nextIDLocked()
	}
	r.CreatedAt = time.Now().UTC()

	s.reviews[r.ID] = r
	return r, nil
}

func (s *Store) ListReviewsForResponse(_ context.Context, responseID string) ([]response.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []response.Review
	for _, r := range s.reviews {
		if r.ResponseID == responseID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newestFirst(result[i].CreatedAt, result[i].ID, result[j].CreatedAt, result[j].ID)
	})
	return result, nil
}

func (s *Store) ListReviewsForExpert(_ context.Context, expertID string) ([]response.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make(map[string]bool)
	for _, r := range s.responses {
		if r.ExpertID == expertID {
			owned[r.ID] = true
		}
	}

	var result []response.Review
	for _, r := range s.reviews {
		if owned[r.ResponseID] {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newestFirst(result[i].CreatedAt, result[i].ID, result[j].CreatedAt, result[j].ID)
	})
	return result, nil
}

// --- StatsStore --------------------------------------------------------------

func (s *Store) GetExpertStats(_ context.Context, expertID string) (stats.ExpertStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.expertStats[expertID]
	if !ok {
		return stats.ExpertStats{}, fmt.Errorf("expert stats %s: %w", expertID, storage.ErrNotFound)
	}
	return row, nil
}

func (s *Store) UpsertExpertStats(_ context.Context, row stats.ExpertStats) (stats.ExpertStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertExpertStatsLocked(row), nil
}

func (s *Store) upsertExpertStatsLocked(row stats.ExpertStats) stats.ExpertStats {
	if existing, ok := s.expertStats[row.ExpertID]; ok {
		row.ID = existing.ID
	} else if row.ID == "" {
		row.ID = s.nextIDLocked()
	}
	row.UpdatedAt = time.Now().UTC()
	s.expertStats[row.ExpertID] = row
	return row
}

func (s *Store) RecomputeExpertStats(_ context.Context, expertID string) (stats.ExpertStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	today := stats.StartOfDayUTC(now)

	row := stats.ExpertStats{ExpertID: expertID, LastResetDate: today}
	owned := make(map[string]bool)
	for _, r := range s.responses {
		if r.ExpertID != expertID {
			continue
		}
		owned[r.ID] = true
		row.TotalResponses++
		if r.HelpfulCount > 0 {
			row.HelpfulResponses++
		}
		if !r.CreatedAt.Before(today) {
			row.TodayResponses++
		}
	}

	ratingSum := 0
	for _, r := range s.reviews {
		if owned[r.ResponseID] {
			row.TotalReviews++
			ratingSum += r.Rating
		}
	}
	if row.TotalReviews > 0 {
		row.AverageRating = stats.Round1(float64(ratingSum) / float64(row.TotalReviews))
	}

	return s.upsertExpertStatsLocked(row), nil
}

func (s *Store) RankingAggregates(_ context.Context, since time.Time) ([]stats.TopHelper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		responses int
		ratingSum int
		ratings   int
		inWindow  map[string]bool
		bestCount int
	}
	byUser := make(map[string]*acc)

	for _, r := range s.responses {
		if r.CreatedAt.Before(since) {
			continue
		}
		a := byUser[r.ExpertID]
		if a == nil {
			a = &acc{inWindow: make(map[string]bool)}
			byUser[r.ExpertID] = a
		}
		a.responses++
		a.inWindow[r.ID] = true
	}

	for _, rv := range s.reviews {
		for _, a := range byUser {
			if a.inWindow[rv.ResponseID] {
				a.ratingSum += rv.Rating
				a.ratings++
				break
			}
		}
	}

	for _, req := range s.requests {
		if req.BestResponseID == nil {
			continue
		}
		for _, a := range byUser {
			if a.inWindow[*req.BestResponseID] {
				a.bestCount++
				break
			}
		}
	}

	result := make([]stats.TopHelper, 0, len(byUser))
	for userID, a := range byUser {
		helper := stats.TopHelper{
			UserID:         userID,
			TotalResponses: a.responses,
			BestAnswers:    a.bestCount,
		}
		if u, ok := s.users[userID]; ok {
			helper.Name = u.Name
		}
		if a.ratings > 0 {
			helper.AverageRating = stats.Round1(float64(a.ratingSum) / float64(a.ratings))
		}
		result = append(result, helper)
	}
	sort.Slice(result, func(i, j int) bool {
		return stats.IDLess(result[i].UserID, result[j].UserID)
	})
	return result, nil
}

func (s *Store) DashboardStats(_ context.Context) (stats.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d stats.Dashboard
	d.TotalUsers = len(s.users)
	for _, u := range s.users {
		if u.IsExpert {
			d.TotalExperts++
		}
	}
	d.TotalRequests = len(s.requests)
	for _, r := range s.requests {
		switch r.Status {
		case request.StatusOpen:
			d.OpenRequests++
		case request.StatusResolved:
			d.ResolvedRequests++
		}
	}
	d.TotalResponses = len(s.responses)
	return d, nil
}

// --- OtpStore ----------------------------------------------------------------

func (s *Store) CreateOtp(_ context.Context, v otp.Verification) (otp.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Append-only: outstanding codes for the same phone stay untouched.
	if v.ID == "" {
		v.ID = s.nextIDLocked()
	}
	v.Verified = false
	v.CreatedAt = time.Now().UTC()

	s.otps[v.ID] = v
	return v, nil
}

func (s *Store) VerifyOtp(_ context.Context, phone, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var match *otp.Verification
	for id := range s.otps {
		v := s.otps[id]
		if v.Phone != phone || v.Code != code || v.Verified || v.Expired(now) {
			continue
		}
		if match == nil ||
			v.CreatedAt.After(match.CreatedAt) ||
			(v.CreatedAt.Equal(match.CreatedAt) && stats.IDLess(match.ID, v.ID)) {
			copied := v
			match = &copied
		}
	}
	if match == nil {
		return false, nil
	}

	match.Verified = true
	s.otps[match.ID] = *match
	return true, nil
}

func (s *Store) DeleteExpiredOtps(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, v := range s.otps {
		if !v.Verified && v.ExpiresAt.Before(before) {
			delete(s.otps, id)
			removed++
		}
	}
	return removed, nil
}

// --- MessageStore ------------------------------------------------------------

func (s *Store) CreateMessage(_ context.Context, m message.PrivateMessage) (message.PrivateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = s.nextIDLocked()
	}
	m.IsRead = false
	m.CreatedAt = time.Now().UTC()

	s.messages[m.ID] = m
	return m, nil
}

func (s *Store) ListConversation(_ context.Context, requestID, userA, userB string) ([]message.PrivateMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []message.PrivateMessage
	for _, m := range s.messages {
		if m.RequestID != requestID {
			continue
		}
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return stats.IDLess(result[i].ID, result[j].ID)
	})
	return result, nil
}

func (s *Store) ListConversationsForUser(_ context.Context, userID string) ([]message.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		requestID string
		other     string
	}
	groups := make(map[key]*message.ConversationSummary)

	for _, m := range s.messages {
		var other string
		switch userID {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}

		k := key{requestID: m.RequestID, other: other}
		sum := groups[k]
		if sum == nil {
			sum = &message.ConversationSummary{RequestID: m.RequestID, OtherUserID: other}
			if u, ok := s.users[other]; ok {
				sum.OtherUserName = u.Name
			}
			groups[k] = sum
		}

		if m.CreatedAt.After(sum.LastMessageAt) {
			sum.LastMessage = m.Content
			sum.LastMessageAt = m.CreatedAt
		}
		if m.ReceiverID == userID && !m.IsRead {
			sum.UnreadCount++
		}
	}

	result := make([]message.ConversationSummary, 0, len(groups))
	for _, sum := range groups {
		result = append(result, *sum)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastMessageAt.Equal(result[j].LastMessageAt) {
			return result[i].LastMessageAt.After(result[j].LastMessageAt)
		}
		return result[i].OtherUserID < result[j].OtherUserID
	})
	return result, nil
}

func (s *Store) MarkMessageRead(_ context.Context, messageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s: %w", messageID, storage.ErrNotFound)
	}
	// Only the receiver can mark a message read; a sender calling this is
	// a no-op, not an error.
	if m.ReceiverID != userID {
		return nil
	}
	m.IsRead = true
	s.messages[messageID] = m
	return nil
}

// --- NotificationStore -------------------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	}
	n.IsRead = false
	n.CreatedAt = time.Now().UTC()

	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, limit int) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []notification.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newestFirst(result[i].CreatedAt, result[i].ID, result[j].CreatedAt, result[j].ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UnreadNotificationCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return fmt.Errorf("notification %s: %w", id, storage.ErrNotFound)
	}
	if n.UserID != userID {
		return nil
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
		}
	}
	return nil
}
