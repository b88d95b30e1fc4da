package memory

import (
	"github.com/helphub/platform/internal/app/domain/message"
	"github.com/helphub/platform/internal/app/domain/notification"
	"github.com/helphub/platform/internal/app/domain/otp"
	"github.com/helphub/platform/internal/app/domain/request"
	"github.com/helphub/platform/internal/app/domain/response"
	"github.com/helphub/platform/internal/app/domain/stats"
	"github.com/helphub/platform/internal/app/domain/user"
)

// State is the full serializable contents of a Store: one collection per
// entity type plus the id counter. The snapshot backend persists it as a
// single document after every mutation.
type State struct {
	NextID        int64                                `json:"next_id"`
	Users         map[string]user.User                 `json:"users"`
	Requests      map[string]request.Request           `json:"requests"`
	Responses     map[string]response.Response         `json:"responses"`
	Reviews       map[string]response.Review           `json:"reviews"`
	ExpertStats   map[string]stats.ExpertStats         `json:"expert_stats"`
	Otps          map[string]otp.Verification          `json:"otps"`
	Messages      map[string]message.PrivateMessage    `json:"messages"`
	Notifications map[string]notification.Notification `json:"notifications"`
}

// ExportState copies the store contents for serialization.
func (s *Store) ExportState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		NextID:        s.nextID,
		Users:         make(map[string]user.User, len(s.users)),
		Requests:      make(map[string]request.Request, len(s.requests)),
		Responses:     make(map[string]response.Response, len(s.responses)),
		Reviews:       make(map[string]response.Review, len(s.reviews)),
		ExpertStats:   make(map[string]stats.ExpertStats, len(s.expertStats)),
		Otps:          make(map[string]otp.Verification, len(s.otps)),
		Messages:      make(map[string]message.PrivateMessage, len(s.messages)),
		Notifications: make(map[string]notification.Notification, len(s.notifications)),
	}
	for id, u := range s.users {
		st.Users[id] = cloneUser(u)
	}
	for id, r := range s.requests {
		st.Requests[id] = cloneRequest(r)
	}
	for id, r := range s.responses {
		st.Responses[id] = r
	}
	for id, r := range s.reviews {
		st.Reviews[id] = r
	}
	for id, row := range s.expertStats {
		st.ExpertStats[id] = row
	}
	for id, v := range s.otps {
		st.Otps[id] = v
	}
	for id, m := range s.messages {
		st.Messages[id] = m
	}
	for id, n := range s.notifications {
		st.Notifications[id] = n
	}
	return st
}

// RestoreState fully replaces the store contents with the given state.
func (s *Store) RestoreState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID = st.NextID
	if s.nextID < 1 {
		s.nextID = 1
	}
	s.users = orEmpty(st.Users)
	s.requests = orEmpty(st.Requests)
	s.responses = orEmpty(st.Responses)
	s.reviews = orEmpty(st.Reviews)
	s.expertStats = orEmpty(st.ExpertStats)
	s.otps = orEmpty(st.Otps)
	s.messages = orEmpty(st.Messages)
	s.notifications = orEmpty(st.Notifications)
}

func orEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return make(map[string]V)
	}
	return m
}
