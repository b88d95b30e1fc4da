// Package accounts manages user profiles and the phone-based login flow.
// Login issues a short-lived one-time code over SMS; verifying it either
// loads the existing account for the phone or creates a fresh one.
package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/helphub/platform/internal/app/domain/otp"
	"github.com/helphub/platform/internal/app/domain/user"
	"github.com/helphub/platform/internal/app/metrics"
	"github.com/helphub/platform/internal/app/storage"
	"github.com/helphub/platform/pkg/logger"
)

// ErrCodeRejected is returned when a login code does not match an active,
// unconsumed verification for the phone.
var ErrCodeRejected = errors.New("verification code rejected")

// SMSSender delivers a one-time code to a phone number. Production wires
// a gateway client; tests and development use a logging sender.
type SMSSender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the log instead of sending them.
type LogSender struct {
	Log *logger.Logger
}

func (l LogSender) Send(_ context.Context, phone, code string) error {
	l.Log.Infof("otp for %s: %s", phone, code)
	return nil
}

// Service manages accounts and login verifications.
type Service struct {
	users  storage.UserStore
	otps   storage.OtpStore
	sender SMSSender
	hasher PasswordHasher
	ttl    time.Duration
	log    *logger.Logger
}

// New constructs the service. A nil sender falls back to LogSender and a
// nil hasher to bcrypt.
func New(store storage.Store, sender SMSSender, hasher PasswordHasher, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	if sender == nil {
		sender = LogSender{Log: log}
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		users:  store,
		otps:   store,
		sender: sender,
		hasher: hasher,
		ttl:    ttl,
		log:    log,
	}
}

// Register creates a user account. The phone number must be unique.
func (s *Service) Register(ctx context.Context, u user.User) (user.User, error) {
	if u.Phone == "" {
		return user.User{}, fmt.Errorf("phone is required")
	}
	if u.Name == "" {
		return user.User{}, fmt.Errorf("name is required")
	}
	created, err := s.users.CreateUser(ctx, u)
	metrics.RecordStorageOp("create_user", err)
	if err != nil {
		return user.User{}, err
	}
	s.log.Infof("user %s registered with phone %s", created.ID, created.Phone)
	return created, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.users.GetUser(ctx, id)
}

// GetByPhone returns a user by phone number.
func (s *Service) GetByPhone(ctx context.Context, phone string) (user.User, error) {
	return s.users.GetUserByPhone(ctx, phone)
}

// Update stores a modified profile.
func (s *Service) Update(ctx context.Context, u user.User) (user.User, error) {
	updated, err := s.users.UpdateUser(ctx, u)
	metrics.RecordStorageOp("update_user", err)
	return updated, err
}

// SetPassword hashes and stores a new password for the user.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	_, err = s.users.UpdateUser(ctx, u)
	return err
}

// CheckPassword verifies a password against the user's stored hash.
func (s *Service) CheckPassword(ctx context.Context, userID, password string) (bool, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if u.PasswordHash == "" {
		return false, nil
	}
	return s.hasher.Verify(u.PasswordHash, password), nil
}

// ListExperts returns active experts, up to limit.
func (s *Service) ListExperts(ctx context.Context, limit int) ([]user.User, error) {
	return s.users.ListExperts(ctx, limit)
}

// ListExpertsByExpertise returns active experts carrying the given tag.
func (s *Service) ListExpertsByExpertise(ctx context.Context, tag string) ([]user.User, error) {
	return s.users.ListExpertsByExpertise(ctx, tag)
}

// RequestLogin issues a six-digit one-time code for the phone and sends
// it. Issuing a new code does not invalidate earlier unexpired ones.
func (s *Service) RequestLogin(ctx context.Context, phone string) error {
	if phone == "" {
		return fmt.Errorf("phone is required")
	}
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	now := time.Now().UTC()
	if _, err := s.otps.CreateOtp(ctx, otp.Verification{
		Phone:     phone,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
	}); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}
	if err := s.sender.Send(ctx, phone, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	s.log.Infof("login code issued for %s", phone)
	return nil
}

// VerifyLogin consumes a one-time code. On the first successful match the
// account for the phone is returned, created on the fly if none exists.
// A consumed or expired code is rejected.
func (s *Service) VerifyLogin(ctx context.Context, phone, code string) (user.User, error) {
	ok, err := s.otps.VerifyOtp(ctx, phone, code)
	metrics.RecordOtpVerification(err == nil && ok)
	if err != nil {
		return user.User{}, fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		return user.User{}, ErrCodeRejected
	}

	u, err := s.users.GetUserByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		u, err = s.users.CreateUser(ctx, user.User{Phone: phone, Name: phone})
		if err == nil {
			s.log.Infof("user %s auto-created on first login", u.ID)
		}
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// PurgeExpiredCodes deletes verifications that expired before now and
// returns how many were removed.
func (s *Service) PurgeExpiredCodes(ctx context.Context) (int, error) {
	n, err := s.otps.DeleteExpiredOtps(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Infof("purged %d expired login codes", n)
	}
	return n, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
