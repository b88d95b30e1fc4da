package otp

import "time"

// Verification is one issued one-time code. Rows are append-only per phone:
// issuing a new code never deletes or overwrites outstanding ones. Verified
// flips to true at most once; a consumed code can never be matched again.
type Verification struct {
	ID        string
	Phone     string
	Code      string
	ExpiresAt time.Time
	Verified  bool
	CreatedAt time.Time
}

// Expired reports whether the code is past its expiry at the given instant.
func (v Verification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
