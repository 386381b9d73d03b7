package domain

import "strconv"

// Owner identifies who a cart or order belongs to for the duration of one request.
// A logged-in user takes precedence over the anonymous session.
type Owner struct {
	UserID    int64
	SessionID string
	Email     string
	Name      string
	Role      string
}

// IsUser reports whether the owner is an authenticated user
func (o Owner) IsUser() bool {
	return o.UserID > 0
}

// IsAdmin reports whether the owner is an authenticated administrator
func (o Owner) IsAdmin() bool {
	return o.IsUser() && o.Role == RoleAdmin
}

// Valid reports whether the owner can hold a cart
func (o Owner) Valid() bool {
	return o.IsUser() || o.SessionID != ""
}

// Key is a stable identifier used in logs and cache keys
func (o Owner) Key() string {
	if o.IsUser() {
		return "user:" + strconv.FormatInt(o.UserID, 10)
	}
	return "session:" + o.SessionID
}
