package model

import "time"

// Session is an issued login session. Only a SHA-256 hash of the token is
// persisted; Token carries the raw value solely on the record returned from
// creation and is empty everywhere else.
type Session struct {
	Token     string    `json:"-"`
	TokenHash string    `json:"-"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActiveSession is an unexpired session joined with the credential that owns it.
type ActiveSession struct {
	Session
	Username     string
	IsFirstLogin bool
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	IsFirstLogin bool   `json:"isFirstLogin"`
}

// Principal returns the identity this session authenticates.
func (s *ActiveSession) Principal() *Principal {
	return &Principal{
		ID:           s.UserID,
		Username:     s.Username,
		IsFirstLogin: s.IsFirstLogin,
	}
}
