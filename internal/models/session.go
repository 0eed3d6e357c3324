package models

import "time"

// Session binds one issued access token to its account
type Session struct {
	ID         string
	AccountID  string
	TokenHash  string // SHA-256 of the access token
	CreatedAt  time.Time
	ExpiresAt  time.Time
	DeviceInfo string
	IPAddress  string
	Revoked    bool
}

// IsLive reports whether the session can still admit requests at now
func (s *Session) IsLive(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// SessionMeta describes the client a session is issued to
type SessionMeta struct {
	DeviceInfo string
	IPAddress  string
}
