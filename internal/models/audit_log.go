package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Audit actions
const (
	AuditActionRegister             = "REGISTER"
	AuditActionEmailVerified        = "EMAIL_VERIFIED"
	AuditActionResendVerification   = "RESEND_VERIFICATION"
	AuditActionLogin                = "LOGIN"
	AuditActionFailedLogin          = "FAILED_LOGIN"
	AuditActionAccountLocked        = "ACCOUNT_LOCKED"
	AuditActionAccountSuspended     = "ACCOUNT_SUSPENDED"
	AuditActionAccountUnlocked      = "ACCOUNT_UNLOCKED"
	AuditActionAccountInactive      = "ACCOUNT_INACTIVE"
	AuditActionRefreshToken         = "REFRESH_TOKEN"
	AuditActionRefreshTokenReuse    = "REFRESH_TOKEN_REUSE"
	AuditActionLogout               = "LOGOUT"
	AuditActionLogoutAll            = "LOGOUT_ALL"
	AuditActionPasswordResetRequest = "PASSWORD_RESET_REQUEST"
	AuditActionPasswordReset        = "PASSWORD_RESET"
	AuditActionChangePassword       = "CHANGE_PASSWORD"
	AuditActionDeleteAccount        = "DELETE_ACCOUNT"
	AuditActionSessionRevoked       = "SESSION_REVOKED"
	AuditActionSessionsRevokedAll   = "SESSIONS_REVOKED_ALL"
	AuditActionInactivityDeletion   = "INACTIVITY_DELETION"
)

// AuditEntry is an immutable record of a security-relevant action
type AuditEntry struct {
	ID        string
	CreatedAt time.Time
	Action    string
	AccountID *string
	Details   AuditDetails
}

// AuditDetails holds structured context for audit entries
type AuditDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (ad *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*ad = make(AuditDetails)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*ad = AuditDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (ad AuditDetails) Value() (driver.Value, error) {
	if ad == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(ad))
}
