package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/tally/internal/auth"
	"github.com/BradenHooton/tally/internal/models"
	"github.com/BradenHooton/tally/internal/services"
	pkghttp "github.com/BradenHooton/tally/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithPrincipalContext authenticates req as an active account holding sessionID
func WithPrincipalContext(req *http.Request, accountID, sessionID string) *http.Request {
	principal := &auth.Principal{
		Account: &models.Account{ID: accountID, Email: "user@example.com", Status: models.StatusActive},
		Session: &models.Session{ID: sessionID, AccountID: accountID},
		Token:   "access-token",
	}
	return req.WithContext(auth.WithPrincipal(req.Context(), principal))
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc           func(ctx context.Context, fullName, email, password string) (*models.Account, error)
	VerifyEmailFunc        func(ctx context.Context, token string) (*models.Account, error)
	ResendVerificationFunc func(ctx context.Context, email string) error
	LoginFunc              func(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	RefreshFunc            func(ctx context.Context, refreshToken string, meta models.SessionMeta) (*models.TokenPair, error)
	LogoutFunc             func(ctx context.Context, accountID, accessToken string) error
	LogoutAllFunc          func(ctx context.Context, accountID string) (int64, error)
	ForgotPasswordFunc     func(ctx context.Context, email string) error
	ResetPasswordFunc      func(ctx context.Context, token, newPassword string) error
	ChangePasswordFunc     func(ctx context.Context, accountID, currentPassword, newPassword string) error
	DeleteAccountFunc      func(ctx context.Context, accountID string) error
	GetProfileFunc         func(ctx context.Context, accountID string) (*models.Account, error)
}

func (m *MockAuthService) Register(ctx context.Context, fullName, email, password string) (*models.Account, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, fullName, email, password)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) (*models.Account, error) {
	if m.VerifyEmailFunc == nil {
		return nil, models.ErrTokenInvalid
	}
	return m.VerifyEmailFunc(ctx, token)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc == nil {
		return nil
	}
	return m.ResendVerificationFunc(ctx, email)
}

func (m *MockAuthService) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, in)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string, meta models.SessionMeta) (*models.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrTokenInvalid
	}
	return m.RefreshFunc(ctx, refreshToken, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, accountID, accessToken string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accountID, accessToken)
}

func (m *MockAuthService) LogoutAll(ctx context.Context, accountID string) (int64, error) {
	if m.LogoutAllFunc == nil {
		return 0, nil
	}
	return m.LogoutAllFunc(ctx, accountID)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc == nil {
		return nil
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return nil
	}
	return m.ResetPasswordFunc(ctx, token, newPassword)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, accountID, currentPassword, newPassword)
}

func (m *MockAuthService) DeleteAccount(ctx context.Context, accountID string) error {
	if m.DeleteAccountFunc == nil {
		return nil
	}
	return m.DeleteAccountFunc(ctx, accountID)
}

func (m *MockAuthService) GetProfile(ctx context.Context, accountID string) (*models.Account, error) {
	if m.GetProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetProfileFunc(ctx, accountID)
}

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	ListFunc      func(ctx context.Context, accountID, currentSessionID string) ([]services.SessionInfo, error)
	RevokeFunc    func(ctx context.Context, accountID, sessionID string) error
	RevokeAllFunc func(ctx context.Context, accountID string) (int64, error)
}

func (m *MockSessionService) List(ctx context.Context, accountID, currentSessionID string) ([]services.SessionInfo, error) {
	if m.ListFunc == nil {
		return []services.SessionInfo{}, nil
	}
	return m.ListFunc(ctx, accountID, currentSessionID)
}

func (m *MockSessionService) Revoke(ctx context.Context, accountID, sessionID string) error {
	if m.RevokeFunc == nil {
		return models.ErrNotFound
	}
	return m.RevokeFunc(ctx, accountID, sessionID)
}

func (m *MockSessionService) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	if m.RevokeAllFunc == nil {
		return 0, nil
	}
	return m.RevokeAllFunc(ctx, accountID)
}
