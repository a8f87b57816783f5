package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeUserNotFound, "user not found", http.StatusNotFound)
	if err.Code != ErrCodeUserNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeUserNotFound, err.Code)
	}
	if err.Message != "user not found" {
		t.Errorf("expected message 'user not found', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestAppError_InvalidCredentials_Maps401(t *testing.T) {
	err := InvalidCredentials()
	if err.Code != ErrCodeInvalidCredentials {
		t.Errorf("expected AUTH_INVALID_CREDENTIALS, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", err.HTTPStatus)
	}
}

func TestAppError_TokenCodes_Distinct(t *testing.T) {
	missing := TokenMissing()
	invalid := TokenInvalid()
	expired := TokenExpired()
	reused := TokenReused()

	codes := map[ErrorCode]bool{
		missing.Code: true, invalid.Code: true,
		expired.Code: true, reused.Code: true,
	}
	if len(codes) != 4 {
		t.Errorf("token failure codes must be distinct, got %v", codes)
	}
	if missing.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("missing token should map to 401, got %d", missing.HTTPStatus)
	}
}

func TestAppError_Forbidden_Maps403(t *testing.T) {
	err := Forbidden()
	if err.HTTPStatus != http.StatusForbidden {
		t.Errorf("expected 403, got %d", err.HTTPStatus)
	}
	if err.Code != ErrCodeForbidden {
		t.Errorf("expected AUTH_FORBIDDEN, got %s", err.Code)
	}
}

func TestAppError_Conflicts_Map409(t *testing.T) {
	for _, err := range []*AppError{
		EmailTaken(), UsernameTaken(), PhoneTaken(),
		RoleExists("editor"), PermissionExists("posts:write"),
	} {
		if err.HTTPStatus != http.StatusConflict {
			t.Errorf("%s: expected 409, got %d", err.Code, err.HTTPStatus)
		}
	}
}

func TestAppError_Internal_HidesCause(t *testing.T) {
	cause := fmt.Errorf("pq: connection refused")
	err := Internal(cause)
	if err.Cause != cause {
		t.Error("expected cause to be retained for logging")
	}
	resp := err.ToResponse()
	if resp.Error.Message != "An unexpected error occurred. Please try again." {
		t.Errorf("internal cause must not leak to clients, got %q", resp.Error.Message)
	}
	if resp.Error.Timestamp == "" {
		t.Error("expected timestamp in response")
	}
}

func TestAppError_Unwrap_Success(t *testing.T) {
	cause := stderrors.New("boom")
	err := Database(cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestAsAppError_Success(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", RoleNotFound("editor"))
	appErr, ok := AsAppError(err)
	if !ok {
		t.Fatal("expected AsAppError to unwrap")
	}
	if appErr.Code != ErrCodeRoleNotFound {
		t.Errorf("expected ROLE_NOT_FOUND, got %s", appErr.Code)
	}
}

func TestHasCode_Success(t *testing.T) {
	if !HasCode(TokenReused(), ErrCodeTokenReused) {
		t.Error("expected HasCode to match")
	}
	if HasCode(stderrors.New("plain"), ErrCodeTokenReused) {
		t.Error("plain errors should not match a domain code")
	}
}
