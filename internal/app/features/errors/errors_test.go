package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/tallyhub/internal/app/features/errors"
	"github.com/dalemusser/tallyhub/internal/app/system/apperr"
	"go.uber.org/zap"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) uierrors.Body {
	t.Helper()
	var b uierrors.Body
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return b
}

func TestWrite_MapsTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"identity", apperr.ErrIdentityUnavailable, http.StatusUnauthorized, uierrors.CodeIdentityUnavailable},
		{"out of range", apperr.ErrCountOutOfRange, http.StatusUnprocessableEntity, uierrors.CodeCountOutOfRange},
		{"persistence", apperr.Persistence("increment", "groups/g/count", errors.New("permission denied")), http.StatusBadGateway, uierrors.CodePersistence},
		{"other", errors.New("boom"), http.StatusInternalServerError, uierrors.CodeInternal},
	}

	errLog := uierrors.NewErrorLogger(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/groups/g/increment", nil)
			rec := httptest.NewRecorder()

			errLog.Write(rec, req, "failed", tt.err)

			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
			if b := decode(t, rec); b.Error != tt.code {
				t.Errorf("code: got %q, want %q", b.Error, tt.code)
			}
		})
	}
}

func TestWrite_PersistenceCarriesDiagnostic(t *testing.T) {
	errLog := uierrors.NewErrorLogger(zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	errLog.Write(rec, req, "failed", apperr.Persistence("reset", "groups/g/count", errors.New("quota exceeded")))

	if b := decode(t, rec); b.Message != "reset groups/g/count: quota exceeded" {
		t.Errorf("message: got %q", b.Message)
	}
}

func TestConfirmationRequired(t *testing.T) {
	errLog := uierrors.NewErrorLogger(zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	errLog.ConfirmationRequired(rec, req, "Confirm the reset.")

	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
	if b := decode(t, rec); b.Error != uierrors.CodeConfirmationRequired {
		t.Errorf("code: got %q", b.Error)
	}
}

func TestRateLimited(t *testing.T) {
	errLog := uierrors.NewErrorLogger(zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	errLog.RateLimited(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}
