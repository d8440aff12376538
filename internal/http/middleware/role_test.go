package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/internal/session"
)

func signedIn(role records.Role) *session.Session {
	sess := &session.Session{}
	sess.SignIn(accounts.Identity{UserID: "u-1", Name: "Someone", Email: "someone@clinic.test", Role: role})
	return sess
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		sess       *session.Session
		wantStatus int
		wantCalled bool
	}{
		{name: "no session", sess: nil, wantStatus: http.StatusFound},
		{name: "anonymous", sess: &session.Session{}, wantStatus: http.StatusFound},
		{name: "wrong role", sess: signedIn(records.RolePatient), wantStatus: http.StatusFound},
		{name: "matching role", sess: signedIn(records.RoleDoctor), wantStatus: http.StatusOK, wantCalled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/doctor_dashboard", nil)
			if tt.sess != nil {
				req = req.WithContext(session.WithSession(req.Context(), tt.sess))
			}
			rec := httptest.NewRecorder()

			called := false
			RequireRole(records.RoleDoctor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if called != tt.wantCalled {
				t.Fatalf("expected handler called=%v", tt.wantCalled)
			}
			if !tt.wantCalled {
				if loc := rec.Header().Get("Location"); loc != LoginPath {
					t.Fatalf("expected redirect to %s, got %q", LoginPath, loc)
				}
			}
		})
	}
}
