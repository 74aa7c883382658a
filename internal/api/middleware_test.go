package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		header     string
		wantCalled bool
		wantStatus int
		wantError  string
	}{
		{"missing header", "secret-token", "", false, http.StatusUnauthorized, "missing authorization header"},
		{"basic auth", "secret-token", "Basic dXNlcjpwYXNz", false, http.StatusUnauthorized, "invalid authorization format"},
		{"wrong token", "secret-token", "Bearer wrong-token", false, http.StatusUnauthorized, "invalid token"},
		{"valid token", "secret-token", "Bearer secret-token", true, http.StatusOK, ""},
		{"lowercase bearer", "secret-token", "bearer secret-token", true, http.StatusOK, ""},
		{"auth disabled", "", "", true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BearerToken = tt.token
			srv := newFixture(t, cfg).srv

			called := false
			handler := srv.withAuth(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("POST", "/v1/transport/play", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler(w, req)

			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantError == "" {
				return
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, resp.Error)
			}
		})
	}
}
