package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecureLogger(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		status   int
		contains []string
		excludes []string
	}{
		{
			name:     "plain query kept",
			url:      "/api/participants?studyKey=s1",
			status:   http.StatusOK,
			contains: []string{"path=\"/api/participants?studyKey=s1\"", "status=200", "level=INFO"},
		},
		{
			name:     "sensitive query redacted",
			url:      "/resetPassword?email=ada@example.com&token=abc",
			status:   http.StatusOK,
			contains: []string{"?[REDACTED]"},
			excludes: []string{"ada@example.com", "abc"},
		},
		{
			name:     "client errors warn",
			url:      "/api/users/u1",
			status:   http.StatusForbidden,
			contains: []string{"level=WARN", "status=403"},
		},
		{
			name:     "server errors are errors",
			url:      "/api/users",
			status:   http.StatusInternalServerError,
			contains: []string{"level=ERROR"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			handler := SecureLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tt.url, nil))

			out := buf.String()
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}
