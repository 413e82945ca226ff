package healthcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthCheck_Handler(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	testCases := []struct {
		name       string
		path       string
		checks     map[string]Checker
		wantStatus int
	}{
		{name: "healthy", path: "/health", wantStatus: http.StatusOK},
		{
			name:       "failing dependency",
			path:       "/health",
			checks:     map[string]Checker{"postgres": func(context.Context) error { return errors.New("down") }},
			wantStatus: http.StatusServiceUnavailable,
		},
		{name: "passes through", path: "/metrics", wantStatus: http.StatusTeapot},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthCheck{Checks: tc.checks}.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}
