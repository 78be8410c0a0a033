package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_Endpoints(t *testing.T) {
	ready := false
	s := NewServer(":0", func() bool { return ready })

	tests := []struct {
		path     string
		ready    bool
		expected int
	}{
		{"/healthz", false, http.StatusOK},
		{"/readyz", false, http.StatusServiceUnavailable},
		{"/readyz", true, http.StatusOK},
		{"/metrics", true, http.StatusOK},
	}

	for _, tt := range tests {
		ready = tt.ready
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.expected {
			t.Errorf("%s (ready=%v): expected %d, got %d", tt.path, tt.ready, tt.expected, rec.Code)
		}
	}
}
