package api

import (
	"net/http"
	"testing"
)

func TestOperationName(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/pages", "listPages"},
		{http.MethodPost, "/api/v1/pages", "push"},
		{http.MethodPost, "/api/v1/pages/pop", "pop"},
		{http.MethodPost, "/api/v1/pages/root", "popToRoot"},
		{http.MethodPost, "/api/v1/messages", "postMessage"},
		{http.MethodGet, "/api/v1/stats", "stats"},
		{http.MethodGet, "/bridge/ws", "bindChannel"},
		{http.MethodGet, "/bridge/ws?page=p-1", "bindChannel"},
		{http.MethodGet, "/docs", "other"},
	}
	for _, tt := range tests {
		if got := operationName(tt.method, tt.path); got != tt.want {
			t.Fatalf("operationName(%s %s) = %q; want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestQuietEndpoint(t *testing.T) {
	for _, path := range []string{"/health", "/metrics"} {
		if !quietEndpoint(path) {
			t.Fatalf("quietEndpoint(%s) = false; want true", path)
		}
	}
	if quietEndpoint("/api/v1/pages") {
		t.Fatal("quietEndpoint(/api/v1/pages) = true; want false")
	}
}
