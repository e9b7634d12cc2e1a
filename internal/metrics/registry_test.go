package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDefaultIsSingleton(t *testing.T) {
	m := Default()
	if m == nil {
		t.Fatal("expected metrics, got nil")
	}
	if Default() != m {
		t.Error("expected same instance on second call")
	}
}

func TestNewRegistryIsolated(t *testing.T) {
	reg1, m1 := NewRegistry()
	reg2, m2 := NewRegistry()

	if reg1 == reg2 || m1 == m2 {
		t.Fatal("expected independent registries")
	}

	m1.RecordError("AUTH-001")

	families, err := reg2.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "safekart_errors_total" && len(f.GetMetric()) > 0 {
			t.Error("metric recorded on reg1 leaked into reg2")
		}
	}
}

func TestHandlerFor(t *testing.T) {
	reg, m := NewRegistry()
	m.RecordHTTPRequest("auth/login", 200, 0)

	server := httptest.NewServer(HandlerFor(reg))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`safekart_http_requests_total{endpoint="auth/login",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
