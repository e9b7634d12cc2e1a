package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowChecker struct {
	name  string
	delay time.Duration
}

func (s slowChecker) Name() string { return s.name }

func (s slowChecker) Check(ctx context.Context) *Result {
	select {
	case <-time.After(s.delay):
		return Healthy("done")
	case <-ctx.Done():
		return Unhealthy("check cancelled").WithDetail("error", ctx.Err().Error())
	}
}

func fixed(name string, r *Result) Checker {
	return NewCheckerFunc(name, func(context.Context) *Result { return r })
}

func TestResultBuilders(t *testing.T) {
	r := Degraded("slow").WithDetail("ms", 120).WithLatency(time.Second)

	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, "slow", r.Message)
	assert.Equal(t, 120, r.Details["ms"])
	assert.Equal(t, time.Second, r.Latency)
	assert.Equal(t, "unhealthy", StatusUnhealthy.String())
}

func TestManagerCheck(t *testing.T) {
	m := NewManager()
	m.AddChecker(fixed("a", Healthy("ok")))
	m.AddChecker(fixed("b", Degraded("meh")))
	m.AddChecker(fixed("nil", nil))

	results := m.Check(context.Background())

	require.Len(t, results, 3)
	assert.Equal(t, StatusHealthy, results["a"].Status)
	assert.Equal(t, StatusDegraded, results["b"].Status)
	assert.Equal(t, StatusUnhealthy, results["nil"].Status)
	assert.Equal(t, []string{"a", "b", "nil"}, m.CheckNames())
}

func TestManagerReplacesByName(t *testing.T) {
	m := NewManager()
	m.AddChecker(fixed("a", Unhealthy("old")))
	m.AddChecker(fixed("a", Healthy("new")))

	results := m.Check(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, "new", results["a"].Message)
}

func TestManagerTimeout(t *testing.T) {
	m := NewManager().WithTimeout(20 * time.Millisecond)
	m.AddChecker(slowChecker{name: "slow", delay: time.Second})

	start := time.Now()
	results := m.Check(context.Background())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Positive(t, results["slow"].Latency)
}

func TestOverallStatus(t *testing.T) {
	m := NewManager()
	tests := []struct {
		name    string
		results map[string]*Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]*Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]*Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]*Result{"a": Degraded(""), "b": Unhealthy("")}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.OverallStatus(tt.results))
		})
	}
}
