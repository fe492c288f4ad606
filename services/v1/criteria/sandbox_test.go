package criteria

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGojaSandboxEvaluates(t *testing.T) {
	sb := GojaSandbox{Timeout: time.Second}
	snapshot := map[string]any{
		"responseBody":       map[string]any{"items": []any{map[string]any{"ok": true}}, "count": 3},
		"responseStatusCode": 200,
	}
	cases := []struct {
		expr string
		want bool
	}{
		{"responseStatusCode === 200", true},
		{"responseBody.count > 5", false},
		{"responseBody.items[0].ok", true},
		{"{{responseBody.count}} === 3", true},
		{"{{responseBody.items[0].ok}} === true", true},
		{"{{responseBody.missing}} === undefined", true},
		{"''", false},
	}
	for _, tc := range cases {
		got, err := sb.Evaluate(context.Background(), tc.expr, snapshot)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.expr, err)
		}
		if got != tc.want {
			t.Errorf("%q = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestGojaSandboxTimesOut(t *testing.T) {
	sb := GojaSandbox{Timeout: 50 * time.Millisecond}
	start := time.Now()
	_, err := sb.Evaluate(context.Background(), "(function(){ while(true){} })()", nil)
	if !errors.Is(err, ErrSandboxTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout did not stop the runtime promptly")
	}
}

func TestGojaSandboxSyntaxError(t *testing.T) {
	_, err := GojaSandbox{}.Evaluate(context.Background(), "1 +", nil)
	if !errors.Is(err, ErrSandboxSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestGojaSandboxCannotMutateSource(t *testing.T) {
	body := map[string]any{"count": 1}
	snapshot := map[string]any{"responseBody": body}
	if _, err := (GojaSandbox{}).Evaluate(context.Background(), "(responseBody.count = 99) && true", snapshot); err != nil {
		t.Fatal(err)
	}
	if body["count"] != 1 {
		t.Fatalf("sandbox mutated the caller's snapshot: %v", body["count"])
	}
}

func TestGojaSandboxHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := GojaSandbox{Timeout: 10 * time.Second}.Evaluate(ctx, "(function(){ while(true){} })()", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
