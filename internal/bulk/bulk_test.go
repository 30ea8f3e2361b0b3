package bulk

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestOrderedExecutionKeepsInputOrder(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	var executed []string

	op := &Operation{Jobs: 4, Ordered: true}
	result := op.Execute(context.Background(), items, func(_ context.Context, i int, item string) error {
		if items[i] != item {
			t.Errorf("index %d paired with %q", i, item)
		}
		executed = append(executed, item)
		return nil
	})

	if result.TotalItems != 5 || result.Succeeded != 5 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if strings.Join(executed, "") != "abcde" {
		t.Errorf("order not preserved: %v", executed)
	}
	if err := result.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestParallelExecutionVisitsEveryItem(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	seen := make(map[string]bool)
	var mu sync.Mutex

	op := &Operation{Jobs: 4}
	result := op.Execute(context.Background(), items, func(_ context.Context, _ int, item string) error {
		mu.Lock()
		seen[item] = true
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	if result.Succeeded != len(items) {
		t.Fatalf("Succeeded = %d, want %d", result.Succeeded, len(items))
	}
	for _, item := range items {
		if !seen[item] {
			t.Errorf("item %s was not executed", item)
		}
	}
}

func TestContinueOnError(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	op := &Operation{Jobs: 1, ContinueOnError: true}
	result := op.Execute(context.Background(), items, func(_ context.Context, _ int, item string) error {
		if item == "c" {
			return errBoom
		}
		return nil
	})

	if result.Succeeded != 4 || result.Failed != 1 || result.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Item != "c" || result.Errors[0].Index != 2 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	err := result.Err()
	if err == nil || !strings.Contains(err.Error(), "partial success: 4 succeeded, 1 failed") {
		t.Errorf("Err() = %v", err)
	}
}

func TestStopOnErrorSkipsTheRest(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	var executed []string

	op := &Operation{Ordered: true}
	result := op.Execute(context.Background(), items, func(_ context.Context, _ int, item string) error {
		executed = append(executed, item)
		if item == "c" {
			return errBoom
		}
		return nil
	})

	if len(executed) != 3 {
		t.Fatalf("expected execution to stop after 3 items, got %v", executed)
	}
	if result.Succeeded != 2 || result.Failed != 1 || result.Skipped != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestParallelErrorsSortedByIndex(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f"}

	op := &Operation{Jobs: 3, ContinueOnError: true}
	result := op.Execute(context.Background(), items, func(_ context.Context, i int, _ string) error {
		if i%2 == 1 {
			time.Sleep(time.Duration(len(items)-i) * time.Millisecond)
			return errBoom
		}
		return nil
	})

	if result.Failed != 3 {
		t.Fatalf("Failed = %d, want 3", result.Failed)
	}
	for i, e := range result.Errors {
		if e.Index != 2*i+1 {
			t.Errorf("Errors[%d].Index = %d, want %d", i, e.Index, 2*i+1)
		}
		if !errors.Is(e, errBoom) {
			t.Errorf("Errors[%d] does not unwrap to errBoom", i)
		}
	}
}

func TestSingleFailureKeepsCause(t *testing.T) {
	op := &Operation{}
	result := op.Execute(context.Background(), []string{"only"}, func(context.Context, int, string) error {
		return errBoom
	})
	if !errors.Is(result.Err(), errBoom) {
		t.Errorf("Err() = %v, want errBoom", result.Err())
	}
}

func TestCancelledContextSkipsItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := []string{"a", "b", "c"}

	op := &Operation{Ordered: true}
	result := op.Execute(ctx, items, func(_ context.Context, _ int, item string) error {
		if item == "a" {
			cancel()
		}
		return nil
	})

	if result.Succeeded != 1 || result.Skipped != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if err := result.Err(); err == nil || !strings.Contains(err.Error(), "2 of 3 operations skipped") {
		t.Errorf("Err() = %v", err)
	}
}

func TestEmptyItems(t *testing.T) {
	op := &Operation{Jobs: 4}
	result := op.Execute(context.Background(), nil, func(context.Context, int, string) error {
		t.Fatal("fn should not be called")
		return nil
	})
	if result.TotalItems != 0 || result.Err() != nil {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name     string
		result   *Result
		expected string
	}{
		{"single success is silent", &Result{TotalItems: 1, Succeeded: 1}, ""},
		{"all succeeded", &Result{TotalItems: 3, Succeeded: 3}, "✓ All 3 operations succeeded"},
		{
			"partial",
			&Result{TotalItems: 3, Succeeded: 2, Failed: 1, Errors: []ItemError{{Index: 1, Item: "I-00002", Err: errBoom}}},
			"⚠ Partial success: 2 succeeded, 1 failed, 0 skipped (out of 3)\n  I-00002: boom",
		},
		{"all failed", &Result{TotalItems: 2, Failed: 1, Skipped: 1}, "✗ 1 failed, 1 skipped (out of 2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.result.PrintSummary(&buf)
			got := strings.TrimSpace(buf.String())
			if got != tt.expected {
				t.Errorf("PrintSummary() = %q, want %q", got, tt.expected)
			}
		})
	}
}
