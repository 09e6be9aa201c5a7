package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences for a single key per test.
type mockQuerier struct {
	mu    sync.Mutex
	value int64
	calls int
	keys  []string
	err   error
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.keys = append(m.keys, args[0].(string))
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	switch {
	case strings.Contains(sql, "current_val + 1"):
		m.value++
	case strings.Contains(sql, "current_val + $2"):
		m.value += args[1].(int64)
	default:
		m.value = args[1].(int64)
	}
	return &mockRow{val: m.value}
}

var period = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("WD")

	for _, want := range []string{"WD-2024-00001", "WD-2024-00002"} {
		num, err := svc.GetNextNumber(ctx, cfg, nil, period)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if num != want {
			t.Errorf("expected %s, got %s", want, num)
		}
	}
	if q.keys[0] != "WD_2024" {
		t.Errorf("expected key WD_2024, got %s", q.keys[0])
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("MAT")
	opts := &Options{Strategy: StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "MAT-2024-00001" {
		t.Errorf("expected MAT-2024-00001, got %s", num)
	}
	if q.value != 10 {
		t.Errorf("expected reserved value 10, got %d", q.value)
	}

	for i := 0; i < 9; i++ {
		if _, err := svc.GetNextNumber(ctx, cfg, opts, period); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if q.calls != 1 {
		t.Errorf("expected one reservation for ten numbers, got %d", q.calls)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "MAT-2024-00011" {
		t.Errorf("expected MAT-2024-00011, got %s", num)
	}
	if q.value != 20 {
		t.Errorf("expected reserved value 20, got %d", q.value)
	}
}

func TestSetNextNumber_InvalidatesCache(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("WH")
	opts := &Options{Strategy: StrategyCached, RangeSize: 10}

	if _, err := svc.GetNextNumber(ctx, cfg, opts, period); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SetNextNumber(ctx, cfg, period, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "WH-2024-00101" {
		t.Errorf("expected WH-2024-00101, got %s", num)
	}
}

func TestNext_UsesPrefixOptions(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	svc.now = func() time.Time { return period }
	svc.SetOptions("MAT", &Options{Strategy: StrategyCached, RangeSize: 5})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Next(ctx, "MAT"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if q.calls != 1 {
		t.Errorf("expected cached strategy for MAT, got %d calls", q.calls)
	}

	num, err := svc.Next(ctx, "WD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "WD-2024-00006" {
		t.Errorf("expected strict number after shared mock value, got %s", num)
	}
}

func TestNext_PropagatesQueryError(t *testing.T) {
	q := &mockQuerier{err: errors.New("connection refused")}
	svc := New(q)

	if _, err := svc.Next(context.Background(), "WD"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFormatAndParse(t *testing.T) {
	tests := []struct {
		cfg  Config
		num  int64
		want string
	}{
		{DefaultConfig("WD"), 7, "WD-2024-00007"},
		{Config{Prefix: "MAT", PadWidth: 3}, 42, "MAT-042"},
		{Config{Prefix: "WH", ResetPeriod: "never"}, 1, "WH-00001"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := formatNumber(tt.cfg, period, tt.num)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if n := ParseNumber(got); n != tt.num {
				t.Errorf("expected parsed %d, got %d", tt.num, n)
			}
		})
	}

	if n := ParseNumber("garbage"); n != -1 {
		t.Errorf("expected -1, got %d", n)
	}
}

func TestBuildKey(t *testing.T) {
	cfg := DefaultConfig("WD")
	if got := buildKey(cfg, period); got != "WD_2024" {
		t.Errorf("yearly key: got %s", got)
	}
	cfg.ResetPeriod = "month"
	if got := buildKey(cfg, period); got != "WD_2024_03" {
		t.Errorf("monthly key: got %s", got)
	}
	cfg.ResetPeriod = "never"
	if got := buildKey(cfg, period); got != "WD" {
		t.Errorf("plain key: got %s", got)
	}
}
