package queue

import (
	"testing"
	"time"
)

func TestNewRetryStrategy(t *testing.T) {
	rs := NewRetryStrategy(5)

	if rs.MaxRetries != 5 {
		t.Errorf("NewRetryStrategy(5) MaxRetries = %d, want 5", rs.MaxRetries)
	}
	if len(rs.Schedule) != len(retrySchedule) {
		t.Fatalf("Schedule length = %d, want %d", len(rs.Schedule), len(retrySchedule))
	}
	for i, d := range retrySchedule {
		if rs.Schedule[i] != d {
			t.Errorf("Schedule[%d] = %v, want %v", i, rs.Schedule[i], d)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		receiveCount int
		want         bool
	}{
		{"first receive", 5, 1, true},
		{"one before budget", 5, 4, true},
		{"budget reached", 5, 5, false},
		{"past budget", 5, 9, false},
		{"unlimited", 0, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRetryStrategy(tt.maxRetries)
			if got := rs.ShouldRetry(tt.receiveCount); got != tt.want {
				t.Errorf("ShouldRetry(%d) with maxRetries=%d: got %v, want %v",
					tt.receiveCount, tt.maxRetries, got, tt.want)
			}
		})
	}
}

func TestNextBackoff(t *testing.T) {
	// Schedule [30s, 1m, 2m, 5m, 15m]; result is in [base*0.5, base].
	tests := []struct {
		name         string
		receiveCount int
		wantMin      time.Duration
		wantMax      time.Duration
	}{
		{"zero treated as first", 0, 15 * time.Second, 30 * time.Second},
		{"first receive", 1, 15 * time.Second, 30 * time.Second},
		{"second receive", 2, 30 * time.Second, time.Minute},
		{"third receive", 3, time.Minute, 2 * time.Minute},
		{"fourth receive", 4, 150 * time.Second, 5 * time.Minute},
		{"fifth receive", 5, 450 * time.Second, 15 * time.Minute},
		{"beyond schedule", 100, 450 * time.Second, 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRetryStrategy(10)
			for i := 0; i < 100; i++ {
				got := rs.NextBackoff(tt.receiveCount)
				if got < tt.wantMin || got > tt.wantMax {
					t.Fatalf("NextBackoff(%d) = %v, want within [%v, %v]",
						tt.receiveCount, got, tt.wantMin, tt.wantMax)
				}
			}
		})
	}
}

func TestNextBackoff_ProducesVariation(t *testing.T) {
	rs := NewRetryStrategy(5)
	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		seen[rs.NextBackoff(1)] = true
	}
	if len(seen) < 2 {
		t.Errorf("NextBackoff() produced %d unique values over 100 calls, expected jitter", len(seen))
	}
}
