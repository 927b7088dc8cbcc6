package core

import (
	"errors"
	"testing"
	"time"
)

func TestMonthLabel_Validate(t *testing.T) {
	tests := []struct {
		name    string
		label   MonthLabel
		wantErr bool
	}{
		{"valid", "2025-12", false},
		{"valid january", "2024-01", false},
		{"month out of range", "2025-13", true},
		{"missing month", "2025", true},
		{"wrong separator", "2025/12", true},
		{"empty", "", true},
		{"garbage", "not-a-month", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.label.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMonthLabel) {
				t.Errorf("Validate(%q) error should wrap ErrInvalidMonthLabel, got %v", tt.label, err)
			}
		})
	}
}

func TestMonthLabel_Time(t *testing.T) {
	got := MonthLabel("2025-12").Time()
	want := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Time() = %v, want %v", got, want)
	}

	if !MonthLabel("bogus").Time().IsZero() {
		t.Error("Time() on invalid label should be zero")
	}
}

func TestMonthLabel_Next(t *testing.T) {
	tests := []struct {
		label MonthLabel
		want  MonthLabel
	}{
		{"2025-01", "2025-02"},
		{"2025-12", "2026-01"},
	}
	for _, tt := range tests {
		if got := tt.label.Next(); got != tt.want {
			t.Errorf("Next(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestMonthLabel_MonthsUntil(t *testing.T) {
	tests := []struct {
		name   string
		from   MonthLabel
		target MonthLabel
		want   int
	}{
		{"same month", "2025-06", "2025-06", 0},
		{"target before", "2025-06", "2025-01", 0},
		{"next month", "2025-06", "2025-07", 1},
		{"across year", "2025-11", "2026-02", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.MonthsUntil(tt.target); got != tt.want {
				t.Errorf("MonthsUntil() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGoal_Validate(t *testing.T) {
	valid := Goal{ID: "g1", Name: "Emergency fund", Currency: "BTC", TargetAmount: 1.5}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid goal should pass: %v", err)
	}

	tests := []struct {
		name string
		goal Goal
		want error
	}{
		{"empty name", Goal{Currency: "BTC"}, ErrEmptyGoalName},
		{"empty currency", Goal{Name: "x"}, ErrEmptyCurrency},
		{"negative target", Goal{Name: "x", Currency: "BTC", TargetAmount: -1}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.goal.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	valid := Transaction{AssetID: "btc", Amount: 0.5, DateMillis: 1700000000000, Source: SourceManual}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction should pass: %v", err)
	}

	if err := (Transaction{AssetID: "btc", DateMillis: 1, Source: "WIRE"}).Validate(); err == nil {
		t.Error("unknown source should fail")
	}
	if err := (Transaction{AssetID: "btc", Source: SourceManual}).Validate(); err == nil {
		t.Error("missing date should fail")
	}
	if err := (Transaction{DateMillis: 1, Source: SourceManual}).Validate(); err == nil {
		t.Error("empty asset should fail")
	}
}

func TestAllocationEntry_Validate(t *testing.T) {
	valid := AllocationEntry{AssetID: "btc", GoalID: "g1", Amount: 100, MonthLabel: "2025-12"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid entry should pass: %v", err)
	}

	if err := (AllocationEntry{AssetID: "btc", GoalID: "g1", Amount: -1, MonthLabel: "2025-12"}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Error("negative amount should fail with ErrInvalidAmount")
	}
	if err := (AllocationEntry{AssetID: "btc", GoalID: "g1", MonthLabel: "junk"}).Validate(); !errors.Is(err, ErrInvalidMonthLabel) {
		t.Error("bad month label should fail with ErrInvalidMonthLabel")
	}
}

func TestExecutionSnapshot_EffectiveRequired(t *testing.T) {
	snap := ExecutionSnapshot{RequiredAmount: 500}
	if got := snap.EffectiveRequired(); got != 500 {
		t.Errorf("EffectiveRequired() = %v, want 500", got)
	}

	custom := 200.0
	snap.CustomAmount = &custom
	if got := snap.EffectiveRequired(); got != 200 {
		t.Errorf("EffectiveRequired() with custom = %v, want 200", got)
	}
}
