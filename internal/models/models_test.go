package models

import (
	"testing"
	"time"
)

func TestValidType(t *testing.T) {
	for _, valid := range []string{TrainTypeLastochka, TrainTypeFinist, TrainTypeSapsan} {
		if !ValidType(valid) {
			t.Errorf("ValidType(%q) = false", valid)
		}
	}
	for _, invalid := range []string{"", "Сапсан2", "lastochka"} {
		if ValidType(invalid) {
			t.Errorf("ValidType(%q) = true", invalid)
		}
	}
}

func TestIsSapsan(t *testing.T) {
	sapsan := &Train{Type: TrainTypeSapsan}
	if !sapsan.IsSapsan() {
		t.Error("Sapsan train not recognized")
	}
	lastochka := &Train{Type: TrainTypeLastochka}
	if lastochka.IsSapsan() {
		t.Error("Lastochka misclassified as Sapsan")
	}
}

func TestValidMaintenanceType(t *testing.T) {
	for _, valid := range []string{"ТО-1", "ТО-3", "I1", "I6", "R4", "ТО-L", "ТО-N", "IS530"} {
		if !ValidMaintenanceType(valid) {
			t.Errorf("ValidMaintenanceType(%q) = false", valid)
		}
	}
	for _, invalid := range []string{"", "ТО-4", "I7", "to-1"} {
		if ValidMaintenanceType(invalid) {
			t.Errorf("ValidMaintenanceType(%q) = true", invalid)
		}
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 3, 15, 18, 45, 12, 999, time.FixedZone("YEKT", 5*3600))
	got := DateOnly(in)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOnly = %v, want %v", got, want)
	}
}

func TestGetNextRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{0, time.Minute},
		{1, 5 * time.Minute},
		{2, 15 * time.Minute},
		{3, time.Hour},
		{4, 4 * time.Hour},
		{5, 4 * time.Hour},  // capped
		{99, 4 * time.Hour}, // capped
	}
	for _, tt := range tests {
		if got := GetNextRetryDelay(tt.attempts); got != tt.expected {
			t.Errorf("GetNextRetryDelay(%d) = %v, want %v", tt.attempts, got, tt.expected)
		}
	}
}
