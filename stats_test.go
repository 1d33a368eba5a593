package main

import "testing"

func floatPtr(v float64) *float64 { return &v }

func TestApplyStatPatchValue(t *testing.T) {
	stats := map[string]float64{"xp": 10}
	applyStatPatch(stats, "xp", floatPtr(25), nil)
	if stats["xp"] != 25 {
		t.Fatalf("expected 25, got %v", stats["xp"])
	}
}

func TestApplyStatPatchDelta(t *testing.T) {
	stats := map[string]float64{"rupees": 10}
	applyStatPatch(stats, "rupees", nil, floatPtr(-4))
	if stats["rupees"] != 6 {
		t.Fatalf("expected 6, got %v", stats["rupees"])
	}
}

func TestApplyStatPatchDeltaMissingStartsAtZero(t *testing.T) {
	stats := map[string]float64{}
	applyStatPatch(stats, "mana", nil, floatPtr(3))
	if stats["mana"] != 3 {
		t.Fatalf("expected 3, got %v", stats["mana"])
	}
}

func TestClampStat(t *testing.T) {
	cases := []struct {
		name     string
		stats    map[string]float64
		stat     string
		expected float64
	}{
		{"hearts upper bound", map[string]float64{"hearts": 13, "maxHearts": 5}, "hearts", 5},
		{"hearts custom max", map[string]float64{"hearts": 8, "maxHearts": 10}, "hearts", 8},
		{"hearts default max", map[string]float64{"hearts": 9}, "hearts", 5},
		{"hearts lower bound", map[string]float64{"hearts": -2, "maxHearts": 5}, "hearts", 0},
		{"level minimum", map[string]float64{"level": -3}, "level", 1},
		{"rupees floor", map[string]float64{"rupees": -90}, "rupees", 0},
		{"trust floor", map[string]float64{"trust": -1}, "trust", 0},
		{"xp floor", map[string]float64{"xp": -10}, "xp", 0},
		{"unclamped stat", map[string]float64{"ticksToday": -4}, "ticksToday", -4},
		{"unknown stat unclamped", map[string]float64{"mana": -7}, "mana", -7},
	}

	for _, tc := range cases {
		clampStat(tc.stats, tc.stat)
		if got := tc.stats[tc.stat]; got != tc.expected {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}
