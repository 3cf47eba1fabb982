package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value      string
		defaultVal bool
		want       bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{"maybe", false, false},
		{" true ", false, true},
	}
	for _, tc := range cases {
		t.Setenv("VISITBOT_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("VISITBOT_TEST_BOOL", tc.defaultVal); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.defaultVal, got, tc.want)
		}
	}
}
