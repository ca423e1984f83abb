package vaults

import "testing"

func TestFormatAmountGrouping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.9, "999.90"},
		{1000, "1,000.00"},
		{1234567.891, "1,234,567.89"},
		{-45678.2, "-45,678.20"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Fatalf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
