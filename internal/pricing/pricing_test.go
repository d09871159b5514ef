package pricing

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		want     string
	}{
		{"pounds", 12.99, "GBP", "£12.99"},
		{"dollars", 8.5, "USD", "$8.50"},
		{"euros", 20, "EUR", "€20.00"},
		{"thousands grouping", 1249.5, "GBP", "£1,249.50"},
		{"millions grouping", 1234567.89, "GBP", "£1,234,567.89"},
		{"lowercase code", 12.99, "gbp", "£12.99"},
		{"unknown currency falls back to code", 12.99, "SEK", "SEK 12.99"},
		{"zero", 0, "GBP", "£0.00"},
		{"negative keeps the sign", -4.2, "GBP", "£-4.20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.amount, tt.currency); got != tt.want {
				t.Errorf("Format(%v, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
			}
		})
	}
}
