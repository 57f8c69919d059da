package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"dot separator", "12.34", "12.34", false},
		{"comma separator", "12,34", "12.34", false},
		{"rounds half up", "12.345", "12.35", false},
		{"integer", "1000", "1000", false},
		{"negative", "-3", "-3", false},
		{"explicit plus", "+7.5", "7.5", false},
		{"whitespace", "  5,00 ", "5", false},
		{"empty", "", "", true},
		{"zero", "0.00", "", true},
		{"letters", "12a", "", true},
		{"double sign", "--3", "", true},
		{"two separators", "1.2.3", "", true},
		{"only sign", "-", "", true},
		{"too large", "2000000000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.input, err)
				}
				return
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.RequireFromString("12.34"), "€12,34"},
		{decimal.NewFromInt(3).Neg(), "-€3,00"},
		{decimal.Zero, "€0,00"},
		{decimal.RequireFromString("1000.5"), "€1000,50"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
