package main

import (
	"reflect"
	"testing"
)

func TestSplitSymbols(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"two_symbols", "vix,spy.us", []string{"vix", "spy.us"}},
		{"whitespace_trimmed", " vix , spy.us ", []string{"vix", "spy.us"}},
		{"empty_entries_dropped", "vix,,spy.us,", []string{"vix", "spy.us"}},
		{"single", "vix", []string{"vix"}},
		{"empty", "", nil},
		{"only_commas", ",,", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := splitSymbols(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("splitSymbols(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
