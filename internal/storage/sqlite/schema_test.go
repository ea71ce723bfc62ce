package sqlite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagForDTE(t *testing.T) {
	tests := []struct {
		name    string
		dte     float64
		want    string
		wantErr bool
	}{
		{name: "integer", dte: 30, want: "30"},
		{name: "zero", dte: 0, want: "0"},
		{name: "fractional", dte: 7.5, want: "7_5"},
		{name: "two decimal places", dte: 30.25, want: "30_25"},
		{name: "sub-day", dte: 0.5, want: "0_5"},
		{name: "four digits", dte: 1095, want: "1095"},
		{name: "negative", dte: -1, wantErr: true},
		{name: "nan", dte: math.NaN(), wantErr: true},
		{name: "positive infinity", dte: math.Inf(1), wantErr: true},
		{name: "five digits", dte: 12345, wantErr: true},
		{name: "long fraction", dte: 30.123456, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TagForDTE(tt.dte)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTablesForTagNames(t *testing.T) {
	tables := tablesForTag("45_5")
	assert.Equal(t, "trades_dte_45_5", tables.trades)
	assert.Equal(t, "trade_legs_dte_45_5", tables.legs)
	assert.Equal(t, "trade_history_dte_45_5", tables.history)
}
