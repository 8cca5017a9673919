package ocrtext

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAmount(t *testing.T) {
	filler := strings.Repeat("comprobante de pago emitido por la entidad ", 3)

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "currency and keyword",
			text:   "transferencia enviada\nmonto $ 15.500,00\nfecha 12/05/2024",
			want:   "15500",
			wantOK: true,
		},
		{
			name:   "comma thousands with dot cents",
			text:   "total $1,234.56",
			want:   "1234.56",
			wantOK: true,
		},
		{
			name:   "dates and ids never qualify",
			text:   "fecha 12/05/2024 operacion 123456789 cbu 0170099220000012345678",
			wantOK: false,
		},
		{
			name:   "trap keyword loses to total",
			text:   "cuit 20.123.456\n" + filler + "\ntotal $ 5.000,00",
			want:   "5000",
			wantOK: true,
		},
		{
			name:   "ties keep first occurrence",
			text:   filler + " 1.000 y 2.000",
			want:   "1000",
			wantOK: true,
		},
		{
			name:   "single decimal digit is kept",
			text:   "total $12.500,5",
			want:   "12500.5",
			wantOK: true,
		},
		{
			name:   "trailing digits after the decimals reject the token",
			text:   "importe $ 1.500,50,3",
			wantOK: false,
		},
		{
			name:   "slice of a longer number is ignored",
			text:   "referencia 12345.678",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractAmount(tt.text, DefaultAmountOptions())
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
			}
		})
	}
}

func TestExtractAmountMinimumMagnitude(t *testing.T) {
	opts := AmountOptions{MinAmount: decimal.NewFromInt(5000)}
	_, ok := ExtractAmount("importe $ 1.500", opts)
	assert.False(t, ok)

	got, ok := ExtractAmount("importe $ 1.500 o $ 12.000", opts)
	require.True(t, ok)
	assert.Equal(t, "12000", got.String())
}

func TestCandidatesScores(t *testing.T) {
	candidates := Candidates("$ 10.000 importe transferido", DefaultAmountOptions())
	require.Len(t, candidates, 1)
	assert.Equal(t, "$ 10.000", candidates[0].Raw)
	assert.Equal(t, scoreCurrency+scoreStrongWord+scoreNoTrapWord+scoreLeadingText, candidates[0].Score)
}
