package ocrtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripAccents(t *testing.T) {
	assert.Equal(t, "Martinez Nunez", StripAccents("Martínez Núñez"))
	assert.Equal(t, "Transferencia", StripAccents("Transferencia"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and accents", "DESTINATARIO: José PÉREZ", "destinatario: jose perez"},
		{"collapses whitespace", "monto \t  $   1.500,00  ", "monto $ 1.500,00"},
		{"keeps lines and drops blanks", "linea uno\r\n\r\n  linea   dos\rfin", "linea uno\nlinea dos\nfin"},
		{"empty", "   \n \n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
