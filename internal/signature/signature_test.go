package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"store_id":123,"event":"order/paid","id":456}`)
	secret := "s3cr3t"
	valid := Sign(secret, body)

	tests := []struct {
		name     string
		secret   string
		provided string
		want     error
	}{
		{"valid", secret, valid, nil},
		{"uppercase hex is accepted", secret, "  " + toUpper(valid), nil},
		{"missing", secret, "", ErrMissing},
		{"short", secret, valid[:10], ErrMismatch},
		{"tampered", secret, flipFirst(valid), ErrMismatch},
		{"wrong secret", "other", valid, ErrMismatch},
		{"no secret configured", "", valid, ErrNoSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.secret, body, tt.provided))
		})
	}
}

func toUpper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 32
		}
	}
	return string(out)
}

func flipFirst(s string) string {
	if s[0] == '0' {
		return "1" + s[1:]
	}
	return "0" + s[1:]
}
