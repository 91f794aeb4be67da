package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  PAGO FACTURA  ", "pago factura"},
		{"lowercases", "TRANSFERENCIA", "transferencia"},
		{"collapses dashes", "RECIBO-LUZ-MARZO", "recibo luz marzo"},
		{"collapses slashes", "REF/2024/001", "ref 2024 001"},
		{"collapses mixed runs", "PAGO - / FACTURA", "pago factura"},
		{"empty", "", ""},
		{"only separators", " -/ ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"PAGO FACTURA F240100",
		"  RECIBO-LUZ/MARZO  ",
		"ya normalizado",
		"",
		"A-B/C D",
	}

	for _, s := range inputs {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "normalize should be idempotent for %q", s)
	}
}

func TestExtractReference(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		found bool
	}{
		{"plain reference", "PAGO FACTURA F240100", "F240100", true},
		{"reference mid-text", "TRANSF RECIBIDA F240001 GRACIAS", "F240001", true},
		{"two-letter prefix", "ABONO FC240001", "FC240001", true},
		{"no reference", "TRANSFERENCIA RECIBIDA", "", false},
		{"digits only", "RECIBO 123456", "", false},
		{"first of same prefix wins", "F240001 Y F240002", "F240001", true},
		{"ambiguous prefixes", "F240001 T240002", "", false},
		{"lowercase not a reference", "pago f240100", "", false},
		{"iban is not a reference", "TRANSF ES7620770024003102575766", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractReference(tt.input)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}
