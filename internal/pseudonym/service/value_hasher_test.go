package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"case folded", "JUAN PEREZ", "juan perez"},
		{"whitespace collapsed", "  Juan \t  Perez\n", "juan perez"},
		{"composed accents", "IÑIGUEZ", "iñiguez"},
		{"email", "Juan@Empresa.COM", "juan@empresa.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.value))
		})
	}
}

func TestValueHasher_Hash(t *testing.T) {
	hasher := NewValueHasher()
	keyA := bytes.Repeat([]byte{1}, 32)
	keyB := bytes.Repeat([]byte{2}, 32)

	first := hasher.Hash(keyA, NormalizeValue("JUAN PEREZ"))
	assert.Len(t, first, 32)
	assert.Equal(t, first, hasher.Hash(keyA, NormalizeValue("juan  perez")))
	assert.NotEqual(t, first, hasher.Hash(keyB, NormalizeValue("JUAN PEREZ")))
	assert.NotEqual(t, first, hasher.Hash(keyA, NormalizeValue("JUAN PERES")))
}
