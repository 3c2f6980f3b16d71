package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Farmacología":           "farmacologia",
		"  FARMACOLOGÍA  Básica": "farmacologia basica",
		"Ñandú":                  "nandu",
		"¿Cuántos créditos?":     "¿cuantos creditos?",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, s := range []string{"Terapéutica Avanzada", "INTRODUCCIÓN", "año  académico", "x"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestContainsIgnoresCaseAndAccents(t *testing.T) {
	field := "Farmacología Clínica"
	assert.True(t, Contains(field, "farmacología"))
	assert.True(t, Contains(field, "FARMACOLOGIA"))
	assert.True(t, Contains(field, "clinica"))
	assert.False(t, Contains(field, "terapéutica"))
	assert.False(t, Contains(field, "   "))
}

func TestContainsAny(t *testing.T) {
	q := Normalize("¿Cuántos créditos totales tiene PharmD?")
	assert.True(t, ContainsAny(q, "total de creditos", "creditos totales"))
	assert.False(t, ContainsAny(q, "promedio"))
}
