package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryLength(t *testing.T) {
	assert.Equal(t, 0, QueryLength(""))
	assert.Equal(t, 4, QueryLength("hoje"))
	assert.Equal(t, 6, QueryLength("amanhã"))
	assert.Equal(t, 2, QueryLength("🚚"))
}

func TestSpanText(t *testing.T) {
	q := "frete 🚚 para SP"

	tests := []struct {
		name       string
		start, end int
		want       string
		ok         bool
	}{
		{name: "ascii word", start: 0, end: 5, want: "frete", ok: true},
		{name: "surrogate pair", start: 6, end: 8, want: "🚚", ok: true},
		{name: "tail", start: 14, end: 16, want: "SP", ok: true},
		{name: "whole", start: 0, end: 16, want: q, ok: true},
		{name: "splits pair", start: 6, end: 7},
		{name: "starts inside pair", start: 7, end: 9},
		{name: "past end", start: 14, end: 17},
		{name: "empty", start: 3, end: 3},
		{name: "negative", start: -1, end: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SpanText(q, tt.start, tt.end)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUTF16Offset(t *testing.T) {
	q := "ação SP"
	idx := len("ação ")
	assert.Equal(t, 5, UTF16Offset(q, idx))
	assert.Equal(t, QueryLength(q), UTF16Offset(q, len(q)+10))
}
