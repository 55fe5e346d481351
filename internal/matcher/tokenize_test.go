package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/citeindex/pkg/types"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"computeTotal", []string{"computetotal"}},
		{"load_user-profile", []string{"load", "user", "profile"}},
		{"get id of the user USER", []string{"user"}},
		{"a.b.c", []string{}},
		{"", []string{}},
		{"parse2json v2", []string{"parse2json"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "function computeTotal(a, b) in billing-file",
		Summary(types.Element{Name: "computeTotal", Kind: types.ElementFunction, Params: []string{"a", "b"}}, "billing-file"))
	assert.Equal(t, "method save() in repo.py",
		Summary(types.Element{Name: "save", Kind: types.ElementMethod}, "repo.py"))
	assert.Equal(t, "class Cart in cart.ts",
		Summary(types.Element{Name: "Cart", Kind: types.ElementClass}, "cart.ts"))
}
