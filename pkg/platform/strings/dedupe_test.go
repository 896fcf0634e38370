package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"blanks only", " , ,", []string{}},
		{"single", "hotel", []string{"hotel"}},
		{"trims and lowercases", " Hotel , BILLING", []string{"hotel", "billing"}},
		{"dedupes keeping first", "hotel,billing,hotel,HOTEL", []string{"hotel", "billing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.raw))
		})
	}
}

func TestNormalizeNeverNil(t *testing.T) {
	assert.NotNil(t, Normalize(nil))
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"hotel", "crm"}, Without([]string{"hotel", "billing", "crm"}, "billing"))
	assert.Equal(t, []string{"hotel"}, Without([]string{"hotel"}, "billing"))
}
