package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Kind   string  `validate:"required,oneof=a b"`
	Count  int     `validate:"min=1,max=100"`
	Reward float64 `validate:"gte=-1,lte=1"`
	Lat    float64 `validate:"latitude"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name     string
		in       sample
		contains []string
	}{
		{name: "valid", in: sample{Kind: "a", Count: 10, Reward: 0.5, Lat: 40.7}},
		{name: "missing kind", in: sample{Count: 1}, contains: []string{"Kind is required"}},
		{name: "bad enum", in: sample{Kind: "c", Count: 1}, contains: []string{"Kind must be one of [a b]"}},
		{
			name:     "several failures",
			in:       sample{Kind: "a", Count: 0, Reward: 2, Lat: 91},
			contains: []string{"Count must be at least 1", "Reward must be at most 1", "Lat must be a valid latitude"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, c := range tt.contains {
				assert.Contains(t, err.Error(), c)
			}
		})
	}
}
