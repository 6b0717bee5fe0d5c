package instrumentation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "AI/Important", want: "ai/important"},
		{in: "AI/Low Priority", want: "ai/low_priority"},
		{in: "  spaced   out  ", want: "spaced_out"},
		{in: "", want: "unknown"},
		{in: "   ", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelValue(tt.in))
		})
	}

	assert.Len(t, LabelValue(strings.Repeat("x", 500)), maxLabelValueLen)
}

func TestOutcomeValue(t *testing.T) {
	assert.Equal(t, "unknown", OutcomeValue(""))
	assert.Equal(t, "completed", OutcomeValue("completed"))
}
