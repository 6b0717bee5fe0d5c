package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Classification
		wantErr bool
	}{
		{name: "important", input: "important", want: Important},
		{name: "low priority", input: "low_priority", want: LowPriority},
		{name: "surrounding whitespace", input: " important\n", want: Important},
		{name: "upper case is rejected", input: "IMPORTANT", wantErr: true},
		{name: "unknown", input: "spam", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassification(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassificationTitle(t *testing.T) {
	assert.Equal(t, "Important", Important.Title())
	assert.Equal(t, "Low Priority", LowPriority.Title())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "Grüß", Truncate("Grüße aus Köln", 4))
}
