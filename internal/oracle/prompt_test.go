package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/teemow/inboxtriage/internal/triage"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		ok     bool
		answer string
		want   triage.Classification
	}{
		{name: "important", ok: true, answer: "IMPORTANT", want: triage.Important},
		{name: "unimportant", ok: true, answer: "UNIMPORTANT", want: triage.LowPriority},
		{name: "lower case", ok: true, answer: "unimportant.", want: triage.LowPriority},
		{name: "chatty answer", ok: true, answer: "I think this is UNIMPORTANT", want: triage.LowPriority},
		{name: "empty answer", ok: true, answer: "", want: triage.Important},
		{name: "gibberish", ok: true, answer: "maybe?", want: triage.Important},
		{name: "no answer", ok: false, answer: "", want: triage.Important},
		{name: "failed call ignores stale answer", ok: false, answer: "UNIMPORTANT", want: triage.Important},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.ok, tt.answer))
		})
	}
}

// TestDecide_FailSafe verifies that Decide is total and only demotes a
// message on an explicit UNIMPORTANT answer.
func TestDecide_FailSafe(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ok := rapid.Bool().Draw(rt, "ok")
		answer := rapid.String().Draw(rt, "answer")

		got := Decide(ok, answer)
		if !got.Valid() {
			rt.Fatalf("Decide returned invalid classification %q", got)
		}
		explicit := ok && strings.Contains(strings.ToUpper(answer), "UNIMPORTANT")
		if got == triage.LowPriority && !explicit {
			rt.Fatalf("Decide(%v, %q) demoted without an explicit answer", ok, answer)
		}
		if explicit && got != triage.LowPriority {
			rt.Fatalf("Decide(%v, %q) ignored an explicit answer", ok, answer)
		}
	})
}

func TestUserMessage(t *testing.T) {
	d := triage.MessageDetail{
		From:    "Alice <alice@example.com>",
		Subject: "Invoice",
		Snippet: strings.Repeat("é", 300),
	}

	msg := userMessage(d, 200)
	assert.True(t, strings.HasPrefix(msg, "From: Alice <alice@example.com> | Subject: Invoice | Preview: "))
	preview := strings.TrimPrefix(msg, "From: Alice <alice@example.com> | Subject: Invoice | Preview: ")
	assert.Equal(t, 200, len([]rune(preview)))
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, systemPrompt, "IMPORTANT or UNIMPORTANT")
	assert.Contains(t, systemPrompt, "one word")
	assert.Contains(t, systemPrompt, "untrusted")
}
