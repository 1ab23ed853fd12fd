package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObject(t *testing.T) {
	bare := `{"operation":"hold","reason":"a } in \"text\""}`
	cases := map[string]string{
		"bare":          bare,
		"json fence":    "```json\n" + bare + "\n```",
		"plain fence":   "```\n" + bare + "\n```",
		"upper fence":   "Here you go:\n```JSON\n" + bare + "\n```\nthanks",
		"prose wrapped": "Decision: " + bare + " end.",
		"padded":        "\n\n  " + bare + "  \n",
	}
	for name, in := range cases {
		got, ok := ExtractObject(in)
		assert.True(t, ok, name)
		assert.Equal(t, bare, got, name)
	}
}

func TestExtractObject_Failures(t *testing.T) {
	for _, in := range []string{"", "   ", "no json here", `{"unterminated": 1`, "```json\n```"} {
		_, ok := ExtractObject(in)
		assert.False(t, ok, in)
	}
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Pretty(`{"a":1}`))
	assert.Equal(t, "not json", Pretty(" not json "))
	assert.Equal(t, `{"a":`, Pretty(`{"a":`))
}
