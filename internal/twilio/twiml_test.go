package twilio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReply(t *testing.T) {
	out := string(Reply("Thanks! We received your order & will confirm <soon>."))

	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, "<Response><Message>")
	assert.Contains(t, out, "&amp;")
	assert.Contains(t, out, "&lt;soon&gt;")
	assert.NotContains(t, out, "<soon>")
}

func TestEmpty(t *testing.T) {
	out := string(Empty())

	assert.Contains(t, out, "<Response></Response>")
	assert.NotContains(t, out, "<Message>")
}
