package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiff(t *testing.T) {
	assert.Empty(t, computeDiff("chatbox.yaml", "title: a\n", "title: a\n"))

	diff := computeDiff("chatbox.yaml", "title: a\nfooter: x\n", "title: b\nfooter: x\n")
	require.NotEmpty(t, diff)
	assert.Contains(t, diff, "--- chatbox.yaml")
	assert.Contains(t, diff, "+++ chatbox.yaml")
	assert.Contains(t, diff, "-title: a")
	assert.Contains(t, diff, "+title: b")
}
