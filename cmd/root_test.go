package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandRegistration(t *testing.T) {
	t.Parallel()

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"enrich", "batch", "layers", "amenities", "caopload", "serve"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}
