package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullVersion(t *testing.T) {
	orig := GitCommit
	t.Cleanup(func() { GitCommit = orig })

	GitCommit = ""
	assert.Equal(t, Version, FullVersion())

	GitCommit = "abc123"
	assert.Equal(t, Version+" (abc123)", FullVersion())
}
