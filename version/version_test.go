package version

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/metagen/target"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, target.FormatVersion, info.TargetFormat)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestString(t *testing.T) {
	dev := Info{Version: "dev", CommitHash: "abc", BuildTime: "now"}
	assert.Equal(t, "metagen dev (commit abc, built now)", dev.String())

	tagged := Info{Version: "v0.3.0", CommitHash: "0123456789", BuildTime: "2026-10-01"}
	assert.Equal(t, "metagen v0.3.0 (commit 0123456789, built 2026-10-01)", tagged.String())
	assert.Equal(t, "0123456", tagged.Short())
	assert.Equal(t, "abc", dev.Short())
}
