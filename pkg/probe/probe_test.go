package probe

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	t.Setenv("LANG", "de_DE.UTF-8")

	info := Collect()
	assert.Equal(t, "go", info.Platform)
	assert.Equal(t, "Go Client", info.Name)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, "de_DE.UTF-8", info.Language)
	assert.NotEmpty(t, info.OSVersion)
	assert.Equal(t, info.ID, info.UserAgent)
	assert.True(t, strings.HasPrefix(info.ID, "Go/"))
	assert.True(t, strings.HasSuffix(info.ID, "("+runtime.GOOS+")"))
	assert.Regexp(t, `^[+-]\d{2}:\d{2}$`, info.TimeZone)
}

func TestCollect_DefaultLanguage(t *testing.T) {
	t.Setenv("LANG", "")
	assert.Equal(t, "en-US", Collect().Language)
}

func TestCurrentClientInfo_Stable(t *testing.T) {
	first := CurrentClientInfo()
	assert.Equal(t, first, CurrentClientInfo())
}
