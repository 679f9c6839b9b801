package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, v, commit string) {
	t.Helper()
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })
	Version, Commit = v, commit
}

func TestFull(t *testing.T) {
	tests := []struct {
		version, commit, want string
	}{
		{"dev", "abc1234", "slotbook version dev (built from source)"},
		{"1.2.3", "none", "slotbook version 1.2.3"},
		{"1.2.3", "", "slotbook version 1.2.3"},
		{"1.2.3", "abc1234", "slotbook version 1.2.3 (abc1234)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			stamp(t, tt.version, tt.commit)
			assert.Equal(t, tt.want, Full())
			assert.Equal(t, tt.version == "dev", IsDev())
		})
	}
}

func TestUserAgent(t *testing.T) {
	stamp(t, "0.4.0", "none")
	assert.Equal(t, "slotbook-cli/0.4.0 ("+runtime.GOOS+"/"+runtime.GOARCH+")", UserAgent())
}
