package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
		settings  map[string]string
		want      VersionInfo
	}{
		{
			name:      "release build",
			version:   "v1.4.0",
			commit:    "0123456789abcdef",
			buildDate: "2026-03-01T10:00:00Z",
			settings:  map[string]string{"vcs.revision": "ignored"},
			want: VersionInfo{
				Version:   "v1.4.0",
				Commit:    "0123456789abcdef",
				BuildDate: "2026-03-01 10:00:00 UTC",
				Release:   true,
			},
		},
		{
			name:      "dev build reads vcs settings",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			settings:  map[string]string{"vcs.revision": "abcdef0123456789", "vcs.time": "2026-01-02T03:04:05Z"},
			want: VersionInfo{
				Version:   "build-abcdef01",
				Commit:    "abcdef0123456789",
				BuildDate: "2026-01-02 03:04:05 UTC",
			},
		},
		{
			name:      "dev build without vcs",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			settings:  map[string]string{},
			want: VersionInfo{
				Version:   "build-unknown",
				Commit:    unknownStr,
				BuildDate: unknownStr,
			},
		},
		{
			name:      "prerelease",
			version:   "1.5.0-rc.1",
			commit:    "c0ffee",
			buildDate: "yesterday",
			want: VersionInfo{
				Version:   "1.5.0-rc.1",
				Commit:    "c0ffee",
				BuildDate: "yesterday",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := versionInfo(tt.version, tt.commit, tt.buildDate, tt.settings)
			tt.want.GoVersion = runtime.Version()
			tt.want.Platform = runtime.GOOS + "/" + runtime.GOARCH
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRelease(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"1.0.0":         true,
		"v2.3.4":        true,
		"1.0.0-alpha":   false,
		"build-abcdef0": false,
		"1.0":           false,
		"":              false,
	}

	for in, want := range tests {
		assert.Equal(t, want, IsRelease(in), in)
	}
}
