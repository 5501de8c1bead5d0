package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("TEST_INTERVIEW_SECRET", " from-env \n")

	tests := []struct {
		name string
		src  Source
		want string
	}{
		{name: "file wins", src: Source{File: writeSecret(t, "from-file\n"), Value: "from-value", Env: "TEST_INTERVIEW_SECRET"}, want: "from-file"},
		{name: "value over env", src: Source{Value: "  from-value ", Env: "TEST_INTERVIEW_SECRET"}, want: "from-value"},
		{name: "env fallback", src: Source{Env: "TEST_INTERVIEW_SECRET"}, want: "from-env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("TEST_INTERVIEW_EMPTY", "")

	tests := []struct {
		name string
		src  Source
		want string
	}{
		{name: "nothing configured", src: Source{Name: "api key"}, want: "api key is not configured"},
		{name: "default name", src: Source{}, want: "secret is not configured"},
		{name: "empty env", src: Source{Name: "api key", Env: "TEST_INTERVIEW_EMPTY"}, want: "api key is not configured (checked TEST_INTERVIEW_EMPTY)"},
		{name: "empty file", src: Source{Name: "api key", File: writeSecret(t, " \n"), Value: "ignored"}, want: "is empty"},
		{name: "missing file", src: Source{Name: "api key", File: filepath.Join(t.TempDir(), "absent")}, want: "reading api key from file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
