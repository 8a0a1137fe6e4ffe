package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminPassword(t *testing.T) {
	t.Run("environment wins", func(t *testing.T) {
		t.Setenv(adminPasswordEnv, "from-env")
		pw, err := adminPassword(strings.NewReader("from-stdin\n"))
		require.NoError(t, err)
		assert.Equal(t, "from-env", pw)
	})

	t.Run("first stdin line", func(t *testing.T) {
		t.Setenv(adminPasswordEnv, "")
		pw, err := adminPassword(strings.NewReader("s3cret\r\nignored\n"))
		require.NoError(t, err)
		assert.Equal(t, "s3cret", pw)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(adminPasswordEnv, "")
		_, err := adminPassword(strings.NewReader(""))
		assert.Error(t, err)
	})
}
