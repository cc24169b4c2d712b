// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauth/pauth/pkg/errutil"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/pauth", ConfigDir())
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	assert.Equal(t, "/home/testuser/.config/pauth", ConfigDir())
}

func TestDefaultConfigFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		path, err := DefaultConfigFile()
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("existing file", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		want := filepath.Join(base, "pauth", ConfigFileName)
		require.NoError(t, os.MkdirAll(filepath.Dir(want), 0o700))
		require.NoError(t, os.WriteFile(want, []byte("log:\n  level: debug\n"), 0o600))

		path, err := DefaultConfigFile()
		require.NoError(t, err)
		assert.Equal(t, want, path)
	})

	t.Run("directory in the way", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		require.NoError(t, os.MkdirAll(filepath.Join(base, "pauth", ConfigFileName), 0o700))

		_, err := DefaultConfigFile()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_LOOKUP_FAILED")
	})
}
