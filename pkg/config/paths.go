package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName is the directory name used below the XDG base directories.
const AppName = "automagic"

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, AppName, "automagic.db")
}

// DefaultSocketPath prefers the per-user runtime directory and falls back to
// the system temp directory when it is not usable.
func DefaultSocketPath() string {
	if fi, err := os.Stat(xdg.RuntimeDir); err == nil && fi.IsDir() {
		return filepath.Join(xdg.RuntimeDir, "automagic.sock")
	}
	return filepath.Join(os.TempDir(), "automagic.sock")
}
