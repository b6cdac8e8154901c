package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultLogSubdir = "logs"

// baseDir anchors relative runtime paths: the directory of the resolved
// executable, else the working directory.
func baseDir() string {
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// runtimePath resolves a configured directory, falling back to sub under baseDir.
func runtimePath(configured, sub string) string {
	p := strings.TrimSpace(configured)
	if p == "" {
		p = sub
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir(), p)
}

// LogDir is where daily log files are written.
func (c *AppConfig) LogDir() string {
	if c == nil {
		return runtimePath("", defaultLogSubdir)
	}
	return runtimePath(c.Paths.Logs, defaultLogSubdir)
}
