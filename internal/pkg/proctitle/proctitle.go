// Package proctitle names the server process after its role and environment.
package proctitle

import (
	"os"
	"strings"
)

// Name returns the title for a notes server running in env.
func Name(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" || env == "production" {
		return "notes-server"
	}
	return "notes-" + env
}

// Format collapses whitespace so the title survives truncation intact.
func Format(title string) string {
	return strings.Join(strings.Fields(title), "-")
}

func rewriteArgv0(title string) {
	if len(os.Args) > 0 {
		os.Args[0] = title
	}
}
