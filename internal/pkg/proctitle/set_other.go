//go:build !linux

package proctitle

// Set only rewrites os.Args[0] on platforms without PR_SET_NAME.
func Set(title string) error {
	if title = Format(title); title != "" {
		rewriteArgv0(title)
	}
	return nil
}
