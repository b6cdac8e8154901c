//go:build linux

package proctitle

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// commLen is the size of the kernel comm field including the trailing NUL.
const commLen = 16

// Set renames the process as shown by ps and top.
func Set(title string) error {
	title = Format(title)
	if title == "" {
		return nil
	}
	rewriteArgv0(title)

	comm := make([]byte, commLen)
	copy(comm[:commLen-1], title)
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&comm[0])), 0, 0, 0); err != nil {
		return fmt.Errorf("prctl PR_SET_NAME: %w", err)
	}
	return nil
}
