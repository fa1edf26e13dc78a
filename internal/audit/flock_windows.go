//go:build windows

package audit

import "os"

// Windows has no flock; the appender's in-process mutex still guards
// appends from a single gryt process.
func lockFile(_ *os.File) error   { return nil }
func unlockFile(_ *os.File) error { return nil }
