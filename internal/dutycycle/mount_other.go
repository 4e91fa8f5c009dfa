//go:build !linux

package dutycycle

import "os"

// IsMountPoint reports whether path exists as a directory. Hosts other than
// Linux have no cheap device check, so any directory counts as a drive.
func IsMountPoint(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
