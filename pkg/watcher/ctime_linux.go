//go:build linux

package watcher

import (
	"os"
	"syscall"
	"time"
)

// createdTime returns the inode change time, the closest thing Linux offers
// to a creation timestamp.
func createdTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
