//go:build !linux

package watcher

import (
	"os"
	"time"
)

func createdTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
