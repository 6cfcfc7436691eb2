//go:build unix && !linux

package process

import (
	"errors"
	"syscall"
)

func groupAlive(pgid int) bool {
	err := syscall.Kill(-pgid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
