//go:build linux

package usbreset

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// _IO('U', 20) from linux/usbdevice_fs.h
const usbdevfsReset = 0x5514

func reset(path string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)
	if err := unix.IoctlSetInt(fd, usbdevfsReset, 0); err != nil {
		return fmt.Errorf("reset %s: %w", path, err)
	}
	return nil
}
