// Package usbreset power cycles a stuck USB reader through usbfs.
package usbreset

import "errors"

var ErrUnsupported = errors.New("usb reset is only supported on linux")

// Reset issues USBDEVFS_RESET on a usbfs node such as
// /dev/bus/usb/001/004. The device re-enumerates and the PC/SC daemon
// picks it up again.
func Reset(path string) error {
	return reset(path)
}
