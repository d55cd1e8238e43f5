//go:build !linux

package usbreset

func reset(string) error {
	return ErrUnsupported
}
