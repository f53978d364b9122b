//go:build !darwin && !freebsd && !linux

package native

import "errors"

func openLibrary(string) (uintptr, error) {
	return 0, errors.New("loading a library by path is not supported on this platform")
}
