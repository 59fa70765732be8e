//go:build !(linux || darwin || freebsd)

package staging

import "errors"

func realStatfs(string) (uint64, uint64, error) {
	return 0, 0, errors.New("statfs not supported on this platform")
}
