//go:build !unix

package sqlite

import "errors"

func freeBytes(string) (int64, error) {
	return 0, errors.New("filesystem statistics not supported on this platform")
}
