//go:build windows

package host

import "github.com/pkg/errors"

// SetRawIO has no termios equivalent on Windows in this reference
// backend; osrdch/oskey fall back to line-buffered reads there.
func SetRawIO() (func(), error) {
	return nil, errors.New("host: raw IO not supported on windows")
}
