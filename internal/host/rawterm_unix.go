//go:build !windows

package host

import (
	"syscall"

	"github.com/pkg/errors"
	"github.com/pkg/term/termios"
)

// SetRawIO switches stdin to raw, unbuffered, unechoed mode for
// osrdch/oskey single-keystroke reads, returning a function that
// restores the previous settings. Grounded on
// _examples/db47h-ngaro/cmd/retro/term_linux.go's setRawIO/restore
// shape.
func SetRawIO() (func(), error) {
	var tios syscall.Termios
	if err := termios.Tcgetattr(0, &tios); err != nil {
		return nil, errors.Wrap(err, "host: Tcgetattr failed")
	}
	a := tios
	a.Iflag &^= syscall.BRKINT | syscall.ISTRIP | syscall.IXON | syscall.IXOFF
	a.Iflag |= syscall.IGNBRK | syscall.IGNPAR
	a.Lflag &^= syscall.ICANON | syscall.ISIG | syscall.IEXTEN | syscall.ECHO
	a.Cc[syscall.VMIN] = 1
	a.Cc[syscall.VTIME] = 0
	if err := termios.Tcsetattr(0, termios.TCSANOW, &a); err != nil {
		termios.Tcsetattr(0, termios.TCSANOW, &tios)
		return nil, errors.Wrap(err, "host: Tcsetattr failed")
	}
	return func() {
		termios.Tcsetattr(0, termios.TCSANOW, &tios)
	}, nil
}
