//go:build windows

package config

import (
	"os"

	"golang.org/x/sys/windows"
	"golang.org/x/term"
)

const enableVirtualTerminalProcessing uint32 = 0x4

// EnableColorOutput reports whether stream is a console able to render
// escape sequences. On Windows 10 and later VT processing is switched on for
// the console as a side effect.
func EnableColorOutput(stream *os.File) bool {
	if ver := windows.RtlGetVersion(); ver == nil || ver.MajorVersion < 10 {
		return false
	}
	fd := stream.Fd()
	if !term.IsTerminal(int(fd)) {
		return false
	}
	var mode uint32
	if windows.GetConsoleMode(windows.Handle(fd), &mode) != nil {
		return false
	}
	return windows.SetConsoleMode(windows.Handle(fd), mode|enableVirtualTerminalProcessing) == nil
}
