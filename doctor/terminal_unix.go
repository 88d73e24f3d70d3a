//go:build !windows

package doctor

import "os/exec"

// resetTerminal restores cooked mode; evdev hotkey reads can leave the
// terminal echo off.
func resetTerminal() {
	exec.Command("stty", "sane").Run()
}
