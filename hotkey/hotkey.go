// Package hotkey listens for the global Ctrl+Shift+Space combination and
// turns it into gesture input for the recorder.
package hotkey

// Combo is the key combination every backend listens for.
const Combo = "Ctrl+Shift+Space"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
