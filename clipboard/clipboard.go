package clipboard

import (
	"fmt"

	cb "github.com/atotto/clipboard"
)

// Available reports whether a system clipboard backend was found
// (xclip, xsel or wl-copy on linux).
func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	if !Available() {
		return fmt.Errorf("no clipboard backend available")
	}
	return cb.WriteAll(text)
}
