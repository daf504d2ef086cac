// Package clipboard provides platform-specific clipboard operations.
package clipboard

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// tool is a clipboard command that reads the text to copy from stdin.
type tool struct {
	name string
	args []string
}

var toolsByOS = map[string][]tool{
	"linux": {
		{"wl-copy", nil},                               // Wayland
		{"xclip", []string{"-selection", "clipboard"}}, // X11
		{"xsel", []string{"--clipboard", "--input"}},   // X11 alternative
	},
	"darwin":  {{"pbcopy", nil}},
	"windows": {{"clip", nil}},
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// CopyText copies plain text to the system clipboard using the first
// available tool for the platform.
func CopyText(text string) error {
	tools, ok := toolsByOS[runtime.GOOS]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	var tried []string
	for _, t := range tools {
		tried = append(tried, t.name)
		path, err := lookPath(t.name)
		if err != nil {
			continue
		}
		cmd := exec.Command(path, t.args...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no suitable clipboard tool found (tried: %s)", strings.Join(tried, ", "))
}
