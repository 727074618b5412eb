package cmd

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openInBrowser hands path to the platform's default opener.
func openInBrowser(path string) error {
	name, args := openerCommand(runtime.GOOS, path)
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("no opener found (%s); open %s manually", name, path)
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func openerCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}
	default:
		return "xdg-open", []string{path}
	}
}
