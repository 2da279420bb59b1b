// Package browser presents authorization URLs to the user.
package browser

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// Opener shows url to the user, typically in a new browser window.
// It returns once the URL has been handed off, not when the user finishes.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// System opens URLs with the platform's default browser.
type System struct{}

func (System) Open(url string) error {
	name, args := command(runtime.GOOS)
	if name == "" {
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	cmd := exec.Command(name, append(args, url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func command(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", nil
	default:
		return "", nil
	}
}

// Print writes the URL for the user to open by hand.
type Print struct {
	W io.Writer
}

func (p Print) Open(url string) error {
	_, err := fmt.Fprintf(p.W, "Open this URL in your browser to continue:\n\n  %s\n\n", url)
	return err
}

// Fallback tries each opener in order until one succeeds.
type Fallback []Opener

func (f Fallback) Open(url string) error {
	var lastErr error
	for _, o := range f {
		if err := o.Open(url); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no opener configured")
	}
	return lastErr
}
