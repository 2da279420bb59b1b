package browser

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos     string
		wantName string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"windows", "rundll32"},
		{"plan9", ""},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, _ := command(tt.goos)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print{W: &buf}.Open("https://accounts.example.com/auth?x=1"))
	assert.Contains(t, buf.String(), "https://accounts.example.com/auth?x=1")
}

func TestFallback(t *testing.T) {
	var opened []string
	failing := OpenerFunc(func(string) error { return errors.New("no display") })
	recording := OpenerFunc(func(u string) error {
		opened = append(opened, u)
		return nil
	})

	require.NoError(t, Fallback{failing, recording}.Open("https://x"))
	assert.Equal(t, []string{"https://x"}, opened)

	err := Fallback{failing}.Open("https://x")
	assert.EqualError(t, err, "no display")

	assert.Error(t, Fallback{}.Open("https://x"))
}
