// Package clipboard reads and writes plain text on the system clipboard.
package clipboard

import (
	"errors"

	"github.com/wailsapp/wails/v3/pkg/application"
)

var (
	ErrNoApp  = errors.New("clipboard: application not initialized")
	ErrAccess = errors.New("clipboard: access failed")
)

// GetText returns the clipboard text.
func GetText(app *application.App) (string, error) {
	if app == nil {
		return "", ErrNoApp
	}
	text, ok := app.Clipboard.Text()
	if !ok {
		return "", ErrAccess
	}
	return text, nil
}

// SetText replaces the clipboard contents with text.
func SetText(app *application.App, text string) error {
	if app == nil {
		return ErrNoApp
	}
	if !app.Clipboard.SetText(text) {
		return ErrAccess
	}
	return nil
}
