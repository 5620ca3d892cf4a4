package cli

import (
	"errors"
	"sort"
	"strings"

	"github.com/ncruces/zenity"

	"github.com/fpang/gemini-vogue/internal/media"
)

// ErrPickerCanceled is returned when the user dismisses the file dialog.
var ErrPickerCanceled = errors.New("no file selected")

// PickPhoto opens the native file dialog filtered to supported image types.
func PickPhoto() (string, error) {
	var patterns []string
	for ext := range media.SupportedImageExtensions {
		patterns = append(patterns, "*"+ext)
	}
	sort.Strings(patterns)

	path, err := zenity.SelectFile(
		zenity.Title("Select a photo"),
		zenity.FileFilters{
			{Name: "Images (" + strings.Join(patterns, ", ") + ")", Patterns: patterns},
		},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrPickerCanceled
	}
	return path, err
}
