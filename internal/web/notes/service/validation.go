package service

import (
	"strings"
	"unicode/utf8"

	"github.com/Laisky/errors/v2"

	"github.com/lovewall/love-wall/internal/web/notes/model"
)

// sanitizeText trims text and rejects empty or NUL-containing input.
// maxLen caps the rune count when positive; zero means no limit.
func sanitizeText(input string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.Wrap(model.ErrInvalidInput, "text is required")
	}
	if strings.ContainsRune(trimmed, '\x00') {
		return "", errors.Wrap(model.ErrInvalidInput, "text contains invalid null byte")
	}
	if maxLen > 0 && utf8.RuneCountInString(trimmed) > maxLen {
		return "", errors.Wrapf(model.ErrInvalidInput, "text exceeds max length %d", maxLen)
	}
	return trimmed, nil
}

// sanitizeImageURL trims the link. Blank means no image. The value is
// stored verbatim and never fetched.
func sanitizeImageURL(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if strings.ContainsRune(trimmed, '\x00') {
		return "", errors.Wrap(model.ErrInvalidInput, "imageUrl contains invalid null byte")
	}
	return trimmed, nil
}

// sanitizeID trims a note id and rejects blank input.
func sanitizeID(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.Wrap(model.ErrInvalidInput, "id is required")
	}
	return trimmed, nil
}
