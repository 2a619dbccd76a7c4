package extract

import (
	"errors"
	"unicode/utf8"
)

var errNotUTF8 = errors.New("content is not valid UTF-8")

// TextExtractor decodes plain text formats as UTF-8.
type TextExtractor struct{}

func (TextExtractor) Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errNotUTF8
	}
	return string(data), nil
}
