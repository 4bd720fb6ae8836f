// Package source turns request inputs (stored references, inline base64 and
// URLs) into files in the asset area.
package source

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput marks request data that cannot be used as given
	ErrInvalidInput = errors.New("invalid input")
)

// DecodeBase64 decodes inline file data. A data URI prefix such as
// "data:audio/mp3;base64," is dropped up to the first comma.
func DecodeBase64(encoded string) ([]byte, error) {
	if _, payload, found := strings.Cut(encoded, ","); found {
		encoded = payload
	}
	encoded = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, encoded)

	if encoded == "" {
		return nil, fmt.Errorf("%w: empty base64 data", ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// unpadded payloads are common from browsers
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: invalid base64 data: %v", ErrInvalidInput, err)
		}
		data = raw
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty base64 data", ErrInvalidInput)
	}
	return data, nil
}
