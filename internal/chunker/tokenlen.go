package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultTokenEncoding is the tiktoken encoding used when sizing chunks by
// tokens instead of runes.
const DefaultTokenEncoding = "cl100k_base"

// TokenLength returns a LengthFunc that measures text in tokens of the
// given tiktoken encoding.
func TokenLength(encoding string) (LengthFunc, error) {
	if encoding == "" {
		encoding = DefaultTokenEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %q: %w", encoding, err)
	}

	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}, nil
}
