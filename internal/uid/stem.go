package uid

import (
	"crypto/rand"
	"fmt"
	"io"
)

// StemGenerator mints fresh stems for new version families.
type StemGenerator interface {
	NewStem() (string, error)
}

// RandomStems draws stems uniformly from the alphabet using crypto/rand.
//
// Thread-safety: RandomStems is stateless and safe for concurrent use.
type RandomStems struct {
	// Reader overrides the entropy source. Defaults to crypto/rand.Reader.
	Reader io.Reader
}

// NewStem returns a new random 12-character stem.
func (g RandomStems) NewStem() (string, error) {
	r := g.Reader
	if r == nil {
		r = rand.Reader
	}

	// 248 = 4*62; bytes at or above it are rejected to keep the draw uniform.
	const limit = 4 * len(Alphabet)
	out := make([]byte, 0, StemLength)
	buf := make([]byte, StemLength*2)
	for len(out) < StemLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("new stem: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == StemLength {
				break
			}
		}
	}
	return string(out), nil
}
