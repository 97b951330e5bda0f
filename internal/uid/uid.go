// Package uid encodes and decodes transform identifiers.
//
// A uid is a 12-character stem shared by every version of one logical
// transform, followed by a 4-character version suffix:
//
//	m5uCHTTpJnjQ 0000
//	└── stem ──┘ └sfx┘
//
// Both parts use the 62-symbol alphabet [0-9A-Za-z] of the record store.
// The suffix of a labelled version is derived from the label alone, so
// (stem, label) and uid are interchangeable.
package uid

import (
	"crypto/md5"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet is the base-62 symbol set, ordered by digit value.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	StemLength   = 12
	SuffixLength = 4
	Length       = StemLength + SuffixLength

	// InitialSuffix marks the first version of a family.
	InitialSuffix = "0000"

	// InitialLabel is the version label given to the first version of a
	// family created by this tool.
	InitialLabel = "1"
)

var (
	// ErrMalformed is wrapped by every parse/compose failure.
	ErrMalformed = errors.New("malformed identifier")

	// ErrNotNumeric is returned by NextNumeric for labels that are not
	// base-62 integers. Callers must ask for an explicit label instead.
	ErrNotNumeric = errors.New("version label is not numeric")
)

// UID is a full 16-character transform identifier.
type UID string

// Stem returns the 12-character family identifier.
func (u UID) Stem() string {
	return string(u)[:StemLength]
}

// Suffix returns the 4-character version suffix.
func (u UID) Suffix() string {
	return string(u)[StemLength:]
}

func (u UID) String() string {
	return string(u)
}

// DecodeSuffix derives the version suffix for a label: the MD5 digest of
// the label, re-encoded in base 62 and truncated to SuffixLength.
// Any string is a valid label.
func DecodeSuffix(label string) string {
	sum := md5.Sum([]byte(label))
	return encodeBytes(sum[:])[:SuffixLength]
}

// Compose joins a stem and a suffix into a uid.
func Compose(stem, suffix string) (UID, error) {
	if err := checkPart("stem", stem, StemLength); err != nil {
		return "", err
	}
	if err := checkPart("suffix", suffix, SuffixLength); err != nil {
		return "", err
	}
	return UID(stem + suffix), nil
}

// ComposeLabel is Compose(stem, DecodeSuffix(label)).
func ComposeLabel(stem, label string) (UID, error) {
	return Compose(stem, DecodeSuffix(label))
}

// Parse validates a full uid.
func Parse(s string) (UID, error) {
	if err := checkPart("uid", s, Length); err != nil {
		return "", err
	}
	return UID(s), nil
}

// Decompose splits a full uid into stem and suffix.
func Decompose(s string) (stem, suffix string, err error) {
	u, err := Parse(s)
	if err != nil {
		return "", "", err
	}
	return u.Stem(), u.Suffix(), nil
}

// IsStem reports whether s is a well-formed stem.
func IsStem(s string) bool {
	return checkPart("stem", s, StemLength) == nil
}

// IsPrefix reports whether s could be the prefix of a uid: non-empty, at
// most Length characters, all from the alphabet.
func IsPrefix(s string) bool {
	return s != "" && len(s) <= Length && inAlphabet(s)
}

// NextNumeric returns the label that follows current when current parses
// as a base-62 integer, keeping at least the original width ("0009" →
// "000A", "3" → "4", "z" → "10").
func NextNumeric(current string) (string, error) {
	if current == "" || !inAlphabet(current) {
		return "", fmt.Errorf("%w: %q", ErrNotNumeric, current)
	}
	n := new(big.Int)
	base := big.NewInt(int64(len(Alphabet)))
	for _, r := range current {
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(strings.IndexRune(Alphabet, r))))
	}
	n.Add(n, big.NewInt(1))

	next := encodeInt(n)
	if pad := len(current) - len(next); pad > 0 {
		next = strings.Repeat("0", pad) + next
	}
	return next, nil
}

func checkPart(what, s string, n int) error {
	if len(s) != n {
		return fmt.Errorf("%w: %s %q must be %d characters, got %d", ErrMalformed, what, s, n, len(s))
	}
	if !inAlphabet(s) {
		return fmt.Errorf("%w: %s %q contains characters outside [0-9A-Za-z]", ErrMalformed, what, s)
	}
	return nil
}

func inAlphabet(s string) bool {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// encodeBytes encodes b as a big-endian base-62 number. Each leading zero
// byte contributes a leading "0".
func encodeBytes(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}
	n := new(big.Int).SetBytes(b)
	if n.Sign() == 0 {
		return strings.Repeat("0", zeros)
	}
	return strings.Repeat("0", zeros) + encodeInt(n)
}

func encodeInt(n *big.Int) string {
	if n.Sign() == 0 {
		return "0"
	}
	base := big.NewInt(int64(len(Alphabet)))
	rem := new(big.Int)
	v := new(big.Int).Set(n)
	var out []byte
	for v.Sign() > 0 {
		v.QuoRem(v, base, rem)
		out = append(out, Alphabet[rem.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
