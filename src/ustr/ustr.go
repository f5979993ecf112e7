// Package ustr provides the fixed-width, NUL-padded file name type the
// FAT filesystem stores in each 32-byte entry. Adapted from biscuit's
// ustr.Ustr (kept: the immutable-byte-slice shape, Eq, String, NUL-trim
// via MkUstrSlice; dropped: Extend/ExtendStr/IsAbsolute/Isdot — path
// manipulation has no caller, since this filesystem has a flat
// namespace of at most Name-width bytes, not a directory tree).
package ustr

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"unicode"
)

/// Width is the fixed size in bytes of a FAT entry's name field.
const Width = 16

/// Name is a NUL-padded, fixed-width file name.
type Name [Width]byte

/// MkName builds a Name from a byte slice, truncating at Width and
/// zero-padding any remainder, biscuit's MkUstrSlice NUL-trim idiom run
/// in reverse (pad instead of trim) since the on-disk field is fixed
/// width rather than length-prefixed.
func MkName(raw []byte) Name {
	var n Name
	copy(n[:], raw)
	return n
}

/// FromTrimmed builds a Name from a NUL-terminated byte slice, matching
/// biscuit's MkUstrSlice: truncate at the first NUL byte, then pad.
func FromTrimmed(buf []byte) Name {
	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}
	return MkName(buf[:end])
}

/// Eq compares two names for byte equality, biscuit's Ustr.Eq.
func (n Name) Eq(o Name) bool {
	return n == o
}

/// Empty reports whether byte 0 of the name is NUL, the FAT entry
/// free-slot marker per spec.md §3: "An entry is free iff byte 0 is 0."
func (n Name) Empty() bool {
	return n[0] == 0
}

/// String trims trailing NUL padding and renders the name as a Go
/// string, biscuit's Ustr.String generalized to a fixed-width array.
func (n Name) String() string {
	end := len(n)
	for end > 0 && n[end-1] == 0 {
		end--
	}
	return string(n[:end])
}

// stripNonASCII is the x/text/runes.Remove transformer used by Normalize: it
// drops everything that is not printable ASCII, since the on-disk name
// field has no encoding tag and the shell only accepts ASCII file names.
var stripNonASCII = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII || !unicode.IsPrint(r)
}))

/// Normalize folds an arbitrary host-provided string down to printable
/// ASCII and truncates it to Width bytes before building a Name,
/// using golang.org/x/text/transform + golang.org/x/text/runes the way
/// a hosted hygiene pass over user-supplied text would — the one place
/// in this package that benefits from a real text-processing library
/// instead of raw byte slicing, since folding must happen before
/// truncation or a multi-byte rune could be cut in half.
func Normalize(s string) (Name, bool) {
	out, _, err := transform.String(stripNonASCII, s)
	if err != nil {
		return Name{}, false
	}
	if len(out) > Width {
		out = out[:Width]
	}
	return MkName([]byte(out)), true
}
