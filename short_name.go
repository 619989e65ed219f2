package rofat

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aligator/rofat/checkpoint"
)

// These errors may occur while building or decoding a short name.
var (
	ErrShortNameInvalid          = errors.New("short name contains an invalid character")
	ErrShortNameTooLong          = errors.New("short name is longer than 8 characters")
	ErrShortNameExtensionTooLong = errors.New("short name extension is longer than 3 characters")
)

const (
	shortNameBaseLen      = 8
	shortNameExtensionLen = 3
	shortNameLen          = shortNameBaseLen + shortNameExtensionLen

	// A stored 0x05 stands for a leading 0xE5 which itself marks free entries.
	shortNameE5Escape = 0x05
	freeEntryMarker   = 0xE5
)

// ShortFileName is an 8.3 name as the 11 space padded bytes of the directory entry.
// The 0x05 escape of the first byte is already resolved.
type ShortFileName [shortNameLen]byte

func invalidShortNameByte(b byte, index int) bool {
	switch {
	case b < 0x20:
		return true
	case b == ' ':
		return index == 0
	case b == '"', b == '/', b == '|':
		return true
	case b >= '*' && b <= ',':
		return true
	case b >= ':' && b <= '?':
		return true
	case b >= '[' && b <= ']':
		return true
	}
	return false
}

// decodeShortFileName reads the name bytes of a directory entry.
func decodeShortFileName(raw []byte) (ShortFileName, error) {
	var name ShortFileName
	copy(name[:], raw[:shortNameLen])
	if name[0] == shortNameE5Escape {
		name[0] = freeEntryMarker
	}

	if err := name.validate(); err != nil {
		return ShortFileName{}, err
	}
	return name, nil
}

func (n ShortFileName) validate() error {
	for i, b := range n {
		if invalidShortNameByte(b, i) {
			return checkpoint.Wrap(&CharacterError{Character: uint16(b), Offset: i}, ErrShortNameInvalid)
		}
	}
	return nil
}

// encode writes the name bytes as they are stored on disk.
func (n ShortFileName) encode(raw []byte) {
	copy(raw, n[:])
	if n[0] == freeEntryMarker {
		raw[0] = shortNameE5Escape
	}
}

// ParseShortFileName builds the 8.3 name for the given string.
// The name is split at its first dot, upper cased and encoded with the code page.
func ParseShortFileName(name string, cp CodePage) (ShortFileName, error) {
	base, ext, _ := strings.Cut(name, ".")
	if utf8.RuneCountInString(base) > shortNameBaseLen {
		return ShortFileName{}, ErrShortNameTooLong
	}
	if utf8.RuneCountInString(ext) > shortNameExtensionLen {
		return ShortFileName{}, ErrShortNameExtensionTooLong
	}

	result := ShortFileName{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
	if err := encodeShortNamePart(result[:shortNameBaseLen], base, cp, 0); err != nil {
		return ShortFileName{}, err
	}
	if err := encodeShortNamePart(result[shortNameBaseLen:], ext, cp, len(base)+1); err != nil {
		return ShortFileName{}, err
	}

	if err := result.validate(); err != nil {
		return ShortFileName{}, err
	}
	return result, nil
}

func encodeShortNamePart(dst []byte, part string, cp CodePage, offset int) error {
	i := 0
	for pos, r := range part {
		b, err := cp.Encode(cp.Uppercase(r))
		if err != nil {
			return checkpoint.Wrap(err, &CharacterError{Character: uint16(r), Offset: offset + pos})
		}
		dst[i] = b
		i++
	}
	return nil
}

// Checksum is the value every long name entry of this item has to carry.
func (n ShortFileName) Checksum() uint8 {
	var sum uint8
	for _, b := range n {
		sum = (sum>>1 | sum<<7) + b
	}
	return sum
}

// Base returns the name without padding.
func (n ShortFileName) Base() []byte {
	return trimSpaces(n[:shortNameBaseLen])
}

// Extension returns the extension without padding.
func (n ShortFileName) Extension() []byte {
	return trimSpaces(n[shortNameBaseLen:])
}

func trimSpaces(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return b[:end]
}

// IsDot reports whether this is the "." or ".." entry of a subdirectory.
func (n ShortFileName) IsDot() bool {
	return n == ShortFileName{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '} ||
		n == ShortFileName{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
}

// Format renders the name like "NAME.EXT". The lower flags are the case
// hints some systems store for names which are entirely lower case.
func (n ShortFileName) Format(cp CodePage, lowerBase, lowerExt bool) string {
	var sb strings.Builder
	writePart := func(part []byte, lower bool) {
		for _, b := range part {
			r := cp.Decode(b)
			if lower {
				r = unicode.ToLower(r)
			}
			sb.WriteRune(r)
		}
	}

	writePart(n.Base(), lowerBase)
	if ext := n.Extension(); len(ext) > 0 {
		sb.WriteByte('.')
		writePart(ext, lowerExt)
	}
	return sb.String()
}

// Label renders all 11 bytes without a dot, as used by volume label entries.
func (n ShortFileName) Label(cp CodePage) string {
	var sb strings.Builder
	for _, b := range trimSpaces(n[:]) {
		sb.WriteRune(cp.Decode(b))
	}
	return sb.String()
}

func (n ShortFileName) String() string {
	return n.Format(ASCII, false, false)
}
