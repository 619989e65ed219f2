package rofat

import (
	"errors"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/cases"

	"github.com/aligator/rofat/checkpoint"
)

// These errors may occur while building a long name from a string.
var (
	ErrLongNameInvalid = errors.New("long name contains an invalid character")
	ErrLongNameLength  = errors.New("long name must have between 1 and 255 characters")
)

const (
	longNameMaxLen         = 255
	longNameCharsPerEntry  = 13
	longNameMaxEntries     = 20
	longNamePadding        = 0xFFFF
	longNameLastEntryFlag  = 0x40
	longNameSequenceMask   = 0x3F
	surrogateFirst         = 0xD800
	surrogateLast          = 0xDFFF
	longNameForbiddenChars = "\"*/:<>?\\|"
)

// LongFileName is a VFAT name of up to 255 UCS-2 code units.
// Unused units are 0.
type LongFileName struct {
	units [longNameMaxLen]uint16
}

func isSurrogate(u uint16) bool {
	return u >= surrogateFirst && u <= surrogateLast
}

// ParseLongFileName builds the long name for the given string.
// Characters outside of the basic multilingual plane cannot be represented.
func ParseLongFileName(name string) (*LongFileName, error) {
	var n LongFileName
	i := 0
	for _, r := range name {
		if i >= longNameMaxLen {
			return nil, ErrLongNameLength
		}
		if r < 0x20 || r > 0xFFFF || isSurrogate(uint16(r)) || strings.ContainsRune(longNameForbiddenChars, r) {
			return nil, checkpoint.Wrap(&CharacterError{Character: uint16(r), Offset: i}, ErrLongNameInvalid)
		}
		n.units[i] = uint16(r)
		i++
	}
	if i == 0 {
		return nil, ErrLongNameLength
	}
	return &n, nil
}

// Len returns the count of code units before the first null.
func (n *LongFileName) Len() int {
	for i, u := range n.units {
		if u == 0 {
			return i
		}
	}
	return longNameMaxLen
}

// Units returns the code units of the name without the trailing nulls.
func (n *LongFileName) Units() []uint16 {
	return n.units[:n.Len()]
}

func (n *LongFileName) String() string {
	return string(utf16.Decode(n.Units()))
}

// EqualFold compares the name with s using Unicode case folding.
func (n *LongFileName) EqualFold(s string) bool {
	fold := cases.Fold()
	return fold.String(n.String()) == fold.String(s)
}

// Entries creates the long name entries for this name in the order they are stored:
// the entry with the highest sequence number comes first.
func (n *LongFileName) Entries(checksum uint8) []LongNameEntry {
	length := n.Len()
	count := (length + longNameCharsPerEntry - 1) / longNameCharsPerEntry

	entries := make([]LongNameEntry, count)
	for seq := 1; seq <= count; seq++ {
		e := LongNameEntry{Order: uint8(seq), Checksum: checksum}
		if seq == count {
			e.Order |= longNameLastEntryFlag
		}

		for i := range e.Chars {
			pos := (seq-1)*longNameCharsPerEntry + i
			switch {
			case pos < length:
				e.Chars[i] = n.units[pos]
			case pos == length:
				e.Chars[i] = 0
			default:
				e.Chars[i] = longNamePadding
			}
		}
		entries[count-seq] = e
	}
	return entries
}
