package rofat

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var ErrCharacterNotEncodable = errors.New("character cannot be encoded in the code page")

// CodePage transliterates between Unicode and the 8 bit characters of short names.
type CodePage interface {
	Encode(r rune) (byte, error)
	Decode(b byte) rune
	Uppercase(r rune) rune
}

// ASCII only knows the 7 bit ASCII characters. It is the default code page.
var ASCII CodePage = asciiCodePage{}

type asciiCodePage struct{}

func (asciiCodePage) Encode(r rune) (byte, error) {
	if r < 0 || r >= utf8.RuneSelf {
		return 0, fmt.Errorf("%w: %q", ErrCharacterNotEncodable, r)
	}
	return byte(r), nil
}

func (asciiCodePage) Decode(b byte) rune {
	if b >= utf8.RuneSelf {
		return utf8.RuneError
	}
	return rune(b)
}

func (asciiCodePage) Uppercase(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}

// CharmapCodePage is an OEM code page backed by a charmap of golang.org/x/text.
type CharmapCodePage struct {
	cm *charmap.Charmap
}

func NewCharmapCodePage(cm *charmap.Charmap) *CharmapCodePage {
	return &CharmapCodePage{cm: cm}
}

func (c *CharmapCodePage) Encode(r rune) (byte, error) {
	b, ok := c.cm.EncodeRune(r)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrCharacterNotEncodable, r)
	}
	return b, nil
}

func (c *CharmapCodePage) Decode(b byte) rune {
	return c.cm.DecodeByte(b)
}

// Uppercase keeps the character as it is if its upper case form is not part of the code page.
func (c *CharmapCodePage) Uppercase(r rune) rune {
	upper := unicode.ToUpper(r)
	if _, ok := c.cm.EncodeRune(upper); !ok {
		return r
	}
	return upper
}

// CodePageByName resolves the names accepted on the command line.
func CodePageByName(name string) (CodePage, error) {
	switch strings.TrimPrefix(strings.ToLower(name), "cp") {
	case "", "ascii":
		return ASCII, nil
	case "437":
		return NewCharmapCodePage(charmap.CodePage437), nil
	case "850":
		return NewCharmapCodePage(charmap.CodePage850), nil
	case "852":
		return NewCharmapCodePage(charmap.CodePage852), nil
	case "866":
		return NewCharmapCodePage(charmap.CodePage866), nil
	case "1252":
		return NewCharmapCodePage(charmap.Windows1252), nil
	default:
		return nil, fmt.Errorf("unknown code page %q", name)
	}
}
