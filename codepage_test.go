package rofat

import (
	"errors"
	"testing"
	"unicode/utf8"
)

func TestASCII(t *testing.T) {
	if b, err := ASCII.Encode('A'); err != nil || b != 'A' {
		t.Errorf("Encode('A') = %#x, %v", b, err)
	}
	if _, err := ASCII.Encode('é'); !errors.Is(err, ErrCharacterNotEncodable) {
		t.Errorf("Encode('é') error = %v, want ErrCharacterNotEncodable", err)
	}
	if r := ASCII.Decode(0xE5); r != utf8.RuneError {
		t.Errorf("Decode(0xE5) = %q, want the replacement character", r)
	}
	if r := ASCII.Uppercase('z'); r != 'Z' {
		t.Errorf("Uppercase('z') = %q", r)
	}
	if r := ASCII.Uppercase('é'); r != 'é' {
		t.Errorf("Uppercase('é') = %q, want it unchanged", r)
	}
}

func TestCodePageByName(t *testing.T) {
	tests := []struct {
		name    string
		decode  byte
		want    rune
		wantErr bool
	}{
		{name: "", decode: 'a', want: 'a'},
		{name: "ascii", decode: 'a', want: 'a'},
		{name: "437", decode: 0x81, want: 'ü'},
		{name: "CP437", decode: 0xE1, want: 'ß'},
		{name: "cp850", decode: 0x9D, want: 'Ø'},
		{name: "852", decode: 0x9F, want: 'č'},
		{name: "866", decode: 0x80, want: 'А'},
		{name: "1252", decode: 0x80, want: '€'},
		{name: "ebcdic", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp, err := CodePageByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CodePageByName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := cp.Decode(tt.decode); got != tt.want {
				t.Errorf("Decode(%#x) = %q, want %q", tt.decode, got, tt.want)
			}
		})
	}
}

func TestCharmapCodePage_Uppercase(t *testing.T) {
	cp, err := CodePageByName("437")
	if err != nil {
		t.Fatal(err)
	}

	if got := cp.Uppercase('ä'); got != 'Ä' {
		t.Errorf("Uppercase('ä') = %q, want 'Ä'", got)
	}
	// The upper case form of á is not part of code page 437.
	if got := cp.Uppercase('á'); got != 'á' {
		t.Errorf("Uppercase('á') = %q, want it unchanged", got)
	}
	if _, err := cp.Encode('€'); !errors.Is(err, ErrCharacterNotEncodable) {
		t.Errorf("Encode('€') error = %v, want ErrCharacterNotEncodable", err)
	}
}
