package rofat

import (
	"errors"
)

// These errors may occur while putting a directory item together.
var (
	ErrLongNameFirstEntryInvalid    = errors.New("first long name entry is not marked as the last one")
	ErrLongNameOrphaned             = errors.New("long name entries are not followed by their short name entry")
	ErrLongNameEntryNumberWrong     = errors.New("long name entry has an unexpected sequence number")
	ErrLongNameChecksumInconsistent = errors.New("long name entries carry different checksums")
	ErrLongNameCorrupted            = errors.New("long name continues after its terminator")
	ErrLongNameEmpty                = errors.New("long name is empty")
	ErrLongNameTooLong              = errors.New("long name exceeds 255 characters")
	ErrShortNameChecksumMismatch    = errors.New("long name checksum does not match the short name")
)

// DirectoryItem is a file or directory together with its optional long name.
type DirectoryItem struct {
	Short    *ShortNameEntry
	LongName *LongFileName
}

// Name returns the long name if there is one and the short name otherwise.
func (i *DirectoryItem) Name(cp CodePage) string {
	if i.LongName != nil {
		return i.LongName.String()
	}
	return i.Short.DisplayName(cp)
}

// Matches compares a single path component with the long name and then with the short name.
func (i *DirectoryItem) Matches(component string, cp CodePage) bool {
	if i.LongName != nil && i.LongName.EqualFold(component) {
		return true
	}

	short, err := ParseShortFileName(component, cp)
	return err == nil && short == i.Short.Name
}

// itemBuilder collects the long name entries preceding a short name entry.
type itemBuilder struct {
	name     LongFileName
	count    int
	checksum uint8
	seen     int
}

func (b *itemBuilder) reset() {
	*b = itemBuilder{}
}

func (b *itemBuilder) pending() bool {
	return b.seen > 0
}

func (b *itemBuilder) addLongNameEntry(e *LongNameEntry) error {
	if b.seen == 0 {
		if !e.IsLast() {
			return ErrLongNameFirstEntryInvalid
		}
		b.count = int(e.Sequence())
		b.checksum = e.Checksum
	} else if e.IsLast() {
		return ErrLongNameOrphaned
	}

	seq := int(e.Sequence())
	if seq != b.count-b.seen {
		return ErrLongNameEntryNumberWrong
	}
	if e.Checksum != b.checksum {
		return ErrLongNameChecksumInconsistent
	}

	// Only the entry holding the end of the name may contain the terminator.
	offset := (seq - 1) * longNameCharsPerEntry
	terminated := false
	for i, c := range e.Chars {
		pos := offset + i
		switch {
		case terminated:
			if c != longNamePadding {
				return ErrLongNameCorrupted
			}
			continue
		case c == 0:
			if b.seen != 0 {
				return ErrLongNameCorrupted
			}
			if pos == 0 {
				return ErrLongNameEmpty
			}
			terminated = true
			continue
		case pos >= longNameMaxLen:
			return ErrLongNameTooLong
		}
		b.name.units[pos] = c
	}

	b.seen++
	return nil
}

func (b *itemBuilder) build(short *ShortNameEntry) (*DirectoryItem, error) {
	if !b.pending() {
		return &DirectoryItem{Short: short}, nil
	}

	if b.seen != b.count {
		return nil, ErrLongNameOrphaned
	}
	if b.checksum != short.Name.Checksum() {
		return nil, ErrShortNameChecksumMismatch
	}

	name := b.name
	return &DirectoryItem{Short: short, LongName: &name}, nil
}

// ItemIterator reassembles directory items out of the raw records of a directory.
type ItemIterator struct {
	entries EntryIterator
	builder itemBuilder
	done    bool
}

func NewItemIterator(entries EntryIterator) *ItemIterator {
	return &ItemIterator{entries: entries}
}

// Next returns the next item or nil if the directory has no more items.
//
// Malformed records and broken long name chains are reported as errors, after
// which Next can be called again to continue with the following records.
// The record causing ErrLongNameOrphaned is not consumed because it may start
// the next item. An item whose short name does not match the checksum of its
// long name is returned on its own by the following call.
// I/O errors leave the position untouched.
func (it *ItemIterator) Next(s Stream) (*DirectoryItem, error) {
	if it.done {
		return nil, nil
	}

	it.builder.reset()
	for {
		entry, err := it.entries.Peek(s)
		if err != nil {
			if errors.Is(err, ErrReadDirectoryEntry) {
				return nil, err
			}
			if _, advanceErr := it.entries.Advance(s); advanceErr != nil {
				return nil, advanceErr
			}
			return nil, err
		}

		if entry == nil {
			it.done = true
			if it.builder.pending() {
				return nil, ErrLongNameOrphaned
			}
			return nil, nil
		}

		switch e := entry.(type) {
		case FreeEntry:
			if it.builder.pending() {
				return nil, ErrLongNameOrphaned
			}
			if e.AllFollowing {
				it.done = true
				return nil, nil
			}

		case *LongNameEntry:
			if err := it.builder.addLongNameEntry(e); err != nil {
				if !errors.Is(err, ErrLongNameOrphaned) {
					if _, advanceErr := it.entries.Advance(s); advanceErr != nil {
						return nil, advanceErr
					}
				}
				return nil, err
			}

		case *ShortNameEntry:
			item, err := it.builder.build(e)
			if err != nil {
				return nil, err
			}
			if _, err := it.entries.Advance(s); err != nil {
				return nil, err
			}
			return item, nil
		}

		if _, err := it.entries.Advance(s); err != nil {
			return nil, err
		}
	}
}
