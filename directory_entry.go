package rofat

import (
	"errors"
	"time"

	"github.com/aligator/rofat/checkpoint"
)

// These errors may occur while decoding a long name entry.
var (
	ErrLongNameEntryNumberInvalid = errors.New("long name entry sequence number must be between 1 and 20")
	ErrLongNameCharacterInvalid   = errors.New("long name entry contains a surrogate code unit")
)

// Attributes of a short name entry.
type Attributes uint8

const (
	AttrReadOnly Attributes = 1 << iota
	AttrHidden
	AttrSystem
	AttrVolumeLabel
	AttrDirectory
	AttrArchive

	attrLongName Attributes = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeLabel
	attrMask     Attributes = 0x3F
)

func (a Attributes) Has(flag Attributes) bool {
	return a&flag == flag
}

// Offsets inside a 32 byte directory record.
const (
	dirName            = 0
	dirAttributes      = 11
	dirCaseFlags       = 12
	dirCreateTenths    = 13
	dirCreateTime      = 14
	dirCreateDate      = 16
	dirAccessDate      = 18
	dirFirstClusterHi  = 20
	dirWriteTime       = 22
	dirWriteDate       = 24
	dirFirstClusterLo  = 26
	dirFileSize        = 28
	lfnOrder           = 0
	lfnChecksum        = 13
	allFollowingMarker = 0x00

	caseLowerBase = 0x08
	caseLowerExt  = 0x10
)

// The three byte ranges holding the 13 characters of a long name entry.
var lfnCharRanges = [3]struct{ start, count int }{{1, 5}, {14, 6}, {28, 2}}

// DirectoryEntry is one decoded 32 byte record: FreeEntry, *ShortNameEntry or *LongNameEntry.
type DirectoryEntry interface {
	isDirectoryEntry()
}

// FreeEntry is an unused slot. AllFollowing means that no used entry follows in this directory.
type FreeEntry struct {
	AllFollowing bool
}

func (FreeEntry) isDirectoryEntry() {}

// ShortNameEntry describes a file or directory.
type ShortNameEntry struct {
	Name         ShortFileName
	Attributes   Attributes
	CaseFlags    uint8
	FirstCluster uint32
	FileSize     uint32

	CreateTenths uint8
	CreateTime   uint16
	CreateDate   uint16
	AccessDate   uint16
	WriteTime    uint16
	WriteDate    uint16
}

func (*ShortNameEntry) isDirectoryEntry() {}

func (e *ShortNameEntry) IsDir() bool {
	return e.Attributes.Has(AttrDirectory)
}

func (e *ShortNameEntry) ModTime() time.Time {
	return timestamp(e.WriteDate, e.WriteTime, 0)
}

func (e *ShortNameEntry) CreationTime() time.Time {
	return timestamp(e.CreateDate, e.CreateTime, e.CreateTenths)
}

func (e *ShortNameEntry) AccessTime() time.Time {
	return ParseDate(e.AccessDate)
}

// DisplayName renders the short name including the lower case hints.
func (e *ShortNameEntry) DisplayName(cp CodePage) string {
	return e.Name.Format(cp, e.CaseFlags&caseLowerBase != 0, e.CaseFlags&caseLowerExt != 0)
}

// Encode writes the entry as it is stored on disk.
func (e *ShortNameEntry) Encode(raw *[directoryEntrySize]byte) {
	b := raw[:]
	e.Name.encode(b[dirName:])
	b[dirAttributes] = byte(e.Attributes)
	b[dirCaseFlags] = e.CaseFlags
	b[dirCreateTenths] = e.CreateTenths
	putU16(b, dirCreateTime, e.CreateTime)
	putU16(b, dirCreateDate, e.CreateDate)
	putU16(b, dirAccessDate, e.AccessDate)
	putU16(b, dirFirstClusterHi, uint16(e.FirstCluster>>16))
	putU16(b, dirWriteTime, e.WriteTime)
	putU16(b, dirWriteDate, e.WriteDate)
	putU16(b, dirFirstClusterLo, uint16(e.FirstCluster))
	putU32(b, dirFileSize, e.FileSize)
}

// LongNameEntry holds 13 characters of a long name.
type LongNameEntry struct {
	Order    uint8
	Chars    [longNameCharsPerEntry]uint16
	Checksum uint8
}

func (*LongNameEntry) isDirectoryEntry() {}

// Sequence is the 1 based position of the entry inside its name.
func (e *LongNameEntry) Sequence() uint8 {
	return e.Order & longNameSequenceMask
}

// IsLast reports whether this entry holds the end of the name. It is stored first.
func (e *LongNameEntry) IsLast() bool {
	return e.Order&longNameLastEntryFlag != 0
}

func (e *LongNameEntry) Encode(raw *[directoryEntrySize]byte) {
	b := raw[:]
	b[lfnOrder] = e.Order
	b[dirAttributes] = byte(attrLongName)
	b[dirCaseFlags] = 0
	b[lfnChecksum] = e.Checksum
	putU16(b, dirFirstClusterLo, 0)

	i := 0
	for _, r := range lfnCharRanges {
		for j := 0; j < r.count; j++ {
			putU16(b, r.start+2*j, e.Chars[i])
			i++
		}
	}
}

// ParseDirectoryEntry decodes one directory record.
func ParseDirectoryEntry(raw *[directoryEntrySize]byte) (DirectoryEntry, error) {
	b := raw[:]
	switch b[0] {
	case allFollowingMarker:
		return FreeEntry{AllFollowing: true}, nil
	case freeEntryMarker:
		return FreeEntry{AllFollowing: false}, nil
	}

	attributes := Attributes(b[dirAttributes])
	if attributes&attrLongName == attrLongName {
		e, err := parseLongNameEntry(b)
		if err != nil {
			return nil, err
		}
		return e, nil
	}

	e, err := parseShortNameEntry(b)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func parseShortNameEntry(b []byte) (*ShortNameEntry, error) {
	name, err := decodeShortFileName(b[dirName:])
	if err != nil {
		return nil, err
	}

	return &ShortNameEntry{
		Name:         name,
		Attributes:   Attributes(b[dirAttributes]) & attrMask,
		CaseFlags:    b[dirCaseFlags],
		FirstCluster: uint32(getU16(b, dirFirstClusterHi))<<16 | uint32(getU16(b, dirFirstClusterLo)),
		FileSize:     getU32(b, dirFileSize),
		CreateTenths: b[dirCreateTenths],
		CreateTime:   getU16(b, dirCreateTime),
		CreateDate:   getU16(b, dirCreateDate),
		AccessDate:   getU16(b, dirAccessDate),
		WriteTime:    getU16(b, dirWriteTime),
		WriteDate:    getU16(b, dirWriteDate),
	}, nil
}

func parseLongNameEntry(b []byte) (*LongNameEntry, error) {
	e := &LongNameEntry{
		Order:    b[lfnOrder],
		Checksum: b[lfnChecksum],
	}

	if seq := e.Sequence(); seq < 1 || seq > longNameMaxEntries {
		return nil, ErrLongNameEntryNumberInvalid
	}

	i := 0
	for _, r := range lfnCharRanges {
		for j := 0; j < r.count; j++ {
			c := getU16(b, r.start+2*j)
			if isSurrogate(c) {
				return nil, checkpoint.Wrap(&CharacterError{Character: c, Offset: i}, ErrLongNameCharacterInvalid)
			}
			e.Chars[i] = c
			i++
		}
	}
	return e, nil
}
