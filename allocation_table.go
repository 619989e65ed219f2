package rofat

import (
	"errors"
	"fmt"

	"github.com/aligator/rofat/checkpoint"
)

var ErrReadAllocationTable = errors.New("could not read the allocation table entry")

// EntryKind is the logical meaning of an allocation table entry.
type EntryKind uint8

const (
	EntryFree EntryKind = iota
	EntryReserved
	EntryNextCluster
	EntryBadSector
	EntryEndOfFile
)

func (k EntryKind) String() string {
	switch k {
	case EntryFree:
		return "free"
	case EntryReserved:
		return "reserved"
	case EntryNextCluster:
		return "next cluster"
	case EntryBadSector:
		return "bad sector"
	case EntryEndOfFile:
		return "end of file"
	default:
		return "unknown"
	}
}

// TableEntry is a decoded allocation table entry.
// Next is only set for EntryNextCluster.
type TableEntry struct {
	Kind EntryKind
	Next uint32
}

func (e TableEntry) String() string {
	if e.Kind == EntryNextCluster {
		return fmt.Sprintf("next cluster %d", e.Next)
	}
	return e.Kind.String()
}

// classifyEntry maps a masked entry value to its meaning.
// The bad sector check must happen before the end of chain threshold.
func classifyEntry(kind Kind, value uint32) TableEntry {
	switch {
	case value == 0:
		return TableEntry{Kind: EntryFree}
	case value == 1:
		return TableEntry{Kind: EntryReserved}
	case value == kind.BadSectorValue():
		return TableEntry{Kind: EntryBadSector}
	case value < kind.EndOfChainValue():
		return TableEntry{Kind: EntryNextCluster, Next: value}
	default:
		return TableEntry{Kind: EntryEndOfFile}
	}
}

// entryValue is the inverse of classifyEntry.
func entryValue(kind Kind, e TableEntry) uint32 {
	switch e.Kind {
	case EntryFree:
		return 0
	case EntryReserved:
		return 1
	case EntryNextCluster:
		return e.Next & kind.EntryMask()
	case EntryBadSector:
		return kind.BadSectorValue()
	default:
		return kind.EntryMask()
	}
}

// AllocationTable resolves cluster numbers to their table entry.
// It holds no state besides its kind and position, every lookup goes to the device.
type AllocationTable struct {
	kind Kind
	base uint64
}

// NewAllocationTable creates a table of the given kind starting at the absolute base address.
func NewAllocationTable(kind Kind, base uint64) AllocationTable {
	return AllocationTable{kind: kind, base: base}
}

func (t AllocationTable) Kind() Kind {
	return t.kind
}

func (t AllocationTable) BaseAddress() uint64 {
	return t.base
}

// physicalEntry is the location of one entry inside the table.
type physicalEntry struct {
	kind         Kind
	address      uint64
	nibbleOffset bool
}

func (t AllocationTable) physical(cluster uint32) physicalEntry {
	c := uint64(cluster)
	switch t.kind {
	case Fat12:
		// Two 12 bit entries share three bytes. Odd entries start at the upper nibble.
		return physicalEntry{kind: t.kind, address: t.base + c + c/2, nibbleOffset: cluster%2 == 1}
	case Fat16:
		return physicalEntry{kind: t.kind, address: t.base + c*2}
	default:
		return physicalEntry{kind: t.kind, address: t.base + c*4}
	}
}

// size is the count of bytes which have to be read to decode the entry.
func (p physicalEntry) size() int {
	if p.kind == Fat32 {
		return 4
	}
	return 2
}

func (p physicalEntry) decode(raw []byte) uint32 {
	var value uint32
	if p.kind == Fat32 {
		value = getU32(raw, 0)
	} else {
		value = uint32(getU16(raw, 0))
	}

	if p.nibbleOffset {
		value >>= 4
	}
	return value & p.kind.EntryMask()
}

// encode stores value into raw without touching the bits of neighbouring entries
// or the reserved upper bits of FAT32 entries.
func (p physicalEntry) encode(raw []byte, value uint32) {
	mask := p.kind.EntryMask()
	value &= mask
	if p.nibbleOffset {
		mask <<= 4
		value <<= 4
	}

	if p.kind == Fat32 {
		putU32(raw, 0, getU32(raw, 0)&^mask|value)
		return
	}
	putU16(raw, 0, uint16(uint32(getU16(raw, 0))&^mask|value))
}

// Entry reads the table entry of the given cluster.
// It performs exactly one seek and one read on the stream.
func (t AllocationTable) Entry(s Stream, cluster uint32) (TableEntry, error) {
	p := t.physical(cluster)

	var buf [4]byte
	raw := buf[:p.size()]
	if err := readAt(s, p.address, raw); err != nil {
		return TableEntry{}, checkpoint.Wrap(err, ErrReadAllocationTable)
	}

	return classifyEntry(t.kind, p.decode(raw)), nil
}
