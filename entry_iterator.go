package rofat

import (
	"errors"
	"fmt"

	"github.com/aligator/rofat/checkpoint"
)

var (
	ErrReadDirectoryEntry                 = errors.New("could not read the directory entry")
	ErrAllocationTableEntryTypeUnexpected = errors.New("directory cluster chain does not end with an end of file entry")
)

// EntryIterator walks over the raw records of one directory.
type EntryIterator interface {
	// Peek decodes the record at the current position without moving.
	// It returns a nil entry if there are no records left.
	Peek(s Stream) (DirectoryEntry, error)

	// Advance moves to the next record and reports whether it exists.
	Advance(s Stream) (bool, error)
}

// NextEntry returns the current record and moves past it.
// The iterator moves even if the record could not be decoded.
func NextEntry(it EntryIterator, s Stream) (DirectoryEntry, error) {
	entry, err := it.Peek(s)
	if entry == nil && err == nil {
		return nil, nil
	}

	if _, advanceErr := it.Advance(s); advanceErr != nil && err == nil {
		err = advanceErr
	}
	return entry, err
}

func readEntryAt(s Stream, address uint64) (DirectoryEntry, error) {
	var raw [directoryEntrySize]byte
	if err := readAt(s, address, raw[:]); err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDirectoryEntry)
	}
	return ParseDirectoryEntry(&raw)
}

// TableEntryIterator iterates the fixed root directory of FAT12 and FAT16.
type TableEntryIterator struct {
	start uint64
	count uint32
	index uint32
}

func NewTableEntryIterator(start uint64, count uint32) *TableEntryIterator {
	return &TableEntryIterator{start: start, count: count}
}

func (it *TableEntryIterator) Peek(s Stream) (DirectoryEntry, error) {
	if it.index >= it.count {
		return nil, nil
	}
	return readEntryAt(s, it.start+uint64(it.index)*directoryEntrySize)
}

func (it *TableEntryIterator) Advance(Stream) (bool, error) {
	if it.index >= it.count {
		return false, nil
	}
	it.index++
	return it.index < it.count, nil
}

// ClusterEntryIterator iterates a directory stored in a cluster chain.
// This is used for subdirectories and the FAT32 root directory.
type ClusterEntryIterator struct {
	table           AllocationTable
	dataBase        uint64
	bytesPerCluster uint32

	cluster uint32
	offset  uint32
	done    bool
}

func NewClusterEntryIterator(table AllocationTable, dataBase uint64, bytesPerCluster, firstCluster uint32) *ClusterEntryIterator {
	return &ClusterEntryIterator{
		table:           table,
		dataBase:        dataBase,
		bytesPerCluster: bytesPerCluster,
		cluster:         firstCluster,
	}
}

func (it *ClusterEntryIterator) address() uint64 {
	return it.dataBase + uint64(it.cluster-2)*uint64(it.bytesPerCluster) + uint64(it.offset)
}

func (it *ClusterEntryIterator) Peek(s Stream) (DirectoryEntry, error) {
	if it.done || it.offset >= it.bytesPerCluster {
		return nil, nil
	}
	return readEntryAt(s, it.address())
}

// Advance reads the allocation table when it leaves the current cluster.
func (it *ClusterEntryIterator) Advance(s Stream) (bool, error) {
	if it.done {
		return false, nil
	}

	it.offset += directoryEntrySize
	if it.offset < it.bytesPerCluster {
		return true, nil
	}

	entry, err := it.table.Entry(s, it.cluster)
	if err != nil {
		it.offset -= directoryEntrySize
		return false, err
	}

	switch entry.Kind {
	case EntryNextCluster:
		it.cluster = entry.Next
		it.offset = 0
		return true, nil
	case EntryEndOfFile:
		it.done = true
		return false, nil
	default:
		it.offset -= directoryEntrySize
		return false, checkpoint.Wrap(fmt.Errorf("cluster %d: %v", it.cluster, entry), ErrAllocationTableEntryTypeUnexpected)
	}
}
