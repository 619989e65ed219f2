package rofat

import (
	"errors"
	"strings"
)

// BootSectorSize is the size of the boot sector holding the BIOS parameter block.
const BootSectorSize = 512

// These errors may occur while parsing the BIOS parameter block.
// Each of them names the field which is wrong.
var (
	ErrBytesPerSectorInvalid          = errors.New("bytes per sector must be 512, 1024, 2048 or 4096")
	ErrSectorsPerClusterInvalid       = errors.New("sectors per cluster must be a power of two between 1 and 128")
	ErrReservedSectorCountInvalid     = errors.New("reserved sector count must not be 0")
	ErrAllocationTableCountInvalid    = errors.New("allocation table count must not be 0")
	ErrMediaTypeInvalid               = errors.New("media type must be 0xF0 or 0xF8 to 0xFF")
	ErrSectorsPerTableNotSet          = errors.New("sectors per allocation table are not set")
	ErrTotalSectorCountNotSet         = errors.New("total sector count is not set")
	ErrDataRegionMissing              = errors.New("system sectors exceed the total sector count")
	ErrRootDirectoryEntryCountInvalid = errors.New("root directory entry count does not match the FAT kind")
	ErrTotalSectorCount16Invalid      = errors.New("16 bit total sector count must be 0 on FAT32")
	ErrSectorsPerTable16Invalid       = errors.New("16 bit sectors per allocation table do not match the FAT kind")
	ErrFilesystemVersionUnsupported   = errors.New("filesystem version is not supported")
	ErrRootDirectoryClusterInvalid    = errors.New("root directory cluster must be at least 2")
	ErrFSInfoSectorInvalid            = errors.New("FSInfo sector must be at least 1")
	ErrAllocationTableTooSmall        = errors.New("allocation table cannot hold an entry for every cluster")
)

// Field offsets inside the boot sector.
const (
	bpbBytesPerSector    = 11
	bpbSectorsPerCluster = 13
	bpbReservedSectors   = 14
	bpbTableCount        = 16
	bpbRootEntryCount    = 17
	bpbTotalSectors16    = 19
	bpbMedia             = 21
	bpbSectorsPerTable16 = 22
	bpbTotalSectors32    = 32
	bpbSectorsPerTable32 = 36
	bpbExtendedFlags     = 40
	bpbFSVersion         = 42
	bpbRootCluster       = 44
	bpbFSInfoSector      = 48
	bpbBackupBootSector  = 50

	// Extended boot record, relative to its start which differs between FAT32 and the others.
	ebrSignature = 2
	ebrVolumeID  = 3
	ebrLabel     = 7
	ebrFSType    = 18

	ebrStart1216 = 36
	ebrStart32   = 64
)

const directoryEntrySize = 32

// BiosParameterBlock is the validated geometry of a FAT volume.
type BiosParameterBlock struct {
	bytesPerSector    uint16
	sectorsPerCluster uint8
	reservedSectors   uint16
	tableCount        uint8
	rootEntryCount    uint16
	totalSectors      uint32
	sectorsPerTable   uint32
	media             uint8

	kind              Kind
	dataClusterCount  uint32
	lastClusterNumber uint32

	// FAT32 only.
	activeTableIndex uint8
	mirroring        bool
	rootCluster      uint32
	fsInfoSector     uint16
	backupBootSector uint16

	volumeID    uint32
	volumeLabel string
	fsType      string
}

// ParseBPB validates the boot sector and derives the geometry of the volume.
// It does not check the boot sector signature.
func ParseBPB(sector *[BootSectorSize]byte) (*BiosParameterBlock, error) {
	b := sector[:]
	bpb := &BiosParameterBlock{
		bytesPerSector:    getU16(b, bpbBytesPerSector),
		sectorsPerCluster: b[bpbSectorsPerCluster],
		reservedSectors:   getU16(b, bpbReservedSectors),
		tableCount:        b[bpbTableCount],
		rootEntryCount:    getU16(b, bpbRootEntryCount),
		media:             b[bpbMedia],
	}

	switch bpb.bytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return nil, ErrBytesPerSectorInvalid
	}

	spc := bpb.sectorsPerCluster
	if spc == 0 || spc&(spc-1) != 0 {
		return nil, ErrSectorsPerClusterInvalid
	}

	if bpb.reservedSectors == 0 {
		return nil, ErrReservedSectorCountInvalid
	}

	if bpb.tableCount == 0 {
		return nil, ErrAllocationTableCountInvalid
	}

	if bpb.media != 0xF0 && bpb.media < 0xF8 {
		return nil, ErrMediaTypeInvalid
	}

	sectorsPerTable16 := getU16(b, bpbSectorsPerTable16)
	bpb.sectorsPerTable = uint32(sectorsPerTable16)
	if bpb.sectorsPerTable == 0 {
		bpb.sectorsPerTable = getU32(b, bpbSectorsPerTable32)
		if bpb.sectorsPerTable == 0 {
			return nil, ErrSectorsPerTableNotSet
		}
	}

	totalSectors16 := getU16(b, bpbTotalSectors16)
	bpb.totalSectors = uint32(totalSectors16)
	if bpb.totalSectors == 0 {
		bpb.totalSectors = getU32(b, bpbTotalSectors32)
		if bpb.totalSectors == 0 {
			return nil, ErrTotalSectorCountNotSet
		}
	}

	bytesPerSector := uint64(bpb.bytesPerSector)
	rootDirectorySectors := (uint64(bpb.rootEntryCount)*directoryEntrySize + bytesPerSector - 1) / bytesPerSector
	systemSectors := uint64(bpb.reservedSectors) + uint64(bpb.tableCount)*uint64(bpb.sectorsPerTable) + rootDirectorySectors
	if systemSectors > uint64(bpb.totalSectors) {
		return nil, ErrDataRegionMissing
	}
	bpb.dataClusterCount = uint32((uint64(bpb.totalSectors) - systemSectors) / uint64(spc))
	bpb.lastClusterNumber = bpb.dataClusterCount + 1
	bpb.kind = KindFromClusterCount(bpb.dataClusterCount)

	ebr := ebrStart1216
	if bpb.kind == Fat32 {
		if bpb.rootEntryCount != 0 {
			return nil, ErrRootDirectoryEntryCountInvalid
		}
		if totalSectors16 != 0 {
			return nil, ErrTotalSectorCount16Invalid
		}
		if sectorsPerTable16 != 0 {
			return nil, ErrSectorsPerTable16Invalid
		}

		flags := getU16(b, bpbExtendedFlags)
		bpb.activeTableIndex = uint8(flags & 0x07)
		// Bit 7 set means only the active table is in use.
		bpb.mirroring = flags&0x80 == 0

		if b[bpbFSVersion] != 0 || b[bpbFSVersion+1] != 0 {
			return nil, ErrFilesystemVersionUnsupported
		}

		bpb.rootCluster = getU32(b, bpbRootCluster)
		if bpb.rootCluster < 2 {
			return nil, ErrRootDirectoryClusterInvalid
		}

		bpb.fsInfoSector = getU16(b, bpbFSInfoSector)
		if bpb.fsInfoSector < 1 {
			return nil, ErrFSInfoSectorInvalid
		}

		bpb.backupBootSector = getU16(b, bpbBackupBootSector)
		ebr = ebrStart32
	} else {
		if sectorsPerTable16 == 0 {
			return nil, ErrSectorsPerTable16Invalid
		}
		if bpb.rootEntryCount == 0 {
			return nil, ErrRootDirectoryEntryCountInvalid
		}
		bpb.mirroring = true
	}

	capacity := uint64(bpb.sectorsPerTable) * bytesPerSector * 8 / bpb.kind.storedBits()
	if capacity < uint64(bpb.dataClusterCount)+2 {
		return nil, ErrAllocationTableTooSmall
	}

	// The extended boot record is optional. 0x28 records only carry the volume id.
	switch b[ebr+ebrSignature] {
	case 0x29:
		bpb.volumeLabel = strings.TrimRight(string(b[ebr+ebrLabel:ebr+ebrLabel+11]), " \x00")
		bpb.fsType = strings.TrimRight(string(b[ebr+ebrFSType:ebr+ebrFSType+8]), " \x00")
		fallthrough
	case 0x28:
		bpb.volumeID = getU32(b, ebr+ebrVolumeID)
	}

	return bpb, nil
}

func (b *BiosParameterBlock) Kind() Kind {
	return b.kind
}

func (b *BiosParameterBlock) BytesPerSector() uint16 {
	return b.bytesPerSector
}

func (b *BiosParameterBlock) SectorsPerCluster() uint8 {
	return b.sectorsPerCluster
}

func (b *BiosParameterBlock) ReservedSectorCount() uint16 {
	return b.reservedSectors
}

func (b *BiosParameterBlock) AllocationTableCount() uint8 {
	return b.tableCount
}

func (b *BiosParameterBlock) RootDirectoryEntryCount() uint16 {
	return b.rootEntryCount
}

func (b *BiosParameterBlock) TotalSectorCount() uint32 {
	return b.totalSectors
}

func (b *BiosParameterBlock) SectorsPerAllocationTable() uint32 {
	return b.sectorsPerTable
}

func (b *BiosParameterBlock) MediaType() uint8 {
	return b.media
}

func (b *BiosParameterBlock) DataClusterCount() uint32 {
	return b.dataClusterCount
}

// LastClusterNumber is the highest valid data cluster number.
func (b *BiosParameterBlock) LastClusterNumber() uint32 {
	return b.lastClusterNumber
}

// ActiveAllocationTableIndex is only meaningful if mirroring is disabled.
func (b *BiosParameterBlock) ActiveAllocationTableIndex() uint8 {
	return b.activeTableIndex
}

// AllocationTableMirroringEnabled is always true for FAT12 and FAT16.
func (b *BiosParameterBlock) AllocationTableMirroringEnabled() bool {
	return b.mirroring
}

// RootDirectoryCluster returns the first cluster of the FAT32 root directory.
func (b *BiosParameterBlock) RootDirectoryCluster() (uint32, bool) {
	return b.rootCluster, b.kind == Fat32
}

// FSInfoSector returns the sector index of the FAT32 FSInfo structure.
func (b *BiosParameterBlock) FSInfoSector() (uint16, bool) {
	return b.fsInfoSector, b.kind == Fat32
}

// BackupBootSector returns the sector index of the FAT32 boot sector copy. 0 means none.
func (b *BiosParameterBlock) BackupBootSector() (uint16, bool) {
	return b.backupBootSector, b.kind == Fat32 && b.backupBootSector != 0
}

func (b *BiosParameterBlock) VolumeID() uint32 {
	return b.volumeID
}

// VolumeLabel is the label stored in the boot sector, if any.
func (b *BiosParameterBlock) VolumeLabel() string {
	return b.volumeLabel
}

// FilesystemType is the informational type string like "FAT12   ". It is never used for detection.
func (b *BiosParameterBlock) FilesystemType() string {
	return b.fsType
}

func (b *BiosParameterBlock) BytesPerCluster() uint32 {
	return uint32(b.bytesPerSector) * uint32(b.sectorsPerCluster)
}

func (b *BiosParameterBlock) tableSize() uint64 {
	return uint64(b.sectorsPerTable) * uint64(b.bytesPerSector)
}

// AllocationTableBaseAddress is the address of the first allocation table.
func (b *BiosParameterBlock) AllocationTableBaseAddress() uint64 {
	return uint64(b.bytesPerSector) * uint64(b.reservedSectors)
}

// ActiveAllocationTableBaseAddress is the address of the table which has to be used for lookups.
func (b *BiosParameterBlock) ActiveAllocationTableBaseAddress() uint64 {
	base := b.AllocationTableBaseAddress()
	if b.mirroring || b.activeTableIndex >= b.tableCount {
		return base
	}
	return base + uint64(b.activeTableIndex)*b.tableSize()
}

// DirectoryTableBaseAddress is the address of the fixed root directory of FAT12 and FAT16.
func (b *BiosParameterBlock) DirectoryTableBaseAddress() uint64 {
	return b.AllocationTableBaseAddress() + b.tableSize()*uint64(b.tableCount)
}

// DataRegionBaseAddress is the address of cluster 2.
// The root directory occupies whole sectors even if its last sector is not filled by entries.
func (b *BiosParameterBlock) DataRegionBaseAddress() uint64 {
	bytesPerSector := uint64(b.bytesPerSector)
	rootDirectorySize := (uint64(b.rootEntryCount)*directoryEntrySize + bytesPerSector - 1) / bytesPerSector * bytesPerSector
	return b.DirectoryTableBaseAddress() + rootDirectorySize
}
