package rofat

// Kind is the FAT variant, which is only decided by the count of data clusters.
type Kind uint8

const (
	Fat12 Kind = iota
	Fat16
	Fat32
)

// The cluster counts where the next kind starts.
// They are fixed by the format and are intentionally not round.
const (
	fat16MinClusters = 4085
	fat32MinClusters = 65525
)

// KindFromClusterCount classifies a volume by its count of data clusters.
func KindFromClusterCount(clusters uint32) Kind {
	switch {
	case clusters < fat16MinClusters:
		return Fat12
	case clusters < fat32MinClusters:
		return Fat16
	default:
		return Fat32
	}
}

// EntryBits returns the count of significant bits of a table entry.
func (k Kind) EntryBits() uint {
	switch k {
	case Fat12:
		return 12
	case Fat16:
		return 16
	default:
		return 28
	}
}

// EntryMask masks the significant bits of a raw table entry.
func (k Kind) EntryMask() uint32 {
	return 1<<k.EntryBits() - 1
}

// BadSectorValue is the entry value marking a defective cluster.
func (k Kind) BadSectorValue() uint32 {
	return k.EntryMask() - 8
}

// EndOfChainValue is the smallest entry value marking the last cluster of a chain.
func (k Kind) EndOfChainValue() uint32 {
	return k.EntryMask() - 7
}

// storedBits is the space an entry occupies inside the table.
// FAT32 reserves the upper 4 bits of every entry.
func (k Kind) storedBits() uint64 {
	if k == Fat32 {
		return 32
	}
	return uint64(k.EntryBits())
}

func (k Kind) String() string {
	switch k {
	case Fat12:
		return "FAT12"
	case Fat16:
		return "FAT16"
	case Fat32:
		return "FAT32"
	default:
		return "unknown"
	}
}
