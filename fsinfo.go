package rofat

const (
	fsInfoLeadSignature   = 0x41615252
	fsInfoStructSignature = 0x61417272
	fsInfoTrailSignature  = 0xAA550000

	fsInfoLead       = 0
	fsInfoStruct     = 484
	fsInfoFreeCount  = 488
	fsInfoNextFree   = 492
	fsInfoTrail      = 508
	fsInfoSectorSize = 512

	// FSInfoUnknown marks a hint which is not known.
	FSInfoUnknown = 0xFFFFFFFF
)

// FSInfo holds the hints of the FAT32 FSInfo sector.
// They are not guaranteed to be correct and are never used by the driver itself.
type FSInfo struct {
	FreeClusters    uint32
	NextFreeCluster uint32
}

// parseFSInfo returns false if a signature does not match.
func parseFSInfo(b *[fsInfoSectorSize]byte) (FSInfo, bool) {
	if getU32(b[:], fsInfoLead) != fsInfoLeadSignature ||
		getU32(b[:], fsInfoStruct) != fsInfoStructSignature ||
		getU32(b[:], fsInfoTrail) != fsInfoTrailSignature {
		return FSInfo{}, false
	}

	return FSInfo{
		FreeClusters:    getU32(b[:], fsInfoFreeCount),
		NextFreeCluster: getU32(b[:], fsInfoNextFree),
	}, true
}
