package fattest

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Geometry describes the layout of a test volume.
type Geometry struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	TableCount        uint8
	RootEntries       uint16
	TotalSectors      uint32
	SectorsPerTable   uint32
	Media             byte
	// Bits is 12, 16 or 32. It has to match the cluster count the other values result in.
	Bits int
}

// FAT12 is a 1.44 MB floppy.
func FAT12() Geometry {
	return Geometry{
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		TableCount:        2,
		RootEntries:       224,
		TotalSectors:      2880,
		SectorsPerTable:   9,
		Media:             0xF0,
		Bits:              12,
	}
}

// FAT16 has 5000 clusters of 1024 bytes.
func FAT16() Geometry {
	return Geometry{
		BytesPerSector:    512,
		SectorsPerCluster: 2,
		ReservedSectors:   1,
		TableCount:        2,
		RootEntries:       512,
		TotalSectors:      10073,
		SectorsPerTable:   20,
		Media:             0xF8,
		Bits:              16,
	}
}

// FAT32 has 65600 clusters of 512 bytes and its root directory in cluster 2.
func FAT32() Geometry {
	return Geometry{
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		ReservedSectors:   32,
		TableCount:        2,
		TotalSectors:      66658,
		SectorsPerTable:   513,
		Media:             0xF8,
		Bits:              32,
	}
}

const (
	// VolumeLabel is stored in the boot sector and in the root directory.
	VolumeLabel = "TESTVOLUME"
	// VolumeID is stored in the extended boot record.
	VolumeID = 0x12345678

	FSInfoSector     = 1
	BackupBootSector = 6
	FSInfoFree       = 1000
	FSInfoNextFree   = 3

	entrySize = 32

	AttrReadOnly    = 0x01
	AttrHidden      = 0x02
	AttrSystem      = 0x04
	AttrVolumeLabel = 0x08
	AttrDirectory   = 0x10
	AttrArchive     = 0x20
	AttrLongName    = 0x0F
)

// Timestamp of every entry the builder writes: 2021-03-14 15:09:26.
const (
	EntryDate uint16 = (2021-1980)<<9 | 3<<5 | 14
	EntryTime uint16 = 15<<11 | 9<<5 | 26/2
)

// Dir references a directory of the image under construction.
type Dir struct {
	root     bool
	clusters []uint32
	used     int
}

// Cluster returns the first cluster of the directory. It is 0 for a FAT12/16 root directory.
func (d *Dir) Cluster() uint32 {
	if len(d.clusters) == 0 {
		return 0
	}
	return d.clusters[0]
}

// Builder creates a formatted volume and places files and directories on it.
type Builder struct {
	Geometry
	img *Image

	// Gap is the number of free clusters left between two clusters of a chain.
	Gap int

	next uint32
	root *Dir
}

// NewBuilder formats a new image with the geometry.
// The root directory contains the volume label entry.
func NewBuilder(g Geometry) *Builder {
	b := &Builder{
		Geometry: g,
		img:      NewImage(int64(g.TotalSectors) * int64(g.BytesPerSector)),
		next:     2,
	}

	b.writeBootSector()
	b.SetTableEntry(0, uint32(g.Media)|(b.mask()&^0xFF))
	b.SetTableEntry(1, b.mask())

	if g.Bits == 32 {
		b.writeFSInfo()
		b.root = &Dir{root: true, clusters: []uint32{b.allocate()}}
		b.SetTableEntry(b.root.clusters[0], b.EndOfChain())
	} else {
		b.root = &Dir{root: true}
	}

	var label [11]byte
	copy(label[:], fmt.Sprintf("%-11s", VolumeLabel))
	b.writeEntry(b.root, ShortEntry(label, AttrVolumeLabel, 0, 0))
	return b
}

// Image returns the image. It stays attached to the builder.
func (b *Builder) Image() *Image {
	return b.img
}

// Root returns the root directory.
func (b *Builder) Root() *Dir {
	return b.root
}

func (b *Builder) mask() uint32 {
	if b.Bits == 32 {
		return 0x0FFFFFFF
	}
	return 1<<b.Bits - 1
}

// EndOfChain returns the value written for the last cluster of a chain.
func (b *Builder) EndOfChain() uint32 {
	return b.mask()
}

// BadCluster returns the value marking a bad cluster.
func (b *Builder) BadCluster() uint32 {
	return b.mask() - 8
}

// BytesPerCluster returns the cluster size in bytes.
func (b *Builder) BytesPerCluster() int {
	return int(b.BytesPerSector) * int(b.SectorsPerCluster)
}

func (b *Builder) rootDirSectors() uint32 {
	bytes := uint32(b.RootEntries) * entrySize
	return (bytes + uint32(b.BytesPerSector) - 1) / uint32(b.BytesPerSector)
}

// TableAddress returns the byte address of the allocation table with the given index.
func (b *Builder) TableAddress(index int) int64 {
	return (int64(b.ReservedSectors) + int64(index)*int64(b.SectorsPerTable)) * int64(b.BytesPerSector)
}

// RootTableAddress returns the byte address of the FAT12/16 root directory table.
func (b *Builder) RootTableAddress() int64 {
	return b.TableAddress(int(b.TableCount))
}

// DataAddress returns the byte address of the data region.
func (b *Builder) DataAddress() int64 {
	return b.RootTableAddress() + int64(b.rootDirSectors())*int64(b.BytesPerSector)
}

// ClusterAddress returns the byte address of a data cluster.
func (b *Builder) ClusterAddress(cluster uint32) int64 {
	return b.DataAddress() + int64(cluster-2)*int64(b.BytesPerCluster())
}

func (b *Builder) put(off int64, p []byte) {
	if _, err := b.img.WriteAt(p, off); err != nil {
		panic(err)
	}
}

func (b *Builder) get(off int64, n int) []byte {
	p := make([]byte, n)
	if _, err := b.img.ReadAt(p, off); err != nil {
		panic(err)
	}
	return p
}

// WriteAt overwrites raw bytes of the image.
func (b *Builder) WriteAt(off int64, p []byte) {
	b.put(off, p)
}

func (b *Builder) writeBootSector() {
	var s [512]byte
	s[0], s[1], s[2] = 0xEB, 0x3C, 0x90
	copy(s[3:11], "FATTEST ")
	binary.LittleEndian.PutUint16(s[11:], b.BytesPerSector)
	s[13] = b.SectorsPerCluster
	binary.LittleEndian.PutUint16(s[14:], b.ReservedSectors)
	s[16] = b.TableCount
	binary.LittleEndian.PutUint16(s[17:], b.RootEntries)
	if b.TotalSectors < 0x10000 && b.Bits != 32 {
		binary.LittleEndian.PutUint16(s[19:], uint16(b.TotalSectors))
	} else {
		binary.LittleEndian.PutUint32(s[32:], b.TotalSectors)
	}
	s[21] = b.Media
	binary.LittleEndian.PutUint16(s[24:], 18)
	binary.LittleEndian.PutUint16(s[26:], 2)

	ebr := 36
	fsType := fmt.Sprintf("FAT%-5d", b.Bits)
	if b.Bits == 32 {
		binary.LittleEndian.PutUint32(s[36:], b.SectorsPerTable)
		binary.LittleEndian.PutUint32(s[44:], 2)
		binary.LittleEndian.PutUint16(s[48:], FSInfoSector)
		binary.LittleEndian.PutUint16(s[50:], BackupBootSector)
		ebr = 64
	} else {
		binary.LittleEndian.PutUint16(s[22:], uint16(b.SectorsPerTable))
	}
	s[ebr] = 0x80
	s[ebr+2] = 0x29
	binary.LittleEndian.PutUint32(s[ebr+3:], VolumeID)
	copy(s[ebr+7:ebr+18], fmt.Sprintf("%-11s", VolumeLabel))
	copy(s[ebr+18:ebr+26], fsType)

	s[510], s[511] = 0x55, 0xAA
	b.put(0, s[:])
	if b.Bits == 32 {
		b.put(BackupBootSector*int64(b.BytesPerSector), s[:])
	}
}

func (b *Builder) writeFSInfo() {
	var s [512]byte
	binary.LittleEndian.PutUint32(s[0:], 0x41615252)
	binary.LittleEndian.PutUint32(s[484:], 0x61417272)
	binary.LittleEndian.PutUint32(s[488:], FSInfoFree)
	binary.LittleEndian.PutUint32(s[492:], FSInfoNextFree)
	binary.LittleEndian.PutUint32(s[508:], 0xAA550000)
	b.put(FSInfoSector*int64(b.BytesPerSector), s[:])
}

// SetTableEntry writes value for cluster into every allocation table.
func (b *Builder) SetTableEntry(cluster, value uint32) {
	for i := 0; i < int(b.TableCount); i++ {
		b.setTableEntry(b.TableAddress(i), cluster, value)
	}
}

func (b *Builder) setTableEntry(base int64, cluster, value uint32) {
	switch b.Bits {
	case 12:
		addr := base + int64(cluster) + int64(cluster/2)
		old := binary.LittleEndian.Uint16(b.get(addr, 2))
		var v uint16
		if cluster%2 == 1 {
			v = old&0x000F | uint16(value&0xFFF)<<4
		} else {
			v = old&0xF000 | uint16(value&0xFFF)
		}
		b.put(addr, binary.LittleEndian.AppendUint16(nil, v))
	case 16:
		b.put(base+2*int64(cluster), binary.LittleEndian.AppendUint16(nil, uint16(value)))
	default:
		addr := base + 4*int64(cluster)
		old := binary.LittleEndian.Uint32(b.get(addr, 4))
		b.put(addr, binary.LittleEndian.AppendUint32(nil, old&0xF0000000|value&0x0FFFFFFF))
	}
}

func (b *Builder) allocate() uint32 {
	c := b.next
	b.next += 1 + uint32(b.Gap)
	return c
}

// allocateChain allocates count clusters and links them.
func (b *Builder) allocateChain(count int) []uint32 {
	chain := make([]uint32, count)
	for i := range chain {
		chain[i] = b.allocate()
		if i > 0 {
			b.SetTableEntry(chain[i-1], chain[i])
		}
	}
	if count > 0 {
		b.SetTableEntry(chain[count-1], b.EndOfChain())
	}
	return chain
}

// ShortEntry encodes a short name record.
func ShortEntry(name [11]byte, attr byte, cluster, size uint32) [entrySize]byte {
	var e [entrySize]byte
	copy(e[:11], name[:])
	if e[0] == 0xE5 {
		e[0] = 0x05
	}
	e[11] = attr
	binary.LittleEndian.PutUint16(e[14:], EntryTime)
	binary.LittleEndian.PutUint16(e[16:], EntryDate)
	binary.LittleEndian.PutUint16(e[18:], EntryDate)
	binary.LittleEndian.PutUint16(e[20:], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(e[22:], EntryTime)
	binary.LittleEndian.PutUint16(e[24:], EntryDate)
	binary.LittleEndian.PutUint16(e[26:], uint16(cluster))
	binary.LittleEndian.PutUint32(e[28:], size)
	return e
}

// ShortName pads a "NAME.EXT" name into its 11 byte form. The name has to be valid already.
func ShortName(name string) [11]byte {
	var n [11]byte
	for i := range n {
		n[i] = ' '
	}
	base, ext := name, ""
	for i := 0; i < len(name) && name != ".."; i++ {
		if name[i] == '.' && i > 0 {
			base, ext = name[:i], name[i+1:]
			break
		}
	}
	copy(n[:8], base)
	copy(n[8:], ext)
	return n
}

// Checksum computes the short name checksum stored in long name records.
func Checksum(name [11]byte) uint8 {
	var sum uint8
	for _, c := range name {
		sum = (sum>>1 | sum<<7) + c
	}
	return sum
}

// LongEntries encodes the long name records for name in the order they are stored.
func LongEntries(name string, checksum uint8) [][entrySize]byte {
	units := utf16.Encode([]rune(name))
	count := (len(units) + 12) / 13
	padded := make([]uint16, count*13)
	for i := range padded {
		switch {
		case i < len(units):
			padded[i] = units[i]
		case i == len(units):
			padded[i] = 0
		default:
			padded[i] = 0xFFFF
		}
	}

	offsets := [13]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}
	entries := make([][entrySize]byte, 0, count)
	for seq := count; seq >= 1; seq-- {
		var e [entrySize]byte
		e[0] = byte(seq)
		if seq == count {
			e[0] |= 0x40
		}
		e[11] = AttrLongName
		e[13] = checksum
		for i, off := range offsets {
			binary.LittleEndian.PutUint16(e[off:], padded[(seq-1)*13+i])
		}
		entries = append(entries, e)
	}
	return entries
}

// slotAddress returns the byte address of the next free record of dir, growing it if needed.
func (b *Builder) slotAddress(dir *Dir) int64 {
	if dir.root && b.Bits != 32 {
		if dir.used >= int(b.RootEntries) {
			panic("fattest: root directory full")
		}
		return b.RootTableAddress() + int64(dir.used)*entrySize
	}

	perCluster := b.BytesPerCluster() / entrySize
	index := dir.used / perCluster
	if index == len(dir.clusters) {
		c := b.allocate()
		b.SetTableEntry(dir.clusters[index-1], c)
		b.SetTableEntry(c, b.EndOfChain())
		dir.clusters = append(dir.clusters, c)
	}
	return b.ClusterAddress(dir.clusters[index]) + int64(dir.used%perCluster)*entrySize
}

func (b *Builder) writeEntry(dir *Dir, e [entrySize]byte) {
	b.put(b.slotAddress(dir), e[:])
	dir.used++
}

// AppendRaw stores a record as it is at the next free position of dir.
func (b *Builder) AppendRaw(dir *Dir, e [entrySize]byte) {
	b.writeEntry(dir, e)
}

func (b *Builder) appendItem(dir *Dir, short, long string, attr byte, cluster, size uint32) {
	name := ShortName(short)
	if long != "" {
		for _, e := range LongEntries(long, Checksum(name)) {
			b.writeEntry(dir, e)
		}
	}
	b.writeEntry(dir, ShortEntry(name, attr, cluster, size))
}

// AddFile stores content in a newly allocated chain and adds it to dir.
// long may be empty for items which only have a short name.
// It returns the clusters of the file.
func (b *Builder) AddFile(dir *Dir, short, long string, content []byte) []uint32 {
	bpc := b.BytesPerCluster()
	chain := b.allocateChain((len(content) + bpc - 1) / bpc)
	for i, c := range chain {
		end := (i + 1) * bpc
		if end > len(content) {
			end = len(content)
		}
		b.put(b.ClusterAddress(c), content[i*bpc:end])
	}

	var first uint32
	if len(chain) > 0 {
		first = chain[0]
	}
	b.appendItem(dir, short, long, AttrArchive, first, uint32(len(content)))
	return chain
}

// AddDir creates a subdirectory with the "." and ".." records.
func (b *Builder) AddDir(parent *Dir, short, long string) *Dir {
	dir := &Dir{clusters: b.allocateChain(1)}
	b.appendItem(parent, short, long, AttrDirectory, dir.clusters[0], 0)

	parentCluster := parent.Cluster()
	if parent.root {
		parentCluster = 0
	}
	b.writeEntry(dir, ShortEntry(ShortName("."), AttrDirectory, dir.clusters[0], 0))
	b.writeEntry(dir, ShortEntry(ShortName(".."), AttrDirectory, parentCluster, 0))
	return dir
}
