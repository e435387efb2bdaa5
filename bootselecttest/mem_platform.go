// This package provides an in-memory Platform implementation used by tests
// to exercise the selector without a real firmware environment or real
// storage devices.

package bootselecttest

import (
	"bytes"
	"hash/crc32"
	"sort"

	"github.com/dsoprea/go-logging"

	"github.com/fwguard/go-bootselect"
)

// CallPoint names one of the external operations a Platform performs, so
// a test can fail each one independently of the others.
type CallPoint int

const (
	CallEnumerate CallPoint = iota
	CallFilter
	CallOpen
	CallRead
	CallWrite
	CallClose
	CallCRC32
	CallAllocate
)

// MemPlatform is a Platform backed by in-memory buffers, one per volume
// index. It supports failing any CallPoint on its k-th invocation, so a
// test can simulate a single failing partition, disk, or firmware call
// without disturbing the others.
type MemPlatform struct {
	// Partitions maps a volume index to the raw bytes currently stored on
	// that simulated config partition. Absent entries behave as if the
	// volume has no config file.
	Partitions map[bootselect.VolumeIndex][]byte

	// BootVolumeDevicePath is the device-path IsOnBootVolume compares
	// against.
	BootVolumeDevicePath string

	// Disallowed lists volume indices FilterConfigParts removes, simulating
	// platform-specific partition filtering (e.g. a non-boot-disk ESP
	// backup).
	Disallowed map[bootselect.VolumeIndex]bool

	// failPoint and failN, when failSet is true, name a (CallPoint,
	// invocation count) pair that should fail. failCounts tracks how many times each CallPoint has been
	// invoked so far.
	failPoint  CallPoint
	failN      int
	failSet    bool
	failCounts map[CallPoint]int

	// Writes records every payload committed by a successful Close of a
	// ModeReadWrite handle, keyed by volume index, for test assertions (e.g. "exactly one write-back occurred").
	Writes map[bootselect.VolumeIndex][]byte
}

// NewMemPlatform returns an empty MemPlatform ready to have Partitions
// populated directly.
func NewMemPlatform() *MemPlatform {
	return &MemPlatform{
		Partitions: make(map[bootselect.VolumeIndex][]byte),
		Disallowed: make(map[bootselect.VolumeIndex]bool),
		failCounts: make(map[CallPoint]int),
		Writes:     make(map[bootselect.VolumeIndex][]byte),
	}
}

// FailAt arranges for the n-th (1-indexed) invocation of point, counting
// from now, to fail. Any fixture setup performed before FailAt is called
// (e.g. seeding a volume's initial record via WriteRecord) does not count
// towards n.
func (m *MemPlatform) FailAt(point CallPoint, n int) {
	m.failPoint = point
	m.failN = n
	m.failSet = true
	m.failCounts = make(map[CallPoint]int)
}

// shouldFail records one invocation of point and reports whether this
// particular invocation is the one that should fail.
func (m *MemPlatform) shouldFail(point CallPoint) bool {
	m.failCounts[point]++
	return m.failSet && point == m.failPoint && m.failCounts[point] == m.failN
}

func (m *MemPlatform) EnumerateConfigParts(volumes []bootselect.Volume) ([]bootselect.VolumeIndex, error) {
	if m.shouldFail(CallEnumerate) {
		return nil, log.Errorf("injected: enumeration failure")
	}

	indices := make([]bootselect.VolumeIndex, 0, len(volumes))
	for _, v := range volumes {
		if _, found := m.Partitions[v.Index]; found {
			indices = append(indices, v.Index)
		}
	}

	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	return indices, nil
}

func (m *MemPlatform) FilterConfigParts(volumes []bootselect.Volume, indices []bootselect.VolumeIndex) ([]bootselect.VolumeIndex, error) {
	if m.shouldFail(CallFilter) {
		return nil, log.Errorf("injected: filter failure")
	}

	filtered := make([]bootselect.VolumeIndex, 0, len(indices))
	for _, idx := range indices {
		if !m.Disallowed[idx] {
			filtered = append(filtered, idx)
		}
	}

	return filtered, nil
}

func (m *MemPlatform) IsOnBootVolume(devicePath string) bool {
	return m.BootVolumeDevicePath != "" && devicePath == m.BootVolumeDevicePath
}

func (m *MemPlatform) OpenConfig(volume bootselect.Volume, mode bootselect.FileMode) (bootselect.ConfigFile, error) {
	if m.shouldFail(CallOpen) {
		return nil, log.Errorf("injected: open failure on volume (%d)", volume.Index)
	}

	existing := m.Partitions[volume.Index]
	data := make([]byte, len(existing))
	copy(data, existing)

	return &memConfigFile{
		platform: m,
		index:    volume.Index,
		mode:     mode,
		buf:      *bytes.NewBuffer(data),
	}, nil
}

func (m *MemPlatform) CRC32(data []byte) (uint32, error) {
	if m.shouldFail(CallCRC32) {
		return 0, log.Errorf("injected: CRC32 failure")
	}

	return crc32.ChecksumIEEE(data), nil
}

func (m *MemPlatform) AllocateIndexVector(n int) ([]bootselect.VolumeIndex, error) {
	if m.shouldFail(CallAllocate) {
		return nil, log.Errorf("injected: allocation failure")
	}

	return make([]bootselect.VolumeIndex, n), nil
}

// memConfigFile is the ConfigFile handle MemPlatform hands out. Reads
// consume from a snapshot taken at open time; writes are buffered and
// committed back to the owning MemPlatform's Partitions/Writes maps on
// Close, so a short write never corrupts the simulated partition.
type memConfigFile struct {
	platform *MemPlatform
	index    bootselect.VolumeIndex
	mode     bootselect.FileMode

	buf     bytes.Buffer
	written []byte
	closed  bool
}

func (f *memConfigFile) Read(p []byte) (int, error) {
	if f.platform.shouldFail(CallRead) {
		return 0, log.Errorf("injected: read failure on volume (%d)", f.index)
	}

	return f.buf.Read(p)
}

func (f *memConfigFile) Write(p []byte) (int, error) {
	if f.platform.shouldFail(CallWrite) {
		return 0, log.Errorf("injected: write failure on volume (%d)", f.index)
	}

	f.written = append(f.written, p...)

	return len(p), nil
}

func (f *memConfigFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.platform.shouldFail(CallClose) {
		return log.Errorf("injected: close failure on volume (%d)", f.index)
	}

	if f.mode == bootselect.ModeReadWrite && f.written != nil {
		f.platform.Partitions[f.index] = f.written
		f.platform.Writes[f.index] = f.written
	}

	return nil
}
