// This package manages the redundant boot-configuration selector: given a
// handful of partition-resident environment records, it picks the one to
// boot, advances the A/B update state machine, and reports a health verdict.

package bootselect

// VolumeIndex identifies one candidate partition. It is stable for the
// duration of a single selection.
type VolumeIndex int

// FileMode describes the access mode a Platform should open a config file
// with.
type FileMode int

const (
	// ModeReadOnly opens the config file for the initial per-volume load.
	ModeReadOnly FileMode = iota
	// ModeReadWrite opens the config file for a state-transition write-back.
	ModeReadWrite
)

// Volume is the minimal external volume descriptor this package depends on:
// an identity, an opaque device-path used only for boot-volume comparison,
// and whatever the host's file-protocol root looks like (opaque to this
// package; it is handed back to Platform.OpenConfig unexamined).
type Volume struct {
	Index      VolumeIndex
	DevicePath string
	Root       interface{}
}

// ConfigFile is a single open config-file handle. Implementations must
// support being opened in ModeReadOnly for reads and ModeReadWrite for
// write-backs; Close must be safe to call exactly once.
type ConfigFile interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
}

// Platform bundles every external collaborator this package treats as out of
// scope: volume enumeration, platform-specific filtering, boot-volume
// identity, file I/O, CRC-32 computation, and index-vector allocation. A
// real firmware binds this to UEFI simple-file-system calls and the board's
// CalculateCrc32 runtime service; tests bind it to bootselecttest.MemPlatform
// and the CLI tools to rawplatform.DirPlatform.
//
// Every method here is a seam a test harness must be able to fail
// independently, so that an error-injection suite can exercise one failing
// call at a time without the others being affected.
type Platform interface {
	// EnumerateConfigParts returns the indices of volumes that contain a
	// config file, in host-enumeration order.
	EnumerateConfigParts(volumes []Volume) ([]VolumeIndex, error)

	// FilterConfigParts removes indices this platform disallows (e.g.
	// partitions that reside on a non-boot disk) from the given list.
	FilterConfigParts(volumes []Volume, indices []VolumeIndex) ([]VolumeIndex, error)

	// IsOnBootVolume reports whether devicePath identifies the volume the
	// firmware itself booted from.
	IsOnBootVolume(devicePath string) bool

	// OpenConfig opens the well-known config-file path within volume's root.
	OpenConfig(volume Volume, mode FileMode) (ConfigFile, error)

	// CRC32 computes the IEEE CRC-32 of data.
	CRC32(data []byte) (uint32, error)

	// AllocateIndexVector reserves space for n volume indices. Real firmware
	// environments have a fixed, pre-OS heap; this seam lets a test harness
	// simulate exhaustion of it.
	AllocateIndexVector(n int) ([]VolumeIndex, error)
}
