// Package rawplatform is a Platform implementation over real files in a
// directory, one config file per simulated partition. It backs the
// bootselect-sim and bootselect-dump command-line tools.
package rawplatform

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dsoprea/go-logging"

	"github.com/fwguard/go-bootselect"
)

const filePrefix = "cfg"

// DirPlatform implements bootselect.Platform over a directory of files
// named cfg0, cfg1, ... (one per simulated config partition).
type DirPlatform struct {
	Dir               string
	BootDevicePath    string
	ExcludedVolumeIdx map[bootselect.VolumeIndex]bool
}

// NewDirPlatform returns a DirPlatform rooted at dir.
func NewDirPlatform(dir string) *DirPlatform {
	return &DirPlatform{
		Dir:               dir,
		ExcludedVolumeIdx: make(map[bootselect.VolumeIndex]bool),
	}
}

// ScanVolumes lists dir for cfgN files and returns one Volume per match, in
// index order.
func (p *DirPlatform) ScanVolumes() (volumes []bootselect.Volume, err error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, log.Wrap(err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}

		n, convErr := strconv.Atoi(strings.TrimPrefix(entry.Name(), filePrefix))
		if convErr != nil {
			continue
		}

		idx := bootselect.VolumeIndex(n)
		volumes = append(volumes, bootselect.Volume{
			Index:      idx,
			DevicePath: fmt.Sprintf("%s/%s", p.Dir, entry.Name()),
		})
	}

	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Index < volumes[j].Index })

	return volumes, nil
}

func (p *DirPlatform) configPath(volume bootselect.Volume) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%s%d", filePrefix, volume.Index))
}

func (p *DirPlatform) EnumerateConfigParts(volumes []bootselect.Volume) ([]bootselect.VolumeIndex, error) {
	indices := make([]bootselect.VolumeIndex, 0, len(volumes))
	for _, v := range volumes {
		if _, err := os.Stat(p.configPath(v)); err == nil {
			indices = append(indices, v.Index)
		}
	}

	return indices, nil
}

func (p *DirPlatform) FilterConfigParts(volumes []bootselect.Volume, indices []bootselect.VolumeIndex) ([]bootselect.VolumeIndex, error) {
	filtered := make([]bootselect.VolumeIndex, 0, len(indices))
	for _, idx := range indices {
		if !p.ExcludedVolumeIdx[idx] {
			filtered = append(filtered, idx)
		}
	}

	return filtered, nil
}

func (p *DirPlatform) IsOnBootVolume(devicePath string) bool {
	return p.BootDevicePath != "" && devicePath == p.BootDevicePath
}

func (p *DirPlatform) OpenConfig(volume bootselect.Volume, mode bootselect.FileMode) (bootselect.ConfigFile, error) {
	flags := os.O_RDONLY
	if mode == bootselect.ModeReadWrite {
		flags = os.O_RDWR | os.O_CREATE
	}

	f, err := os.OpenFile(p.configPath(volume), flags, 0o644)
	if err != nil {
		return nil, log.Wrap(err)
	}

	return f, nil
}

func (p *DirPlatform) CRC32(data []byte) (uint32, error) {
	return crc32.ChecksumIEEE(data), nil
}

func (p *DirPlatform) AllocateIndexVector(n int) ([]bootselect.VolumeIndex, error) {
	return make([]bootselect.VolumeIndex, n), nil
}

// crc32Platform is just enough of a Platform for DecodeForDump, which has
// no volumes or files to open.
type crc32Platform struct{}

func (crc32Platform) EnumerateConfigParts([]bootselect.Volume) ([]bootselect.VolumeIndex, error) {
	return nil, nil
}
func (crc32Platform) FilterConfigParts(_ []bootselect.Volume, indices []bootselect.VolumeIndex) ([]bootselect.VolumeIndex, error) {
	return indices, nil
}
func (crc32Platform) IsOnBootVolume(string) bool { return false }
func (crc32Platform) OpenConfig(bootselect.Volume, bootselect.FileMode) (bootselect.ConfigFile, error) {
	return nil, log.Errorf("not supported")
}
func (crc32Platform) CRC32(data []byte) (uint32, error) { return crc32.ChecksumIEEE(data), nil }
func (crc32Platform) AllocateIndexVector(n int) ([]bootselect.VolumeIndex, error) {
	return make([]bootselect.VolumeIndex, n), nil
}

// DecodeForDump decodes raw into a record for the bootselect-dump tool,
// which has no volume/platform context of its own — just one file's bytes.
func DecodeForDump(raw []byte) (bootselect.EnvironmentRecord, bool, error) {
	record, valid, err := bootselect.DecodeStandalone(crc32Platform{}, raw)
	return record, valid, err
}
