package bootselect

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

// defaultEncoding is the on-disk byte order for EnvironmentRecord: fields
// are stored little-endian.
var defaultEncoding = binary.LittleEndian

const (
	kernelFileCodeUnits   = 256
	kernelParamsCodeUnits = 256

	// envRecordSize is the fixed on-disk size of EnvironmentRecord: it must
	// stay in lock-step with the struct below (4 + 1 + 3 + 2 + 2 +
	// 256*2 + 256*2 + 4).
	envRecordSize = 4 + 1 + 3 + 2 + 2 + kernelFileCodeUnits*2 + kernelParamsCodeUnits*2 + 4
)

// RevisionFailed is the sentinel revision value written onto a leader that
// failed its TESTING probation. It compares lower than any valid revision,
// which this package's caller-assigned revisions must therefore start above.
const RevisionFailed uint32 = 0

// USTATE is the A/B update state of one configuration.
type USTATE uint16

const (
	UstateOK        USTATE = 0
	UstateInstalled USTATE = 1
	UstateTesting   USTATE = 2
	UstateFailed    USTATE = 3
)

// ustateRank orders update states for ranking, lower first: a freshly
// installed update ranks above one mid-probation, which ranks above a plain
// confirmed-good configuration, which ranks above anything else (FAILED or
// unrecognized on disk).
func (u USTATE) ustateRank() int {
	switch u {
	case UstateInstalled:
		return 0
	case UstateTesting:
		return 1
	case UstateOK:
		return 2
	default:
		return 3
	}
}

// String renders a USTATE for logging.
func (u USTATE) String() string {
	switch u {
	case UstateOK:
		return "OK"
	case UstateInstalled:
		return "INSTALLED"
	case UstateTesting:
		return "TESTING"
	case UstateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// EnvironmentRecord is the fixed-size binary record stored on each config
// partition. Field order and sizes are fixed by envRecordSize above; CRC32
// covers every preceding byte.
type EnvironmentRecord struct {
	Revision           uint32
	InProgress         bool
	Reserved           [3]byte // must be zero; pads InProgress to a 4-byte boundary
	Ustate             USTATE
	WatchdogTimeoutSec uint16
	KernelFile         [kernelFileCodeUnits]uint16
	KernelParams       [kernelParamsCodeUnits]uint16
	CRC32              uint32
}

// decodeUCS2 converts a NUL-padded array of UCS-2 code units into a Go
// string, truncating at the first NUL.
func decodeUCS2(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for _, u := range units {
		if u == 0 {
			break
		}
		decoded := utf16.Decode([]uint16{u})
		runes = append(runes, decoded...)
	}
	return string(runes)
}

// encodeUCS2 writes s into dst as NUL-terminated UCS-2, truncating s if it
// does not fit (leaving room for the trailing NUL).
func encodeUCS2(s string, dst []uint16) {
	for i := range dst {
		dst[i] = 0
	}

	encoded := utf16.Encode([]rune(s))
	n := len(encoded)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}

	copy(dst[:n], encoded[:n])
	dst[n] = 0
}

// crcOf computes the CRC-32 this record should carry: the IEEE checksum of
// every byte except the trailing CRC32 field itself.
func crcOf(platform Platform, raw []byte) (uint32, error) {
	if len(raw) != envRecordSize {
		return 0, log.Errorf("bad_length: expected (%d) bytes, got (%d)", envRecordSize, len(raw))
	}

	return platform.CRC32(raw[:envRecordSize-4])
}

// decodeRecord unpacks raw into an EnvironmentRecord and validates its
// length and CRC. A length mismatch or CRC mismatch is reported as an error;
// on a length mismatch the zero-value record is returned, on a CRC mismatch
// the unpacked record is still returned for diagnostic logging.
func decodeRecord(platform Platform, raw []byte) (record EnvironmentRecord, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("decodeRecord: non-error panic: %v", errRaw)
			}
		}
	}()

	if len(raw) != envRecordSize {
		return EnvironmentRecord{}, log.Errorf("bad_length: expected (%d) bytes, got (%d)", envRecordSize, len(raw))
	}

	err = restruct.Unpack(raw, defaultEncoding, &record)
	log.PanicIf(err)

	computed, err := crcOf(platform, raw)
	log.PanicIf(err)

	if computed != record.CRC32 {
		return record, log.Errorf("crc_error: computed (0x%08x) != stored (0x%08x)", computed, record.CRC32)
	}

	// Defensive NUL-termination: force the last code unit of each string to
	// NUL regardless of what was on disk.
	record.KernelFile[len(record.KernelFile)-1] = 0
	record.KernelParams[len(record.KernelParams)-1] = 0

	return record, nil
}

// encodeRecord assigns record's CRC32 field and packs the whole fixed-size
// block in one operation rather than field-by-field.
func encodeRecord(platform Platform, record EnvironmentRecord) (raw []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("encodeRecord: non-error panic: %v", errRaw)
			}
		}
	}()

	record.CRC32 = 0

	raw, err = restruct.Pack(defaultEncoding, &record)
	log.PanicIf(err)

	if len(raw) != envRecordSize {
		return nil, log.Errorf("bad_length: packed (%d) bytes, expected (%d)", len(raw), envRecordSize)
	}

	crc, err := crcOf(platform, raw)
	log.PanicIf(err)

	defaultEncoding.PutUint32(raw[envRecordSize-4:], crc)

	return raw, nil
}

// DecodeStandalone decodes raw into a record for inspection tools, without
// treating a CRC mismatch as fatal: it reports validity as a bool alongside
// whatever fields could still be unpacked, which LoadRecord deliberately
// does not do (a CRC-invalid record must never be ranked as a candidate).
func DecodeStandalone(platform Platform, raw []byte) (record EnvironmentRecord, crcValid bool, err error) {
	if len(raw) != envRecordSize {
		return EnvironmentRecord{}, false, log.Errorf("bad_length: expected (%d) bytes, got (%d)", envRecordSize, len(raw))
	}

	if err = restruct.Unpack(raw, defaultEncoding, &record); err != nil {
		return EnvironmentRecord{}, false, log.Wrap(err)
	}

	computed, err := crcOf(platform, raw)
	if err != nil {
		return record, false, log.Wrap(err)
	}

	return record, computed == record.CRC32, nil
}

// KernelFileString returns the decoded kernel file path.
func (r EnvironmentRecord) KernelFileString() string {
	return decodeUCS2(r.KernelFile[:])
}

// KernelParamsString returns the decoded kernel parameters.
func (r EnvironmentRecord) KernelParamsString() string {
	return decodeUCS2(r.KernelParams[:])
}

// SetKernelFile encodes s as the record's kernel-file field.
func (r *EnvironmentRecord) SetKernelFile(s string) {
	encodeUCS2(s, r.KernelFile[:])
}

// SetKernelParams encodes s as the record's kernel-parameters field.
func (r *EnvironmentRecord) SetKernelParams(s string) {
	encodeUCS2(s, r.KernelParams[:])
}
