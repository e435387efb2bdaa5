package bootselect

import (
	"io"

	"github.com/dsoprea/go-logging"
)

// LoadRecord attempts to open, read, and close volume's config file in
// sequence. It returns (record, readErrored, err): err is non-nil whenever
// the candidate must be skipped entirely (open failure, read failure,
// length mismatch, CRC failure); readErrored is set alongside err in that
// case, but may also be set with err == nil when the read itself succeeded
// but the subsequent Close failed: the bytes already read and CRC-verified
// are still trustworthy, so the record stays usable and the flag is only a
// warning for the caller to fold into its own health accounting.
func LoadRecord(platform Platform, volume Volume) (record EnvironmentRecord, readErrored bool, err error) {
	cf, err := platform.OpenConfig(volume, ModeReadOnly)
	if err != nil {
		return EnvironmentRecord{}, true, log.Errorf("volume (%d): open failed: %s", volume.Index, err)
	}

	raw := make([]byte, envRecordSize)
	_, readErr := io.ReadFull(asReader(cf), raw)

	if readErr != nil {
		// A failed close after a failed read carries no additional meaning;
		// report the read failure.
		_ = cf.Close()
		return EnvironmentRecord{}, true, log.Errorf("volume (%d): read failed: %s", volume.Index, readErr)
	}

	record, decodeErr := decodeRecord(platform, raw)
	if decodeErr != nil {
		_ = cf.Close()
		return EnvironmentRecord{}, true, log.Errorf("volume (%d): %s", volume.Index, decodeErr)
	}

	if closeErr := cf.Close(); closeErr != nil {
		// Soft anomaly: the record is valid and still used, but the caller
		// must fold this into the overall verdict.
		return record, true, nil
	}

	return record, false, nil
}

// WriteRecord opens volume's config file for read-write access, packs
// record into its fixed-size wire form, and writes it in one operation. A
// short write is treated as a failure. Close is checked too, not deferred
// away: some Platform implementations only commit a write-back to durable
// storage on Close, so a close failure here means the record was never
// actually persisted and must be reported exactly like a write failure.
func WriteRecord(platform Platform, volume Volume, record EnvironmentRecord) (err error) {
	raw, err := encodeRecord(platform, record)
	if err != nil {
		return log.Errorf("volume (%d): encode failed: %s", volume.Index, err)
	}

	cf, err := platform.OpenConfig(volume, ModeReadWrite)
	if err != nil {
		return log.Errorf("volume (%d): open for write-back failed: %s", volume.Index, err)
	}

	n, writeErr := cf.Write(raw)
	if writeErr != nil {
		_ = cf.Close()
		return log.Errorf("volume (%d): write-back failed: %s", volume.Index, writeErr)
	}

	if n != len(raw) {
		_ = cf.Close()
		return log.Errorf("volume (%d): short write-back: (%d) != (%d)", volume.Index, n, len(raw))
	}

	if closeErr := cf.Close(); closeErr != nil {
		return log.Errorf("volume (%d): close after write-back failed: %s", volume.Index, closeErr)
	}

	return nil
}

// asReader adapts a ConfigFile (which only needs to support Read for this
// call) to io.Reader so io.ReadFull can drive the fixed-size read.
func asReader(cf ConfigFile) io.Reader {
	return readerFunc(cf.Read)
}

type readerFunc func(buf []byte) (int, error)

func (f readerFunc) Read(buf []byte) (int, error) { return f(buf) }
