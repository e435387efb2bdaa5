package bootselect

import (
	"context"
	"time"

	"github.com/dsoprea/go-logging"
)

// Verdict is the summary outcome of a selection.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	VerdictPartiallyCorrupted
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "SUCCESS"
	case VerdictPartiallyCorrupted:
		return "CONFIG_PARTIALLY_CORRUPTED"
	case VerdictError:
		return "CONFIG_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Config bundles the host-defined constants the selector needs: the
// compile-time expected redundancy, and the timeout fallback used when a
// chosen record's own watchdog_timeout_sec is absent or zero.
type Config struct {
	ExpectedConfigParts int
	DefaultTimeout      time.Duration
}

// LoaderParams is the caller-owned hand-off to the downstream loader. Its
// string fields are independent copies of the chosen record's strings and
// outlive the EnvironmentRecord they were read from.
type LoaderParams struct {
	PayloadPath    string
	PayloadOptions string
	Timeout        time.Duration
}

// warn reports a non-fatal selection anomaly to the log without aborting
// the call in progress.
func warn(format string, args ...interface{}) {
	log.PrintError(log.Errorf(format, args...))
}

// Select drives enumeration, filtering, per-volume loads, ranking,
// transition, and hand-off. It never returns a non-nil error for a
// recoverable condition — those are folded into Verdict — reserving the
// error return for context cancellation, which lets a long-running
// simulator abort a large scan.
func Select(ctx context.Context, platform Platform, volumes []Volume, cfg Config) (LoaderParams, Verdict, error) {
	if len(volumes) == 0 {
		warn("no volumes supplied")
		return LoaderParams{}, VerdictError, nil
	}

	// The index vector is exclusively owned by this call for its duration;
	// Go's allocator reclaims it once Select returns on any path, without a
	// manual free.
	if _, err := platform.AllocateIndexVector(len(volumes)); err != nil {
		warn("index-vector allocation failed: %s", err)
		return LoaderParams{}, VerdictError, nil
	}

	indices, err := platform.EnumerateConfigParts(volumes)
	if err != nil {
		warn("enumeration failed: %s", err)
		return LoaderParams{}, VerdictError, nil
	}

	indices, err = platform.FilterConfigParts(volumes, indices)
	if err != nil {
		warn("filtering failed: %s", err)
		return LoaderParams{}, VerdictError, nil
	}

	errored := false

	if cfg.ExpectedConfigParts > 0 && len(indices) != cfg.ExpectedConfigParts {
		warn("expected (%d) config partitions, found (%d)", cfg.ExpectedConfigParts, len(indices))
		errored = true
	}

	volumeByIndex := indexVolumeLookup(volumes)
	onBootVolume := func(vi VolumeIndex) bool {
		volume, found := volumeByIndex(vi)
		return found && platform.IsOnBootVolume(volume.DevicePath)
	}

	var ranked topK
	for _, idx := range indices {
		select {
		case <-ctx.Done():
			warn("selection canceled: %s", ctx.Err())
			return LoaderParams{}, VerdictError, ctx.Err()
		default:
		}

		volume, found := volumeByIndex(idx)
		if !found {
			warn("volume (%d) skipped: not among the supplied volumes", idx)
			errored = true
			continue
		}

		record, readErrored, loadErr := LoadRecord(platform, volume)
		if loadErr != nil {
			warn("volume (%d) skipped: %s", idx, loadErr)
			errored = true
			continue
		}
		if readErrored {
			warn("volume (%d) loaded with a soft read anomaly", idx)
			errored = true
		}

		ranked.sift(Candidate{Present: true, VolumeIndex: idx, Record: record}, onBootVolume)
	}

	outcome := applyTransition(platform, ranked[0], ranked[1], volumeByIndex)
	if outcome.errored {
		errored = true
	}

	if outcome.hardFail {
		warn("no viable leader after ranking and transition")
		return LoaderParams{}, VerdictError, nil
	}

	timeout := time.Duration(outcome.effective.Record.WatchdogTimeoutSec) * time.Second
	if outcome.effective.Record.WatchdogTimeoutSec == 0 {
		timeout = cfg.DefaultTimeout
	}

	params := LoaderParams{
		PayloadPath:    outcome.effective.Record.KernelFileString(),
		PayloadOptions: outcome.effective.Record.KernelParamsString(),
		Timeout:        timeout,
	}

	if errored {
		return params, VerdictPartiallyCorrupted, nil
	}

	return params, VerdictSuccess, nil
}

func indexVolumeLookup(volumes []Volume) func(VolumeIndex) (Volume, bool) {
	byIndex := make(map[VolumeIndex]Volume, len(volumes))
	for _, v := range volumes {
		byIndex[v.Index] = v
	}

	return func(vi VolumeIndex) (Volume, bool) {
		v, found := byIndex[vi]
		return v, found
	}
}
