package bootselect

import (
	"github.com/dsoprea/go-logging"
)

// transitionOutcome is the result of applying the state-transition rules to
// a ranked top-2: either a usable effective candidate, or a hard failure
// that must become CONFIG_ERROR. A hard failure carries no write-back except
// when a TESTING leader was demoted and no runner-up was left to fall back to.
type transitionOutcome struct {
	effective Candidate
	hardFail  bool
	errored   bool // soft: a write-back failed but the effective candidate still stands
}

// applyTransition advances the A/B update state machine for the ranked
// leader and runner-up: a leader still mid-write is unusable, a leader on
// probation that was never confirmed gets demoted and falls back to the
// runner-up, and a freshly installed leader is promoted into its own
// probation period before it is trusted again. volumeByIndex resolves a
// VolumeIndex back to the Volume a write-back should target.
func applyTransition(platform Platform, leader, runnerUp Candidate, volumeByIndex func(VolumeIndex) (Volume, bool)) transitionOutcome {
	// Rule 1: no leader, or leader mid-write.
	if !leader.Present || leader.Record.InProgress {
		return transitionOutcome{hardFail: true}
	}

	switch leader.Record.Ustate {
	case UstateTesting:
		// Rule 2: the previous boot attempted to verify this update and
		// rebooted without confirming it. Demote and fall back.
		failed := leader
		failed.Record.Ustate = UstateFailed
		failed.Record.Revision = RevisionFailed

		errored := writeBackLeader(platform, failed, volumeByIndex)

		if !runnerUp.Present {
			return transitionOutcome{hardFail: true, errored: errored}
		}

		return transitionOutcome{effective: runnerUp, errored: errored}

	case UstateInstalled:
		// Rule 3: first boot of a freshly installed configuration.
		testing := leader
		testing.Record.Ustate = UstateTesting

		errored := writeBackLeader(platform, testing, volumeByIndex)

		return transitionOutcome{effective: testing, errored: errored}

	default:
		// Rule 4: leader stands unchanged.
		return transitionOutcome{effective: leader}
	}
}

// writeBackLeader persists mutated's record to its own volume. Failures are
// logged and folded into the soft `errored` flag; a leader whose update
// state can still be advanced in memory should still boot, so a failed
// write-back never aborts selection outright.
func writeBackLeader(platform Platform, mutated Candidate, volumeByIndex func(VolumeIndex) (Volume, bool)) (errored bool) {
	volume, found := volumeByIndex(mutated.VolumeIndex)
	if !found {
		log.PrintError(log.Wrap(log.Errorf("write-back: volume (%d) no longer resolvable", mutated.VolumeIndex)))
		return true
	}

	if err := WriteRecord(platform, volume, mutated.Record); err != nil {
		log.PrintError(log.Wrap(err))
		return true
	}

	return false
}
