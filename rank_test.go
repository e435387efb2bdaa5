package bootselect

import "testing"

func noBootVolume(VolumeIndex) bool { return false }

func bootVolume(target VolumeIndex) onBootVolumeFunc {
	return func(vi VolumeIndex) bool { return vi == target }
}

func present(idx VolumeIndex, revision uint32, ustate USTATE, inProgress bool) Candidate {
	return Candidate{
		Present:     true,
		VolumeIndex: idx,
		Record: EnvironmentRecord{
			Revision:   revision,
			Ustate:     ustate,
			InProgress: inProgress,
		},
	}
}

// TestTopK_HighestRevisionWins checks that with no candidate mid-write, the
// highest revision becomes the leader.
func TestTopK_HighestRevisionWins(t *testing.T) {
	var top topK
	top.sift(present(0, 1, UstateOK, false), noBootVolume)
	top.sift(present(1, 5, UstateOK, false), noBootVolume)
	top.sift(present(2, 3, UstateOK, false), noBootVolume)

	if top[0].VolumeIndex != 1 || top[0].Record.Revision != 5 {
		t.Fatalf("expected volume 1 (revision 5) to lead, got (%d) rev (%d)", top[0].VolumeIndex, top[0].Record.Revision)
	}
	if top[1].VolumeIndex != 2 || top[1].Record.Revision != 3 {
		t.Fatalf("expected volume 2 (revision 3) as runner-up, got (%d) rev (%d)", top[1].VolumeIndex, top[1].Record.Revision)
	}
}

// TestTopK_InProgressNeverLeads checks that a candidate still mid-write
// never becomes the leader, regardless of its revision.
func TestTopK_InProgressNeverLeads(t *testing.T) {
	var top topK
	top.sift(present(0, 9, UstateOK, true), noBootVolume)
	top.sift(present(1, 2, UstateOK, false), noBootVolume)

	if top[0].VolumeIndex != 1 {
		t.Fatalf("expected the non-in_progress, lower-revision candidate to lead, got (%d)", top[0].VolumeIndex)
	}
	if top[1].VolumeIndex != 0 || !top[1].Record.InProgress {
		t.Fatalf("expected the in_progress candidate to be relegated to runner-up")
	}
}

// TestTopK_UstateRankOrdering checks that, all else equal, a freshly
// installed update outranks one still on probation, which outranks a
// plain confirmed-good configuration, which outranks any other update
// state (here FAILED).
func TestTopK_UstateRankOrdering(t *testing.T) {
	var top topK
	top.sift(present(0, 1, UstateOK, false), noBootVolume)
	top.sift(present(1, 1, UstateFailed, false), noBootVolume)
	top.sift(present(2, 1, UstateTesting, false), noBootVolume)
	top.sift(present(3, 1, UstateInstalled, false), noBootVolume)

	if top[0].VolumeIndex != 3 {
		t.Fatalf("expected INSTALLED (volume 3) to lead, got (%d)", top[0].VolumeIndex)
	}
	if top[1].VolumeIndex != 2 {
		t.Fatalf("expected TESTING (volume 2) as runner-up, got (%d)", top[1].VolumeIndex)
	}
}

// TestTopK_BootVolumeTiebreak checks that with equal revision and update
// state, the candidate on the volume the firmware actually booted from
// wins.
func TestTopK_BootVolumeTiebreak(t *testing.T) {
	var top topK
	onBoot := bootVolume(1)

	top.sift(present(0, 1, UstateOK, false), onBoot)
	top.sift(present(1, 1, UstateOK, false), onBoot)

	if top[0].VolumeIndex != 1 {
		t.Fatalf("expected the boot-volume candidate (1) to win the tie, got (%d)", top[0].VolumeIndex)
	}
}

func TestTopK_VolumeIndexTiebreak(t *testing.T) {
	var top topK
	top.sift(present(5, 1, UstateOK, false), noBootVolume)
	top.sift(present(2, 1, UstateOK, false), noBootVolume)

	if top[0].VolumeIndex != 2 {
		t.Fatalf("expected the lower volume index (2) to win the tie, got (%d)", top[0].VolumeIndex)
	}
}

func TestTopK_AbsentSlotNeverLeads(t *testing.T) {
	var top topK
	top.sift(present(0, 1, UstateOK, false), noBootVolume)

	if top[1].Present {
		t.Fatalf("expected the runner-up slot to remain empty with only one candidate")
	}
}

func TestTopK_OnlyTopTwoSurvive(t *testing.T) {
	var top topK
	top.sift(present(0, 1, UstateOK, false), noBootVolume)
	top.sift(present(1, 2, UstateOK, false), noBootVolume)
	top.sift(present(2, 3, UstateOK, false), noBootVolume)

	if top[0].Record.Revision != 3 || top[1].Record.Revision != 2 {
		t.Fatalf("expected the two highest revisions to survive, got (%d) and (%d)", top[0].Record.Revision, top[1].Record.Revision)
	}
}
