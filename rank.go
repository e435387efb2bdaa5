package bootselect

// Candidate pairs a loaded EnvironmentRecord with the volume it came from.
// Present distinguishes a real candidate from an empty ranking slot.
type Candidate struct {
	Present     bool
	VolumeIndex VolumeIndex
	Record      EnvironmentRecord
}

// topK holds the ranker's working set: index 0 is the most-preferred
// candidate seen so far, index 1 the second-most, and index 2 is scratch
// space for the candidate currently being sifted in. Only ever needing a
// leader and a runner-up to fall back to, three slots — top-2 plus one
// scratch — are sufficient for all behavior, so the type keeps the third
// slot rather than reusing a local variable for it.
type topK [3]Candidate

// onBootVolumeFunc reports whether the volume with the given index is the
// one the firmware booted from. The ranker never talks to Platform
// directly; the selector closes over Platform.IsOnBootVolume and a
// volume-index lookup to build this.
type onBootVolumeFunc func(VolumeIndex) bool

// sift inserts candidate into t, maintaining the top-2 invariant: candidate
// starts at the scratch slot and is pairwise compared leftward, swapping
// whenever the right-hand side is preferred, until it settles or reaches
// index 0.
func (t *topK) sift(candidate Candidate, onBootVolume onBootVolumeFunc) {
	t[2] = candidate

	for i := 2; i > 0; i-- {
		if preferred(t[i], t[i-1], onBootVolume) {
			t[i], t[i-1] = t[i-1], t[i]
		} else {
			break
		}
	}
}

// preferred is the total order candidates are ranked by: true means a is
// strictly preferred over b as the next boot leader.
func preferred(a, b Candidate, onBootVolume onBootVolumeFunc) bool {
	// 1. A present candidate ≻ an absent slot.
	if a.Present != b.Present {
		return a.Present
	}
	if !a.Present {
		// Neither present; no ordering to establish.
		return false
	}

	// 2. in_progress = false ≻ in_progress = true.
	if a.Record.InProgress != b.Record.InProgress {
		return !a.Record.InProgress
	}

	// 3. Higher revision ≻ lower revision.
	if a.Record.Revision != b.Record.Revision {
		return a.Record.Revision > b.Record.Revision
	}

	// 4. Lower ustate-rank ≻ higher (INSTALLED=0, TESTING=1, OK=2, other=3).
	aRank, bRank := a.Record.Ustate.ustateRank(), b.Record.Ustate.ustateRank()
	if aRank != bRank {
		return aRank < bRank
	}

	// 5. On-boot-volume ≻ not-on-boot-volume.
	aBoot, bBoot := onBootVolume(a.VolumeIndex), onBootVolume(b.VolumeIndex)
	if aBoot != bBoot {
		return aBoot
	}

	// 6. Lower volume_index ≻ higher.
	if a.VolumeIndex != b.VolumeIndex {
		return a.VolumeIndex < b.VolumeIndex
	}

	// 7. Equal → no swap.
	return false
}
