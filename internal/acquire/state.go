// SPDX-License-Identifier: MPL-2.0

package acquire

// Acquisition states, in the order a fresh install visits them.
const (
	StateCheckExisting State = iota
	StateResolveAsset
	StateDownload
	StateVerifyChecksum
	StateExtract
	StateLocateRoot
	StateVerify
	StateSmokeTest
	StatePersist
	StateDone
	StateCleanup
)

type (
	// State is one step of an acquisition.
	State int

	// Progress reports a state transition or download progress. Total is -1
	// when the server did not advertise a length.
	Progress struct {
		State      State
		Version    string
		BuildDate  string
		Asset      string
		Downloaded int64
		Total      int64
	}

	// ProgressFunc receives progress events. It is called from the goroutine
	// running the acquisition and must not block.
	ProgressFunc func(Progress)
)

var stateNames = [...]string{
	StateCheckExisting:  "check-existing",
	StateResolveAsset:   "resolve-asset",
	StateDownload:       "download",
	StateVerifyChecksum: "verify-checksum",
	StateExtract:        "extract",
	StateLocateRoot:     "locate-root",
	StateVerify:         "verify",
	StateSmokeTest:      "smoke-test",
	StatePersist:        "persist",
	StateDone:           "done",
	StateCleanup:        "cleanup",
}

// String returns the state's kebab-case name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
