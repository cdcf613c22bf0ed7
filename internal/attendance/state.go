package attendance

// State is the position of a punch attempt in the verification pipeline.
type State int

const (
	StateIdle State = iota
	StateLocationPending
	StateLocationVerified
	StateFacePending
	StateFaceVerified
	StateDuplicateChecked
	StateRecorded
	StateRejected
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateLocationPending:  "location_pending",
	StateLocationVerified: "location_verified",
	StateFacePending:      "face_pending",
	StateFaceVerified:     "face_verified",
	StateDuplicateChecked: "duplicate_checked",
	StateRecorded:         "recorded",
	StateRejected:         "rejected",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRecorded || s == StateRejected
}
