package domain

// Verdict is the three-valued answer of a membership test. VerdictNoRecord
// means the key is not tracked at all, which is a caller error rather than a
// heuristic answer.
type Verdict uint8

const (
	VerdictNoRecord Verdict = iota
	VerdictAbsent
	VerdictPresent
)

// Found reports whether the item was (probably) present.
func (v Verdict) Found() bool { return v == VerdictPresent }

// HasRecord reports whether the key was tracked when the test ran.
func (v Verdict) HasRecord() bool { return v != VerdictNoRecord }

func (v Verdict) String() string {
	switch v {
	case VerdictAbsent:
		return "absent"
	case VerdictPresent:
		return "present"
	default:
		return "no-record"
	}
}
