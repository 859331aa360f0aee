package model

import "strings"

// InstructionKind is the assignment rule selected by an instruction.
type InstructionKind int

const (
	InstructionDefault InstructionKind = iota
	InstructionNovice
	InstructionTrouble
)

// String returns a human-readable representation of the instruction kind.
func (k InstructionKind) String() string {
	switch k {
	case InstructionDefault:
		return "default"
	case InstructionNovice:
		return "novice"
	case InstructionTrouble:
		return "trouble"
	default:
		return "unknown"
	}
}

// ParseInstructionKind converts the String form back to a kind.
func ParseInstructionKind(s string) (InstructionKind, bool) {
	switch s {
	case "default":
		return InstructionDefault, true
	case "novice":
		return InstructionNovice, true
	case "trouble":
		return InstructionTrouble, true
	default:
		return 0, false
	}
}

func (k InstructionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *InstructionKind) UnmarshalText(b []byte) error {
	v, ok := ParseInstructionKind(string(b))
	if !ok {
		v = InstructionDefault
	}
	*k = v
	return nil
}

// Default keywords. Both the English and the Japanese token of the original
// dashboard presets are recognised.
var (
	DefaultNoviceKeywords  = []string{"novice", "新人"}
	DefaultTroubleKeywords = []string{"trouble", "トラブル"}
)

// Classifier maps free-text instructions onto the closed set of
// InstructionKinds using case-sensitive substring containment. The novice
// keywords are checked before the trouble keywords; anything else falls
// into InstructionDefault.
type Classifier struct {
	Novice  []string
	Trouble []string
}

// NewClassifier returns a classifier using the given keywords, falling back to
// the defaults for empty lists.
func NewClassifier(novice, trouble []string) Classifier {
	if len(novice) == 0 {
		novice = DefaultNoviceKeywords
	}
	if len(trouble) == 0 {
		trouble = DefaultTroubleKeywords
	}
	return Classifier{Novice: novice, Trouble: trouble}
}

// Classify returns the rule selected by the instruction text.
func (c Classifier) Classify(instruction string) InstructionKind {
	if containsAny(instruction, c.Novice) {
		return InstructionNovice
	}
	if containsAny(instruction, c.Trouble) {
		return InstructionTrouble
	}
	return InstructionDefault
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
