package features

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// UnknownCode is returned for protocol labels absent from the trained table.
// No trained class ever receives a negative code, so the value cannot collide
// with a real one, and trees route it down the "<= threshold" branch of every
// split on protocol_type.
const UnknownCode = -1

// encoderArtifact is the on-disk label table: the classes_ array of the
// trained label encoder, in code order.
type encoderArtifact struct {
	Classes []string `json:"classes"`
}

// LabelEncoder is the Category Encoder Adapter over a trained label table.
// It is safe for concurrent use.
type LabelEncoder struct {
	codes   map[string]int
	classes []string
	unknown atomic.Uint64
}

// LoadLabelEncoder reads the label table at path.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoder artifact: %w", err)
	}
	var art encoderArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to decode encoder artifact '%s': %w", path, err)
	}
	return NewLabelEncoder(art.Classes)
}

// NewLabelEncoder builds an encoder where classes[i] encodes to i.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("encoder artifact has no classes")
	}
	e := &LabelEncoder{codes: make(map[string]int, len(classes))}
	for i, c := range classes {
		key := normalize(c)
		if key == "" {
			return nil, fmt.Errorf("encoder class %d is empty", i)
		}
		if _, dup := e.codes[key]; dup {
			return nil, fmt.Errorf("encoder class '%s' appears twice", c)
		}
		e.codes[key] = i
		e.classes = append(e.classes, key)
	}
	return e, nil
}

// Encode returns the trained code for label, or UnknownCode. Labels are
// compared trimmed and lower-cased.
func (e *LabelEncoder) Encode(label string) int {
	if code, ok := e.codes[normalize(label)]; ok {
		return code
	}
	e.unknown.Add(1)
	return UnknownCode
}

// Classes returns the trained labels in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// UnknownCount returns how many lookups fell back to UnknownCode.
func (e *LabelEncoder) UnknownCount() uint64 {
	return e.unknown.Load()
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
