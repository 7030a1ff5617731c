package matching

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	MaxTopicLen  = 255
	MaxGroupSize = 64
)

// Criterion is the matching key: two requests are compatible iff their
// criteria are equal. Being a comparable value type, equality is plain ==.
type Criterion struct {
	Topic string `json:"topic" toml:"topic"`
	Size  int    `json:"size" toml:"size"`
}

func (c Criterion) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("empty topic")
	}
	if len(c.Topic) > MaxTopicLen {
		return fmt.Errorf("topic longer than %v bytes", MaxTopicLen)
	}
	if strings.TrimSpace(c.Topic) != c.Topic {
		return fmt.Errorf("topic has leading or trailing whitespace")
	}
	for _, r := range c.Topic {
		if unicode.IsControl(r) {
			return fmt.Errorf("topic contains control characters")
		}
	}
	if c.Size < 1 {
		return fmt.Errorf("group size must be at least 1")
	}
	if c.Size > MaxGroupSize {
		return fmt.Errorf("group size larger than %v", MaxGroupSize)
	}
	return nil
}

func (c Criterion) String() string {
	return fmt.Sprintf("%v/%v", c.Topic, c.Size)
}
