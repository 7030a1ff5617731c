package matching

import (
	"strings"
	"testing"
)

func TestCriterionValidate(t *testing.T) {
	for _, test := range []struct {
		name string
		c    Criterion
		ok   bool
	}{
		{name: "good", c: Criterion{Topic: "chess", Size: 2}, ok: true},
		{name: "goodLarge", c: Criterion{Topic: "quiz night", Size: MaxGroupSize}, ok: true},
		{name: "soloGroup", c: Criterion{Topic: "chess", Size: 1}, ok: true},
		{name: "emptyTopic", c: Criterion{Topic: "", Size: 2}},
		{name: "longTopic", c: Criterion{Topic: strings.Repeat("a", MaxTopicLen+1), Size: 2}},
		{name: "paddedTopic", c: Criterion{Topic: " chess", Size: 2}},
		{name: "controlTopic", c: Criterion{Topic: "che\nss", Size: 2}},
		{name: "zeroSize", c: Criterion{Topic: "chess", Size: 0}},
		{name: "negativeSize", c: Criterion{Topic: "chess", Size: -1}},
		{name: "hugeSize", c: Criterion{Topic: "chess", Size: MaxGroupSize + 1}},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.c.Validate()
			if test.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !test.ok && err == nil {
				t.Fatalf("expected error for %+v", test.c)
			}
		})
	}
}
