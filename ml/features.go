package ml

import (
	"fmt"

	"droughtdash/dataset"
)

func featureNames() []string {
	return dataset.FeatureNames()
}

// checkFeatureNames rejects exports trained on another column order. A missing
// list is accepted for hand-written models.
func checkFeatureNames(names []string) error {
	if len(names) == 0 {
		return nil
	}
	want := featureNames()
	if len(names) != len(want) {
		return fmt.Errorf("model has %d features, expected %d", len(names), len(want))
	}
	for i, name := range names {
		if name != want[i] {
			return fmt.Errorf("model feature %d is %q, expected %q", i, name, want[i])
		}
	}
	return nil
}
