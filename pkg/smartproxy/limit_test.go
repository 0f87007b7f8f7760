// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultDynamicLimit() DynamicLimitConfig {
	return DynamicLimitConfig{
		MaxResults:    DefaultMaxResults,
		MinScore:      DefaultMinScore,
		DropThreshold: DefaultDropThreshold,
	}
}

func TestTruncateAtScoreDrop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		scores   []float64
		cfg      DynamicLimitConfig
		expected int
	}{
		{
			name:     "stops at significant drop",
			scores:   []float64{0.95, 0.93, 0.90, 0.50, 0.48},
			cfg:      defaultDynamicLimit(),
			expected: 3,
		},
		{
			name:     "all scores below floor yield nothing",
			scores:   []float64{0.20, 0.19},
			cfg:      defaultDynamicLimit(),
			expected: 0,
		},
		{
			name:     "near tied scores all pass",
			scores:   []float64{0.90, 0.88, 0.87, 0.85},
			cfg:      defaultDynamicLimit(),
			expected: 4,
		},
		{
			name:     "hard cap applies",
			scores:   []float64{0.9, 0.9, 0.9, 0.9, 0.9},
			cfg:      DynamicLimitConfig{MaxResults: 2, MinScore: 0.3, DropThreshold: 0.3},
			expected: 2,
		},
		{
			name:     "floor cuts the tail",
			scores:   []float64{0.9, 0.85, 0.25},
			cfg:      defaultDynamicLimit(),
			expected: 2,
		},
		{
			name:     "empty input",
			scores:   nil,
			cfg:      defaultDynamicLimit(),
			expected: 0,
		},
		{
			name:     "single passing score",
			scores:   []float64{0.5},
			cfg:      defaultDynamicLimit(),
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, truncateAtScoreDrop(tt.scores, tt.cfg))
		})
	}
}

// Raising maxResults never shrinks the output; raising minScore or
// lowering dropThreshold never grows it.
func TestTruncateAtScoreDrop_Monotonicity(t *testing.T) {
	t.Parallel()

	scores := []float64{0.97, 0.91, 0.80, 0.78, 0.55, 0.40, 0.22}

	base := DynamicLimitConfig{MaxResults: 3, MinScore: 0.3, DropThreshold: 0.3}
	baseline := truncateAtScoreDrop(scores, base)

	larger := base
	larger.MaxResults = 10
	assert.GreaterOrEqual(t, truncateAtScoreDrop(scores, larger), baseline)

	stricterFloor := base
	stricterFloor.MinScore = 0.8
	assert.LessOrEqual(t, truncateAtScoreDrop(scores, stricterFloor), baseline)

	stricterDrop := base
	stricterDrop.DropThreshold = 0.05
	assert.LessOrEqual(t, truncateAtScoreDrop(scores, stricterDrop), baseline)
}
