// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func defaultTruncation() TruncationConfig {
	return TruncationConfig{
		Delimiter:  DefaultTruncationDelimiter,
		Occurrence: DefaultTruncationOccurrence,
		MinLength:  DefaultTruncationMinLength,
	}
}

func TestTruncateDescription(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		description string
		cfg         TruncationConfig
		expected    string
	}{
		{
			name:        "cuts at first newline with defaults",
			description: "A long paragraph.\n{schema: ...}",
			cfg:         defaultTruncation(),
			expected:    "A long paragraph.",
		},
		{
			name:        "disabled returns input unchanged",
			description: "A long paragraph.\n{schema: ...}",
			cfg: TruncationConfig{
				Enabled:    boolPtr(false),
				Delimiter:  "\n",
				Occurrence: 1,
				MinLength:  5,
			},
			expected: "A long paragraph.\n{schema: ...}",
		},
		{
			name:        "empty input returns empty",
			description: "",
			cfg:         defaultTruncation(),
			expected:    "",
		},
		{
			name:        "no delimiter occurrence returns full description",
			description: "Single line without breaks.",
			cfg:         defaultTruncation(),
			expected:    "Single line without breaks.",
		},
		{
			name:        "short prefix falls through to next occurrence",
			description: "Hi\nReturns the weather forecast.\n{schema: ...}",
			cfg:         defaultTruncation(),
			expected:    "Hi\nReturns the weather forecast.",
		},
		{
			name:        "no occurrence meets min length returns full description",
			description: "Hi\nA\nNo",
			cfg:         defaultTruncation(),
			expected:    "Hi\nA\nNo",
		},
		{
			name:        "respects later occurrence setting",
			description: "First part.\nSecond part.\nThird part.",
			cfg: TruncationConfig{
				Delimiter:  "\n",
				Occurrence: 2,
				MinLength:  5,
			},
			expected: "First part.\nSecond part.",
		},
		{
			name:        "custom delimiter",
			description: "Summary text. | internal: details",
			cfg: TruncationConfig{
				Delimiter:  " | ",
				Occurrence: 1,
				MinLength:  5,
			},
			expected: "Summary text.",
		},
		{
			name:        "prefix is whitespace trimmed",
			description: "Trimmed text.   \nrest",
			cfg:         defaultTruncation(),
			expected:    "Trimmed text.",
		},
		{
			name:        "min length zero accepts empty prefix",
			description: "\nrest of it",
			cfg: TruncationConfig{
				Delimiter:  "\n",
				Occurrence: 1,
				MinLength:  0,
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, truncateDescription(tt.description, tt.cfg))
		})
	}
}
