// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

import "strings"

// truncateDescription cuts a tool description at a delimiter occurrence
// for embedding. Occurrences are tested in turn starting at
// cfg.Occurrence; the first whitespace-trimmed prefix of length >=
// cfg.MinLength wins. When no occurrence yields a long-enough prefix the
// original description is returned: a near-empty truncation would
// collapse the similarity geometry.
func truncateDescription(description string, cfg TruncationConfig) string {
	if !cfg.IsEnabled() || description == "" || cfg.Delimiter == "" {
		return description
	}

	count := 0
	offset := 0
	for {
		i := strings.Index(description[offset:], cfg.Delimiter)
		if i < 0 {
			return description
		}
		pos := offset + i
		count++

		if count >= cfg.Occurrence {
			prefix := strings.TrimSpace(description[:pos])
			if len(prefix) >= cfg.MinLength {
				return prefix
			}
		}

		offset = pos + len(cfg.Delimiter)
		if offset >= len(description) {
			return description
		}
	}
}
