// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

// truncateAtScoreDrop reduces a monotonically-descending score list to
// its leading plateau and returns how many results to keep. The walk
// stops at the hard cap, at the first score under the absolute floor, or
// at the first relative drop exceeding cfg.DropThreshold. This turns
// "top-K" into "top cluster": fewer results when the best matches are
// clearly separated from mediocre ones, more when they are near-tied.
//
// Applied uniformly to normalized lexical scores and vector cosine
// similarities so the two backends behave comparably.
func truncateAtScoreDrop(scores []float64, cfg DynamicLimitConfig) int {
	accepted := 0
	for i, score := range scores {
		if accepted == cfg.MaxResults {
			break
		}
		if score < cfg.MinScore {
			break
		}
		if i > 0 {
			prev := scores[i-1]
			if prev > 0 && (prev-score)/prev > cfg.DropThreshold {
				break
			}
		}
		accepted++
	}
	return accepted
}
