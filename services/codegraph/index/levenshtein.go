// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

// BoundedLevenshtein computes the edit distance between a and b, giving up
// as soon as the distance provably exceeds maxDist. Returns (distance, true)
// when within the bound, (0, false) otherwise.
func BoundedLevenshtein(a, b string, maxDist int) (int, bool) {
	return boundedLevenshtein(a, b, maxDist)
}

// boundedLevenshtein computes the edit distance between a and b, giving up
// as soon as the distance provably exceeds maxDist. Returns (distance, true)
// when within the bound, (0, false) otherwise.
//
// The early exit matters: fuzzy search runs the query against every distinct
// symbol name in the repository.
func boundedLevenshtein(a, b string, maxDist int) (int, bool) {
	if maxDist < 0 {
		return 0, false
	}
	la, lb := len(a), len(b)
	if la-lb > maxDist || lb-la > maxDist {
		return 0, false
	}
	if la == 0 {
		return lb, lb <= maxDist
	}
	if lb == 0 {
		return la, la <= maxDist
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
			if m < rowMin {
				rowMin = m
			}
		}
		if rowMin > maxDist {
			return 0, false
		}
		prev, cur = cur, prev
	}

	if prev[lb] > maxDist {
		return 0, false
	}
	return prev[lb], true
}
