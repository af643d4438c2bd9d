/*
Copyright 2011-2024 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rans

// Quantization of raw symbol counts to the fixed _TOTFREQ total. The
// rounding, the +1 slack and the "normalise harder" retry are all part of
// the wire contract: changing any of them changes the encoded bytes.

// ~0.98 in 1.31 fixed point, the order 0 retry factor
const _RETRY_SCALE = 2104533975

// singleSymbol returns the only present symbol, or -1 when the
// distribution holds more than one.
func singleSymbol(freqs []int) int {
	single := -1

	for s := range freqs {
		if freqs[s] == 0 {
			continue
		}

		if single >= 0 {
			return -1
		}

		single = s
	}

	return single
}

// normalizeFreqsOrder0 rescales freqs (raw counts summing to 'total', at
// least one nonzero) so that present symbols keep a frequency of at least 1.
// Multi symbol distributions end up summing to _TOTFREQ-1 due to the slack;
// a lone symbol takes the full _TOTFREQ range.
func normalizeFreqsOrder0(freqs []int, total int) {
	if s := singleSymbol(freqs); s >= 0 {
		freqs[s] = _TOTFREQ
		return
	}

	tr := (uint64(_TOTFREQ)<<31)/uint64(total) + (1<<30)/uint64(total)

	for {
		sum := 0
		max := 0
		idxMax := 0

		for s := 0; s < 256; s++ {
			if freqs[s] == 0 {
				continue
			}

			if max < freqs[s] {
				max = freqs[s]
				idxMax = s
			}

			if f := int((uint64(freqs[s]) * tr) >> 31); f == 0 {
				freqs[s] = 1
			} else {
				freqs[s] = f
			}

			sum += freqs[s]
		}

		sum++

		if sum < _TOTFREQ {
			freqs[idxMax] += _TOTFREQ - sum
			return
		}

		if sum-_TOTFREQ <= freqs[idxMax]/2 {
			freqs[idxMax] -= sum - _TOTFREQ
			return
		}

		// The adjustment would crush the dominant symbol: scale everything
		// down by ~2% and try again
		tr = _RETRY_SCALE
	}
}

// normalizeFreqsOrder1 is the conditional-row variant. Same contract as
// order 0 but the original arithmetic is floating point and the retry
// condition is >= instead of >, both preserved for identical output.
func normalizeFreqsOrder1(freqs []int, total int) {
	if s := singleSymbol(freqs); s >= 0 {
		freqs[s] = _TOTFREQ
		return
	}

	p := float64(_TOTFREQ) / float64(total)

	for {
		sum := 0
		max := 0
		idxMax := 0

		for s := 0; s < 256; s++ {
			if freqs[s] == 0 {
				continue
			}

			if max < freqs[s] {
				max = freqs[s]
				idxMax = s
			}

			if f := int(float64(freqs[s]) * p); f == 0 {
				freqs[s] = 1
			} else {
				freqs[s] = f
			}

			sum += freqs[s]
		}

		sum++

		if sum < _TOTFREQ {
			freqs[idxMax] += _TOTFREQ - sum
			return
		}

		if sum-_TOTFREQ < freqs[idxMax]/2 {
			freqs[idxMax] -= sum - _TOTFREQ
			return
		}

		p = 0.98
	}
}
