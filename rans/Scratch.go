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

import (
	"sync"
)

// The order 1 tables weigh around 3 MB combined. They are recycled across
// calls through sync.Pool instead of reallocated, with explicit zeroing of
// the parts each call reads, so behavior is identical to fresh allocation.

// encScratch holds the order 1 encoder tables: a 257-stride frequency grid
// (column 256 is the context total) and one encoder symbol row per context.
type encScratch struct {
	freqs []int
	syms  []encSymbol
}

var encScratchPool = sync.Pool{
	New: func() any {
		return &encScratch{
			freqs: make([]int, 257*256),
			syms:  make([]encSymbol, 256*256),
		}
	},
}

func getEncScratch() *encScratch {
	sc := encScratchPool.Get().(*encScratch)

	// The symbol table needs no wipe: only symbols with a nonzero count
	// are ever referenced and those entries are rebuilt every call.
	for i := range sc.freqs {
		sc.freqs[i] = 0
	}

	return sc
}

// decScratch holds the order 1 decoder tables: per (mapped context, symbol)
// entries and the per-context slot reverse lookups.
type decScratch struct {
	syms     []decSymbol
	slot2sym []byte
}

var decScratchPool = sync.Pool{
	New: func() any {
		return &decScratch{
			syms:     make([]decSymbol, 256*256),
			slot2sym: make([]byte, 256*_TOTFREQ),
		}
	},
}

func getDecScratch() *decScratch {
	sc := decScratchPool.Get().(*decScratch)

	// Zero row 0 and column 0 so that, on corrupt input, transitions
	// through contexts or symbols absent from the table land on entries
	// with freq 0 and collapse deterministically. The reverse lookups are
	// rebuilt in full for every context the table declares.
	for s := 0; s < 256; s++ {
		sc.syms[s] = decSymbol{}
		sc.syms[s<<8] = decSymbol{}
	}

	return sc
}
