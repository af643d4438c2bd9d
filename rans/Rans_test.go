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
	"bytes"
	"encoding/binary"
	"math/rand"
	"strings"
	"testing"
)

func checkRoundTrip(t *testing.T, input []byte, order int) []byte {
	t.Helper()
	comp, err := Compress(input, order)

	if err != nil {
		t.Fatalf("Compress(order=%d, n=%d) failed: %v", order, len(input), err)
	}

	if max := compressBound(len(input)); len(comp) > max {
		t.Fatalf("Compressed size %d exceeds bound %d (order=%d, n=%d)", len(comp), max, order, len(input))
	}

	dec, err := Decompress(comp)

	if err != nil {
		t.Fatalf("Decompress(order=%d, n=%d) failed: %v", order, len(input), err)
	}

	if !bytes.Equal(dec, input) {
		t.Fatalf("Round trip mismatch (order=%d, n=%d)", order, len(input))
	}

	return comp
}

func TestRansRoundTripSizes(t *testing.T) {
	sizes := []int{0, 1, 3, 4, 5, 7, 8, 15, 16, 100, 1000, 1 << 16, 1 << 20}
	r := rand.New(rand.NewSource(42))

	for _, sz := range sizes {
		uniform := make([]byte, sz)
		skewed := make([]byte, sz)
		ramp := make([]byte, sz)

		for i := 0; i < sz; i++ {
			uniform[i] = byte(r.Intn(256))
			skewed[i] = byte(r.Intn(4) * r.Intn(4) * 16)
			ramp[i] = byte(i)
		}

		for _, order := range []int{0, 1} {
			checkRoundTrip(t, uniform, order)
			checkRoundTrip(t, skewed, order)
			checkRoundTrip(t, ramp, order)
			checkRoundTrip(t, make([]byte, sz), order)
		}
	}
}

func TestRansRoundTripPatterns(t *testing.T) {
	type testCase struct {
		name  string
		input []byte
	}

	testCases := []testCase{
		{name: "SingleSymbol_A", input: []byte("A")},
		{name: "AllSame_A4", input: []byte("AAAA")},
		{name: "AllSame_W50", input: []byte(strings.Repeat("W", 50))},
		{name: "Alternating_AB8", input: []byte("ABABABAB")},
		{name: "Alternating_ST60", input: []byte(strings.Repeat("ST", 30))},
		{name: "AlmostAllSame_X50Y1", input: []byte(strings.Repeat("X", 50) + "Y")},
		{name: "ChangingBlocks", input: []byte(strings.Repeat("P", 30) + strings.Repeat("Q", 30) + strings.Repeat("R", 30) + "PP")},
		{name: "ZeroBytes", input: []byte{0, 0, 1, 0, 0, 2, 0, 0, 0, 3}},
		{
			name: "AllByteValues",
			input: func() []byte {
				res := make([]byte, 256)
				for i := range res {
					res[i] = byte(i)
				}
				return res
			}(),
		},
		{
			name: "AdjacentSymbolRuns",
			input: func() []byte {
				// Every value in 40..47 plus 0, to exercise the RLE gap coding
				res := make([]byte, 900)
				for i := range res {
					res[i] = byte(40 + i%8)
				}
				res[899] = 0
				return res
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, order := range []int{0, 1} {
				checkRoundTrip(t, tc.input, order)
			}
		})
	}
}

func TestRansDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	input := make([]byte, 12345)

	for i := range input {
		input[i] = byte(r.Intn(16) * 16)
	}

	for _, order := range []int{0, 1} {
		c1, err1 := Compress(input, order)
		c2, err2 := Compress(input, order)

		if err1 != nil || err2 != nil {
			t.Fatalf("Compress failed: %v %v", err1, err2)
		}

		if !bytes.Equal(c1, c2) {
			t.Fatalf("Compression is not deterministic for order %d", order)
		}
	}
}

func TestRansEmptyInput(t *testing.T) {
	for _, order := range []int{0, 1} {
		comp, err := Compress([]byte{}, order)

		if err != nil {
			t.Fatalf("Compress failed: %v", err)
		}

		if !bytes.Equal(comp, make([]byte, 9)) {
			t.Fatalf("Empty input must encode to 9 zero bytes, got % 02X", comp)
		}

		dec, err := Decompress(comp)

		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}

		if len(dec) != 0 {
			t.Fatalf("Expected empty output, got %d bytes", len(dec))
		}
	}
}

func TestRansSingleByteBlockLayout(t *testing.T) {
	comp := checkRoundTrip(t, []byte("A"), 0)
	expected := []byte{
		0x00,                   // order
		0x14, 0x00, 0x00, 0x00, // compressed size = 20
		0x01, 0x00, 0x00, 0x00, // original size = 1
		0x41, 0x90, 0x00, 0x00, // table: 'A' with the full range, end of row
		0x00, 0x00, 0x80, 0x00, // four untouched states, little endian
		0x00, 0x00, 0x80, 0x00,
		0x00, 0x00, 0x80, 0x00,
		0x00, 0x00, 0x80, 0x00,
	}

	if !bytes.Equal(comp, expected) {
		t.Fatalf("Block layout mismatch:\ngot  % 02X\nwant % 02X", comp, expected)
	}
}

func TestRansSingleSymbolFullRange(t *testing.T) {
	comp := checkRoundTrip(t, []byte("AAAA"), 0)

	// The lone symbol takes the whole frequency range, on the wire as 90 00
	if !bytes.Equal(comp[9:13], []byte{0x41, 0x90, 0x00, 0x00}) {
		t.Fatalf("Expected table 41 90 00 00, got % 02X", comp[9:13])
	}

	if len(comp) != 29 {
		t.Fatalf("Expected 29 byte block, got %d", len(comp))
	}
}

func TestRansOrder1ZeroAlias(t *testing.T) {
	// An order 1 single symbol row may carry F=0 instead of the literal
	// full range value; both must decode identically
	comp := checkRoundTrip(t, []byte(strings.Repeat("A", 100)), 1)
	patched := make([]byte, 0, len(comp))

	for i := 0; i < len(comp); i++ {
		if i+1 < len(comp) && comp[i] == 0x90 && comp[i+1] == 0x00 && i >= 9 {
			patched = append(patched, 0x00)
			i++
			continue
		}

		patched = append(patched, comp[i])
	}

	if len(patched) == len(comp) {
		t.Fatal("Expected at least one full range frequency in the table")
	}

	// Fix up the compressed size for the shrunken table
	binary.LittleEndian.PutUint32(patched[1:], uint32(len(patched)-9))
	dec, err := Decompress(patched)

	if err != nil {
		t.Fatalf("Decompress of aliased table failed: %v", err)
	}

	if !bytes.Equal(dec, []byte(strings.Repeat("A", 100))) {
		t.Fatal("Aliased table did not decode to the original data")
	}
}

func TestRansOrder1Fallback(t *testing.T) {
	for _, input := range [][]byte{{}, {1}, {1, 2}, {1, 2, 3}} {
		comp, err := Compress(input, 1)

		if err != nil {
			t.Fatalf("Compress failed: %v", err)
		}

		if len(comp) > 0 && comp[0] != 0 {
			t.Fatalf("Inputs below 4 bytes must fall back to order 0, got order %d", comp[0])
		}

		dec, err := Decompress(comp)

		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}

		if !bytes.Equal(dec, input) {
			t.Fatal("Fallback round trip mismatch")
		}
	}
}

func TestRansOrder1TinyTable(t *testing.T) {
	input := make([]byte, 1000)
	comp := checkRoundTrip(t, input, 1)

	if len(comp) > 64 {
		t.Fatalf("All zero input should compress to a tiny block, got %d bytes", len(comp))
	}
}

func TestRansLargeRandomOrder1(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large buffer test in short mode")
	}

	r := rand.New(rand.NewSource(99))
	input := make([]byte, 1_000_000)

	for i := range input {
		input[i] = byte(r.Intn(256))
	}

	comp := checkRoundTrip(t, input, 1)

	if max := int(1.05*float64(len(input))) + 257*257*3 + 9; len(comp) > max {
		t.Fatalf("Compressed size %d exceeds bound %d", len(comp), max)
	}
}

func TestRansInvalidArguments(t *testing.T) {
	if _, err := Compress([]byte("abc"), 2); err == nil {
		t.Fatal("Expected an error for order 2")
	}

	if _, err := Decompress(nil); err == nil {
		t.Fatal("Expected an error for nil input")
	}

	if _, err := Decompress([]byte{2, 0, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Fatal("Expected an error for an unknown order byte")
	}

	if _, err := Decompress(make([]byte, 8)); err == nil {
		t.Fatal("Expected an error for a short header")
	}

	// Declared compressed size disagrees with the buffer length
	bad := []byte{0, 5, 0, 0, 0, 1, 0, 0, 0, 0xFF}
	if _, err := Decompress(bad); err == nil {
		t.Fatal("Expected an error for a size mismatch")
	}
}

func TestRansCorruptedBlocks(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	inputs := [][]byte{
		[]byte(strings.Repeat("the quick brown fox ", 50)),
		make([]byte, 4096),
	}

	for i := range inputs[1] {
		inputs[1][i] = byte(r.Intn(7) * 37)
	}

	for _, input := range inputs {
		for _, order := range []int{0, 1} {
			comp := checkRoundTrip(t, input, order)

			// Single byte corruptions in table and payload: the decoder must
			// reject or produce a buffer of the declared size, and must never
			// touch memory out of bounds (a violation would panic the test)
			for trial := 0; trial < 300; trial++ {
				mut := make([]byte, len(comp))
				copy(mut, comp)
				pos := 9 + r.Intn(len(mut)-9)
				mut[pos] ^= byte(1 + r.Intn(255))
				dec, err := Decompress(mut)

				if err == nil && len(dec) != len(input) {
					t.Fatalf("Corrupt block decoded to %d bytes, declared %d", len(dec), len(input))
				}
			}

			// Truncations
			for cut := 0; cut < len(comp); cut += 1 + len(comp)/64 {
				if _, err := Decompress(comp[:cut]); err == nil {
					t.Fatalf("Truncated block of %d/%d bytes was accepted", cut, len(comp))
				}
			}
		}
	}
}
