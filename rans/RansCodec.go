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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/eneskuluk/htscodecs/internal"
)

// Implementation of a static byte oriented rANS codec over four interleaved
// streams, with an order 0 (marginal) or order 1 (conditioned on the
// previous byte) frequency model.
// See "Asymmetric Numeral System" by Jarek Duda at http://arxiv.org/abs/0902.0271
// Some code has been ported from https://github.com/rygorous/ryg_rans
//
// A compressed block is self contained:
//
//	offset  size  field
//	0       1     order (0 or 1)
//	1       4     compressed size, little endian, = total size - 9
//	5       4     original size, little endian
//	9       T     frequency table
//	9+T     P     rANS payload
//
// rANS is LIFO: the encoder walks the input backwards and grows the payload
// from the tail of its buffer, the decoder reads the payload forwards and
// fills the output start to end. The four stream interleave, the flush
// order r3..r0 and the quarter striping of order 1 are all part of the
// wire format.

const (
	_HEADER_SIZE = 9

	// Order 0 blocks below this size cannot hold a table and four states
	_MIN_SIZE_ORDER0 = 26
	_MIN_SIZE_ORDER1 = 27
)

// compressBound returns the worst case compressed block size for n input
// bytes: payload expansion plus the largest possible order 1 table.
func compressBound(n int) int {
	return int(1.05*float64(n)) + 257*257*3 + _HEADER_SIZE
}

func writeHeader(out []byte, order byte, compSize, origSize int) {
	out[0] = order
	binary.LittleEndian.PutUint32(out[1:], uint32(compSize))
	binary.LittleEndian.PutUint32(out[5:], uint32(origSize))
}

// Compress encodes 'in' into a new self contained block using the given
// model order (0 or 1). Order 1 needs at least 4 bytes to stripe and falls
// back to order 0 below that.
func Compress(in []byte, order int) ([]byte, error) {
	switch order {
	case 0:
		return compressOrder0(in)
	case 1:
		return compressOrder1(in)
	}

	return nil, fmt.Errorf("rANS codec: invalid order %d (must be 0 or 1)", order)
}

// Decompress decodes a block produced by Compress, dispatching on the
// order byte. The returned buffer holds exactly the original bytes.
func Decompress(in []byte) ([]byte, error) {
	if len(in) < _HEADER_SIZE {
		return nil, errCorruptInput
	}

	switch in[0] {
	case 0:
		return uncompressOrder0(in)
	case 1:
		return uncompressOrder1(in)
	}

	return nil, fmt.Errorf("rANS codec: invalid order byte 0x%02X", in[0])
}

func compressOrder0(in []byte) ([]byte, error) {
	n := len(in)

	if n == 0 {
		// Canonical empty block: header only, all fields zero
		return make([]byte, _HEADER_SIZE), nil
	}

	bufSize := compressBound(n)
	out := make([]byte, bufSize)
	var freqs [256]int
	var syms [256]encSymbol

	internal.ComputeHistogram(in, freqs[:], true)
	normalizeFreqsOrder0(freqs[:], n)
	tabSize := writeFreqs(out, _HEADER_SIZE, freqs[:], syms[:])

	x0 := ransEncInit()
	x1 := ransEncInit()
	x2 := ransEncInit()
	x3 := ransEncInit()
	ptr := bufSize

	// Trailing n%4 bytes go to streams r2, r1, r0
	switch rem := n & 3; rem {
	case 3:
		x2, ptr = ransEncPut(x2, out, ptr, &syms[in[n-(rem-2)]])
		fallthrough
	case 2:
		x1, ptr = ransEncPut(x1, out, ptr, &syms[in[n-(rem-1)]])
		fallthrough
	case 1:
		x0, ptr = ransEncPut(x0, out, ptr, &syms[in[n-rem]])
	}

	for i := n & -4; i > 0; i -= 4 {
		s3 := &syms[in[i-1]]
		s2 := &syms[in[i-2]]
		s1 := &syms[in[i-3]]
		s0 := &syms[in[i-4]]
		x3, ptr = ransEncPut(x3, out, ptr, s3)
		x2, ptr = ransEncPut(x2, out, ptr, s2)
		x1, ptr = ransEncPut(x1, out, ptr, s1)
		x0, ptr = ransEncPut(x0, out, ptr, s0)
	}

	ptr = ransEncFlush(x3, out, ptr)
	ptr = ransEncFlush(x2, out, ptr)
	ptr = ransEncFlush(x1, out, ptr)
	ptr = ransEncFlush(x0, out, ptr)

	outSize := (bufSize - ptr) + tabSize
	writeHeader(out, 0, outSize-_HEADER_SIZE, n)
	copy(out[tabSize:], out[ptr:bufSize])
	return out[:outSize], nil
}

func uncompressOrder0(in []byte) ([]byte, error) {
	if len(in) < _HEADER_SIZE || in[0] != 0 {
		return nil, errCorruptInput
	}

	inSz := int(binary.LittleEndian.Uint32(in[1:]))
	outSz := int64(binary.LittleEndian.Uint32(in[5:]))

	if inSz != len(in)-_HEADER_SIZE {
		return nil, errCorruptInput
	}

	if outSz >= math.MaxInt32 {
		return nil, errCorruptInput
	}

	if outSz == 0 {
		return []byte{}, nil
	}

	if len(in) < _MIN_SIZE_ORDER0 {
		return nil, errCorruptInput
	}

	var syms [256]decSymbol
	var slot2sym [_TOTFREQ]byte
	cp, err := readFreqs(in, _HEADER_SIZE, syms[:], slot2sym[:])

	if err != nil {
		return nil, err
	}

	cpEnd := len(in)

	if cp > cpEnd-16 {
		return nil, errCorruptInput
	}

	var r [4]uint32

	for k := range r {
		r[k], cp = ransDecInit(in, cp)

		if r[k] < _RANS_BYTE_L {
			return nil, errCorruptInput
		}
	}

	out := make([]byte, outSz)
	outEnd := int(outSz) & -4
	safe := cpEnd - 8
	const mask = _TOTFREQ - 1

	for i := 0; i < outEnd; i += 4 {
		m0 := r[0] & mask
		c0 := slot2sym[m0]
		out[i] = c0
		s0 := syms[c0]
		r[0] = uint32(s0.freq)*(r[0]>>_TF_SHIFT) + m0 - uint32(s0.start)

		m1 := r[1] & mask
		c1 := slot2sym[m1]
		out[i+1] = c1
		s1 := syms[c1]
		r[1] = uint32(s1.freq)*(r[1]>>_TF_SHIFT) + m1 - uint32(s1.start)

		m2 := r[2] & mask
		c2 := slot2sym[m2]
		out[i+2] = c2
		s2 := syms[c2]
		r[2] = uint32(s2.freq)*(r[2]>>_TF_SHIFT) + m2 - uint32(s2.start)

		m3 := r[3] & mask
		c3 := slot2sym[m3]
		out[i+3] = c3
		s3 := syms[c3]
		r[3] = uint32(s3.freq)*(r[3]>>_TF_SHIFT) + m3 - uint32(s3.start)

		if cp < safe {
			r[0], cp = ransDecRenorm(r[0], in, cp)
			r[1], cp = ransDecRenorm(r[1], in, cp)
			r[2], cp = ransDecRenorm(r[2], in, cp)
			r[3], cp = ransDecRenorm(r[3], in, cp)
		} else {
			r[0], cp = ransDecRenormSafe(r[0], in, cp, cpEnd)
			r[1], cp = ransDecRenormSafe(r[1], in, cp, cpEnd)
			r[2], cp = ransDecRenormSafe(r[2], in, cp, cpEnd)
			r[3], cp = ransDecRenormSafe(r[3], in, cp, cpEnd)
		}
	}

	// The last n%4 symbols sit in r0..r2 without a further state advance
	switch int(outSz) & 3 {
	case 3:
		out[outEnd+2] = slot2sym[r[2]&mask]
		fallthrough
	case 2:
		out[outEnd+1] = slot2sym[r[1]&mask]
		fallthrough
	case 1:
		out[outEnd] = slot2sym[r[0]&mask]
	}

	return out, nil
}

func compressOrder1(in []byte) ([]byte, error) {
	n := len(in)

	if n < 4 {
		return compressOrder0(in)
	}

	bufSize := compressBound(n)
	out := make([]byte, bufSize)
	sc := getEncScratch()
	defer encScratchPool.Put(sc)

	internal.ComputeHistogram(in, sc.freqs, false)

	// Credit the virtual context 0 for the quarter head seeds the encoder
	// emits at the end of each stream
	q := n >> 2
	sc.freqs[in[1*q]]++
	sc.freqs[in[2*q]]++
	sc.freqs[in[3*q]]++
	sc.freqs[256] += 3

	cp := _HEADER_SIZE
	rle := 0

	for c := 0; c < 256; c++ {
		total := sc.freqs[257*c+256]

		if total == 0 {
			continue
		}

		normalizeFreqsOrder1(sc.freqs[257*c:257*c+256], total)

		if rle > 0 {
			rle--
		} else {
			out[cp] = byte(c)
			cp++

			if c > 0 && sc.freqs[257*(c-1)+256] > 0 {
				for rle = c + 1; rle < 256 && sc.freqs[257*rle+256] != 0; rle++ {
				}

				rle -= c + 1
				out[cp] = byte(rle)
				cp++
			}
		}

		cp = writeFreqs(out, cp, sc.freqs[257*c:257*c+256], sc.syms[c<<8:(c+1)<<8])
	}

	out[cp] = 0
	cp++
	tabSize := cp

	x0 := ransEncInit()
	x1 := ransEncInit()
	x2 := ransEncInit()
	x3 := ransEncInit()
	ptr := bufSize

	i0 := 1*q - 2
	i1 := 2*q - 2
	i2 := 3*q - 2
	i3 := 4*q - 2
	l0 := in[i0+1]
	l1 := in[i1+1]
	l2 := in[i2+1]

	// The tail beyond 4*q is consumed by r3 until it aligns with its quarter
	l3 := in[n-1]

	for t := n - 2; t > i3; t-- {
		c3 := in[t]
		x3, ptr = ransEncPut(x3, out, ptr, &sc.syms[int(c3)<<8|int(l3)])
		l3 = c3
	}

	for ; i0 >= 0; i0, i1, i2, i3 = i0-1, i1-1, i2-1, i3-1 {
		c0 := in[i0]
		c1 := in[i1]
		c2 := in[i2]
		c3 := in[i3]
		x3, ptr = ransEncPut(x3, out, ptr, &sc.syms[int(c3)<<8|int(l3)])
		x2, ptr = ransEncPut(x2, out, ptr, &sc.syms[int(c2)<<8|int(l2)])
		x1, ptr = ransEncPut(x1, out, ptr, &sc.syms[int(c1)<<8|int(l1)])
		x0, ptr = ransEncPut(x0, out, ptr, &sc.syms[int(c0)<<8|int(l0)])
		l0 = c0
		l1 = c1
		l2 = c2
		l3 = c3
	}

	// Quarter heads encode against the virtual context 0
	x3, ptr = ransEncPut(x3, out, ptr, &sc.syms[l3])
	x2, ptr = ransEncPut(x2, out, ptr, &sc.syms[l2])
	x1, ptr = ransEncPut(x1, out, ptr, &sc.syms[l1])
	x0, ptr = ransEncPut(x0, out, ptr, &sc.syms[l0])

	ptr = ransEncFlush(x3, out, ptr)
	ptr = ransEncFlush(x2, out, ptr)
	ptr = ransEncFlush(x1, out, ptr)
	ptr = ransEncFlush(x0, out, ptr)

	outSize := (bufSize - ptr) + tabSize
	writeHeader(out, 1, outSize-_HEADER_SIZE, n)
	copy(out[tabSize:], out[ptr:bufSize])
	return out[:outSize], nil
}

func uncompressOrder1(in []byte) ([]byte, error) {
	if len(in) < _MIN_SIZE_ORDER1 || in[0] != 1 {
		return nil, errCorruptInput
	}

	inSz := int(binary.LittleEndian.Uint32(in[1:]))
	outSz := int64(binary.LittleEndian.Uint32(in[5:]))

	if inSz != len(in)-_HEADER_SIZE {
		return nil, errCorruptInput
	}

	if outSz >= math.MaxInt32 {
		return nil, errCorruptInput
	}

	if outSz == 0 {
		return []byte{}, nil
	}

	sc := getDecScratch()
	defer decScratchPool.Put(sc)

	// Contexts get dense ids in order of first appearance to keep the hot
	// tables cache resident
	var ctxMap [256]int16

	for i := range ctxMap {
		ctxMap[i] = -1
	}

	mapN := int16(0)
	cp := _HEADER_SIZE
	cpEnd := len(in)
	rleI := 0
	i := int(in[cp])
	cp++

	for {
		if ctxMap[i] < 0 {
			ctxMap[i] = mapN
			mapN++
		}

		mi := int(ctxMap[i])
		row := sc.slot2sym[mi*_TOTFREQ : (mi+1)*_TOTFREQ]
		rleJ := 0
		x := 0
		j := int(in[cp])
		cp++

		for {
			if ctxMap[j] < 0 {
				ctxMap[j] = mapN
				mapN++
			}

			if cp > cpEnd-16 {
				return nil, errCorruptInput
			}

			f := int(in[cp])
			cp++

			if f >= 128 {
				f = (f&127)<<8 | int(in[cp])
				cp++
			}

			if f == 0 {
				// Historical escape for single symbol rows
				f = _TOTFREQ
			}

			sc.syms[mi<<8|j] = decSymbol{start: uint16(x), freq: uint16(f)}

			if x+f > _TOTFREQ {
				return nil, errCorruptInput
			}

			for y := 0; y < f; y++ {
				row[x+y] = byte(j)
			}

			x += f

			if rleJ > 0 {
				rleJ--
				j++

				if j > 255 {
					return nil, errCorruptInput
				}
			} else if int(in[cp]) == j+1 {
				j = int(in[cp])
				cp++
				rleJ = int(in[cp])
				cp++
			} else {
				j = int(in[cp])
				cp++
			}

			if j == 0 {
				break
			}
		}

		if x < _TOTFREQ-1 || x > _TOTFREQ {
			return nil, errCorruptInput
		}

		if x < _TOTFREQ {
			row[x] = row[x-1]
		}

		if rleI > 0 {
			rleI--
			i++

			if i > 255 {
				return nil, errCorruptInput
			}
		} else if int(in[cp]) == i+1 {
			i = int(in[cp])
			cp++
			rleI = int(in[cp])
			cp++
		} else {
			i = int(in[cp])
			cp++
		}

		if i == 0 {
			break
		}
	}

	// Contexts absent from the table alias to the first row
	for s := range ctxMap {
		if ctxMap[s] < 0 {
			ctxMap[s] = 0
		}
	}

	if cp > cpEnd-16 {
		return nil, errCorruptInput
	}

	var r [4]uint32

	for k := range r {
		r[k], cp = ransDecInit(in, cp)

		if r[k] < _RANS_BYTE_L {
			return nil, errCorruptInput
		}
	}

	out := make([]byte, outSz)
	q := int(outSz) >> 2
	i0 := 0 * q
	i1 := 1 * q
	i2 := 2 * q
	i3 := 3 * q
	l0, l1, l2, l3 := 0, 0, 0, 0
	safe := cpEnd - 8
	const mask = _TOTFREQ - 1

	m0 := int(ctxMap[0]) * _TOTFREQ
	cc0 := sc.slot2sym[m0+int(r[0]&mask)]
	cc1 := sc.slot2sym[m0+int(r[1]&mask)]
	cc2 := sc.slot2sym[m0+int(r[2]&mask)]
	cc3 := sc.slot2sym[m0+int(r[3]&mask)]

	for ; i0 < q; i0, i1, i2, i3 = i0+1, i1+1, i2+1, i3+1 {
		out[i0] = cc0
		out[i1] = cc1
		out[i2] = cc2
		out[i3] = cc3

		s0 := sc.syms[l0<<8|int(cc0)]
		r[0] = uint32(s0.freq)*(r[0]>>_TF_SHIFT) + (r[0] & mask) - uint32(s0.start)
		s1 := sc.syms[l1<<8|int(cc1)]
		r[1] = uint32(s1.freq)*(r[1]>>_TF_SHIFT) + (r[1] & mask) - uint32(s1.start)
		s2 := sc.syms[l2<<8|int(cc2)]
		r[2] = uint32(s2.freq)*(r[2]>>_TF_SHIFT) + (r[2] & mask) - uint32(s2.start)
		s3 := sc.syms[l3<<8|int(cc3)]
		r[3] = uint32(s3.freq)*(r[3]>>_TF_SHIFT) + (r[3] & mask) - uint32(s3.start)

		l0 = int(ctxMap[cc0])
		l1 = int(ctxMap[cc1])
		l2 = int(ctxMap[cc2])
		l3 = int(ctxMap[cc3])

		if cp < safe {
			r[0], cp = ransDecRenorm(r[0], in, cp)
			r[1], cp = ransDecRenorm(r[1], in, cp)
			r[2], cp = ransDecRenorm(r[2], in, cp)
			r[3], cp = ransDecRenorm(r[3], in, cp)
		} else {
			r[0], cp = ransDecRenormSafe(r[0], in, cp, cpEnd)
			r[1], cp = ransDecRenormSafe(r[1], in, cp, cpEnd)
			r[2], cp = ransDecRenormSafe(r[2], in, cp, cpEnd)
			r[3], cp = ransDecRenormSafe(r[3], in, cp, cpEnd)
		}

		cc0 = sc.slot2sym[l0*_TOTFREQ+int(r[0]&mask)]
		cc1 = sc.slot2sym[l1*_TOTFREQ+int(r[1]&mask)]
		cc2 = sc.slot2sym[l2*_TOTFREQ+int(r[2]&mask)]
		cc3 = sc.slot2sym[l3*_TOTFREQ+int(r[3]&mask)]
	}

	// Bytes beyond 4*q come out of r3 alone
	for ; i3 < int(outSz); i3++ {
		c3 := sc.slot2sym[l3*_TOTFREQ+int(r[3]&mask)]
		out[i3] = c3
		s3 := sc.syms[l3<<8|int(c3)]
		r[3] = uint32(s3.freq)*(r[3]>>_TF_SHIFT) + (r[3] & mask) - uint32(s3.start)
		r[3], cp = ransDecRenormSafe(r[3], in, cp, cpEnd)
		l3 = int(ctxMap[c3])
	}

	return out, nil
}
