// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used to validate and size
analysis frames. Transform sizes must be powers of two, and configuration
errors suggest the nearest valid size rather than failing with a bare
message.

All functions are O(1), allocation free and safe to call from the analysis
tick.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Sizes <= 0
// return 1. The subtraction keeps exact powers of two unchanged:
//
//	Input  Output
//	4096   4096
//	5000   8192
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of two <= size, or 0 for
// sizes <= 0.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// NearestPowerOfTwo returns whichever of PrevPowerOfTwo and NextPowerOfTwo
// is closer to size. Ties resolve upwards, since a longer frame only costs
// latency while a shorter one costs frequency resolution.
func NearestPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	lo, hi := PrevPowerOfTwo(size), NextPowerOfTwo(size)
	if size-lo < hi-size {
		return lo
	}
	return hi
}

// IsPowerOfTwo reports whether n is a positive power of two. Powers of two
// have a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent of a power of two, or -1 if n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
