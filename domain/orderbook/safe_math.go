package orderbook

import "math/bits"

// mulQty returns a*b or ErrNumericalOverflow.
func mulQty(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrNumericalOverflow
	}
	return lo, nil
}

// addQty returns a+b or ErrNumericalOverflow.
func addQty(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrNumericalOverflow
	}
	return sum, nil
}
