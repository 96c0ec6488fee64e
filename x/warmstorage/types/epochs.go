package types

import "math/bits"

// AddEpochs returns a+b or ErrArithmeticOverflow.
func AddEpochs(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow.Wrapf("%d + %d", a, b)
	}
	return sum, nil
}

// SubEpochs returns a-b or ErrArithmeticOverflow when b > a.
func SubEpochs(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticOverflow.Wrapf("%d - %d", a, b)
	}
	return diff, nil
}

// MulEpochs returns a*b or ErrArithmeticOverflow.
func MulEpochs(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrArithmeticOverflow.Wrapf("%d * %d", a, b)
	}
	return lo, nil
}
