// Package fixedpoint converts decimal currency amounts to and from the
// scaled integers used in the homomorphic plaintext space.
//
// Amounts are scaled by Factor (100, i.e. cents) before encryption.
// Additions preserve the scale; multiplying two independently scaled
// values compounds it, so every value carries an explicit ScaleOrder that
// records how many times Factor has been applied. Descaling divides by
// Factor^order; decoding with the wrong order yields numbers that are off
// by a factor of 100 per missed order, which is why the bookkeeping is
// enforced here rather than documented and hoped for.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
)

// Factor is the fixed-point scale factor: two decimal digits of precision.
const Factor = 100

// ScaleOrder counts how many times Factor has been multiplied into a value.
type ScaleOrder int

const (
	// OrderLinear is the order of a freshly encoded amount.
	OrderLinear ScaleOrder = 1
	// OrderQuadratic is the order of a product of two linear values,
	// e.g. an amount multiplied by a scaled percentage.
	OrderQuadratic ScaleOrder = 2
)

// ErrScaleMismatch reports an addition or subtraction between values of
// different scale orders. The homomorphic layer cannot detect this, so it
// must be rejected before a ciphertext operation is issued.
var ErrScaleMismatch = errors.New("fixedpoint: operands have different scale orders")

// ErrMagnitude reports a scaled value too large for the plaintext space.
// The underlying scheme wraps silently on overflow, so this is a hard
// precondition, never a best-effort warning.
var ErrMagnitude = errors.New("fixedpoint: scaled value exceeds plaintext bound")

// Encode scales v by Factor and rounds half away from zero, producing a
// value of scale order 1.
func Encode(v float64) int64 {
	return int64(math.Round(v * Factor))
}

// EncodeSlice encodes each element of vs at scale order 1.
func EncodeSlice(vs []float64) []int64 {
	scaled := make([]int64, len(vs))
	for i, v := range vs {
		scaled[i] = Encode(v)
	}
	return scaled
}

// Decode descales n by Factor^order using floating-point division.
func Decode(n int64, order ScaleOrder) float64 {
	return float64(n) / math.Pow(Factor, float64(order))
}

// CheckMagnitude verifies that n fits within ±bound, the symmetric range
// representable under the plaintext modulus.
func CheckMagnitude(n, bound int64) error {
	if n > bound || n < -bound {
		return fmt.Errorf("%w: |%d| > %d", ErrMagnitude, n, bound)
	}
	return nil
}

// Value is a scaled integer together with its scale order. It mirrors on
// the plaintext side the bookkeeping the fhe package applies to
// ciphertexts, and backs the client's local verification arithmetic.
type Value struct {
	Scaled int64
	Order  ScaleOrder
}

// New encodes v at scale order 1.
func New(v float64) Value {
	return Value{Scaled: Encode(v), Order: OrderLinear}
}

// Add returns a+b. Both operands must share a scale order.
func (a Value) Add(b Value) (Value, error) {
	if a.Order != b.Order {
		return Value{}, fmt.Errorf("%w: %d vs %d", ErrScaleMismatch, a.Order, b.Order)
	}
	return Value{Scaled: a.Scaled + b.Scaled, Order: a.Order}, nil
}

// Sub returns a-b. Both operands must share a scale order.
func (a Value) Sub(b Value) (Value, error) {
	if a.Order != b.Order {
		return Value{}, fmt.Errorf("%w: %d vs %d", ErrScaleMismatch, a.Order, b.Order)
	}
	return Value{Scaled: a.Scaled - b.Scaled, Order: a.Order}, nil
}

// Mul returns a*b. The product's scale order is the sum of the operands'.
func (a Value) Mul(b Value) Value {
	return Value{Scaled: a.Scaled * b.Scaled, Order: a.Order + b.Order}
}

// Float descales the value back to a decimal amount.
func (v Value) Float() float64 {
	return Decode(v.Scaled, v.Order)
}
