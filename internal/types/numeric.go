package types

import (
	"fmt"
	"math"
	"math/big"
)

// Numeric is an arbitrary-precision value with an explicit decimal scale,
// the same shape a NUMERIC/DECIMAL SQL column needs: unscaled*10^-scale.
type Numeric struct {
	unscaled *big.Int
	scale    int32
}

// NewNumericFromInt64 builds an exact integer Numeric (scale 0).
func NewNumericFromInt64(v int64) Numeric {
	return Numeric{unscaled: big.NewInt(v), scale: 0}
}

// NewNumeric builds a Numeric from an unscaled big integer and a scale.
func NewNumeric(unscaled *big.Int, scale int32) Numeric {
	if unscaled == nil {
		unscaled = new(big.Int)
	}
	return Numeric{unscaled: new(big.Int).Set(unscaled), scale: scale}
}

// ParseNumeric parses a decimal literal such as "-12.340".
func ParseNumeric(s string) (Numeric, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Numeric{}, fmt.Errorf("types: %q is not a valid numeric literal", s)
	}
	// Reduce the rational to an unscaled*10^-scale pair by growing the
	// scale until the denominator divides a power of ten, falling back to
	// float precision for literals like "1/3" that never terminate.
	scale := int32(0)
	denom := new(big.Int).Set(r.Denom())
	ten := big.NewInt(10)
	num := new(big.Int).Set(r.Num())
	for denom.Cmp(big.NewInt(1)) != 0 && scale < 100 {
		num.Mul(num, ten)
		scale++
		q, rem := new(big.Int).QuoRem(num, denom, new(big.Int))
		if rem.Sign() == 0 {
			return Numeric{unscaled: q, scale: scale}, nil
		}
	}
	return Numeric{unscaled: num, scale: scale}, nil
}

func (n Numeric) Scale() int32 { return n.scale }

// Unscaled returns the unscaled integer magnitude (unscaled*10^-scale ==
// the value); used by callers serializing a Numeric to bytes.
func (n Numeric) Unscaled() *big.Int {
	if n.unscaled == nil {
		return new(big.Int)
	}
	return n.unscaled
}

// Rat returns the exact rational value of n.
func (n Numeric) Rat() *big.Rat {
	u := n.unscaled
	if u == nil {
		u = new(big.Int)
	}
	if n.scale == 0 {
		return new(big.Rat).SetInt(u)
	}
	if n.scale > 0 {
		denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.scale)), nil)
		return new(big.Rat).SetFrac(u, denom)
	}
	mul := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.scale)), nil)
	return new(big.Rat).SetInt(new(big.Int).Mul(u, mul))
}

func (n Numeric) String() string {
	return n.Rat().RatString()
}

// Cmp compares n against other by exact rational value.
func (n Numeric) Cmp(other Numeric) int {
	return n.Rat().Cmp(other.Rat())
}

func (n Numeric) Add(other Numeric) Numeric { return fromRat(new(big.Rat).Add(n.Rat(), other.Rat())) }
func (n Numeric) Sub(other Numeric) Numeric { return fromRat(new(big.Rat).Sub(n.Rat(), other.Rat())) }
func (n Numeric) Mul(other Numeric) Numeric { return fromRat(new(big.Rat).Mul(n.Rat(), other.Rat())) }

// Div divides n by other; reports an error on division by zero, matching
// the "operators return typed results" contract of §4.K rather than
// panicking.
func (n Numeric) Div(other Numeric) (Numeric, error) {
	if other.Rat().Sign() == 0 {
		return Numeric{}, fmt.Errorf("types: division by zero")
	}
	return fromRat(new(big.Rat).Quo(n.Rat(), other.Rat())), nil
}

func fromRat(r *big.Rat) Numeric {
	if r.IsInt() {
		return Numeric{unscaled: new(big.Int).Set(r.Num()), scale: 0}
	}
	// Grow scale until the rational terminates, capped to avoid infinite
	// loops on irreducible fractions; callers needing exact division by
	// non-terminating decimals should use Rat() directly.
	scale := int32(0)
	num := new(big.Int).Set(r.Num())
	denom := new(big.Int).Set(r.Denom())
	ten := big.NewInt(10)
	for scale < 34 {
		q, rem := new(big.Int).QuoRem(num, denom, new(big.Int))
		if rem.Sign() == 0 {
			return Numeric{unscaled: q, scale: scale}
		}
		num.Mul(num, ten)
		scale++
	}
	q, _ := new(big.Int).QuoRem(num, denom, new(big.Int))
	return Numeric{unscaled: q, scale: scale}
}

// WidenedKind classifies how a NUMERIC/BIT/REAL literal would be narrowed
// per the §4.K widening table, used by callers that need to pick a storage
// kind for a computed value.
type WidenedKind int

const (
	WidenInteger WidenedKind = iota
	WidenBigint
	WidenDouble
	WidenBit
	WidenTinyint
	WidenReal
)

// Declared distinguishes the three SQL declared types the §4.K widening
// table dispatches on. NUMERIC, DECIMAL, BIT, and REAL are all stored as
// the same arbitrary-precision Numeric; only the widening rule a column's
// declared type selects differs.
type Declared int

const (
	DeclaredNumeric Declared = iota // also DECIMAL
	DeclaredBit
	DeclaredReal
)

// Widen applies the §4.K widening table to n as declared's SQL type.
func (n Numeric) Widen(declared Declared) WidenedKind {
	switch declared {
	case DeclaredBit:
		return n.widenBit()
	case DeclaredReal:
		return n.widenReal()
	default:
		return n.widenDecimal()
	}
}

// widenDecimal is the NUMERIC/DECIMAL row of §4.K: exact integers that fit
// int32 widen to INTEGER, scale-0 values that fit int64 widen to BIGINT,
// everything else (including any scaled value) widens to DOUBLE.
func (n Numeric) widenDecimal() WidenedKind {
	if n.scale <= 0 {
		if n.unscaled.IsInt64() {
			v := n.unscaled.Int64()
			if v >= -1<<31 && v <= 1<<31-1 {
				return WidenInteger
			}
		}
		maxLong := new(big.Int).SetUint64(1<<63 - 1)
		minLong := new(big.Int).Neg(new(big.Int).SetUint64(1 << 63))
		abs := new(big.Int).Abs(n.unscaled)
		if abs.Cmp(maxLong) <= 0 && n.unscaled.Cmp(minLong) >= 0 {
			return WidenBigint
		}
		return WidenDouble
	}
	return WidenDouble
}

// widenBit is the BIT row of §4.K: 0 or 1 stays BIT; anything else widens
// to TINYINT if it fits, otherwise keeps widening up the decimal cascade.
func (n Numeric) widenBit() WidenedKind {
	if n.scale == 0 {
		if n.unscaled.Cmp(big.NewInt(0)) == 0 || n.unscaled.Cmp(big.NewInt(1)) == 0 {
			return WidenBit
		}
		abs := new(big.Int).Abs(n.unscaled)
		if abs.Cmp(big.NewInt(127)) <= 0 {
			return WidenTinyint
		}
	}
	return n.widenDecimal()
}

// widenReal is the REAL row of §4.K: magnitudes within float32 range stay
// REAL, everything else widens to DOUBLE.
func (n Numeric) widenReal() WidenedKind {
	f, _ := n.Rat().Float64()
	if !math.IsInf(f, 0) && math.Abs(f) <= math.MaxFloat32 {
		return WidenReal
	}
	return WidenDouble
}
