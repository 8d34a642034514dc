// Package demurrage implements the Circles v2 inflation adjustment math.
//
// Circles balances exist in two unit systems: demurraged units (what
// wallets display, decaying ~7% per year) and inflationary "static" units
// (the ERC20 wrapper denomination). The hub converts between them with
// per-day factors in 64.64 fixed point; this package reproduces that
// arithmetic exactly, including its truncation behavior.
package demurrage

import (
	"math/big"
	"time"
)

const (
	// InflationDayZero is day zero of the Circles clock,
	// 2020-10-15T00:00:00Z (the CRC v1 launch).
	InflationDayZero int64 = 1602720000

	// SecondsPerDay is the length of one demurrage day.
	SecondsPerDay int64 = 86400
)

// Protocol constants in 64.64 fixed point, as used by the hub contract.
//
//	gamma = 0.9998013320085989574... (per-day demurrage factor)
//	beta  = 1/gamma                  (per-day inflation factor)
var (
	gamma64x64 = new(big.Int).SetUint64(18443079296116538654)
	beta64x64, _ = new(big.Int).SetString("18450409579521241655", 10)
	one64x64   = new(big.Int).Lsh(big.NewInt(1), 64)
)

// Day returns the number of whole days between InflationDayZero and the
// given unix timestamp. Timestamps before day zero clamp to 0.
func Day(timestamp int64) int64 {
	if timestamp <= InflationDayZero {
		return 0
	}
	return (timestamp - InflationDayZero) / SecondsPerDay
}

// pow64x64 raises a 64.64 fixed-point base to an integer power by
// square-and-multiply, truncating after every multiplication the way
// ABDKMath64x64 does on chain.
func pow64x64(base *big.Int, exp int64) *big.Int {
	result := new(big.Int).Set(one64x64)
	b := new(big.Int).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, b)
			result.Rsh(result, 64)
		}
		b.Mul(b, b)
		b.Rsh(b, 64)
		exp >>= 1
	}
	return result
}

// mul64x64 multiplies an integer value by a 64.64 fixed-point factor,
// truncating the fractional part.
func mul64x64(value, factor *big.Int) *big.Int {
	out := new(big.Int).Mul(value, factor)
	return out.Rsh(out, 64)
}

// InflationaryToDemurrage converts an inflationary (static) amount to
// demurraged units on the given day: value * gamma^day.
func InflationaryToDemurrage(value *big.Int, day int64) *big.Int {
	return mul64x64(value, pow64x64(gamma64x64, day))
}

// DemurrageToInflationary converts a demurraged amount to inflationary
// (static) units on the given day: value * beta^day.
func DemurrageToInflationary(value *big.Int, day int64) *big.Int {
	return mul64x64(value, pow64x64(beta64x64, day))
}

// Converter binds the conversions to a clock. The zero value is not
// usable; construct with NewConverter.
type Converter struct {
	// Now supplies the current time; defaults to time.Now.
	Now func() time.Time
}

// NewConverter returns a Converter on the wall clock.
func NewConverter() *Converter {
	return &Converter{Now: time.Now}
}

func (c *Converter) day() int64 {
	return Day(c.Now().Unix())
}

// AttoCirclesToAttoStaticCircles converts demurraged atto Circles to the
// inflationary wrapper denomination at the current day.
func (c *Converter) AttoCirclesToAttoStaticCircles(value *big.Int) *big.Int {
	return DemurrageToInflationary(value, c.day())
}

// AttoStaticCirclesToAttoCircles converts inflationary wrapper units back
// to demurraged atto Circles at the current day.
func (c *Converter) AttoStaticCirclesToAttoCircles(value *big.Int) *big.Int {
	return InflationaryToDemurrage(value, c.day())
}
