package tron

import (
	"math"
	"math/big"
)

// SunPerTRX is the base-unit conversion factor.
const SunPerTRX = 1_000_000

// MaxTRX caps amounts given in TRX. It exceeds the total supply and keeps
// TRXToSun well inside int64.
const MaxTRX = 100_000_000_000

// SunToTRX converts a raw SUN amount to TRX.
func SunToTRX(sun int64) float64 {
	return float64(sun) / SunPerTRX
}

// TRXToSun converts TRX to SUN, rounding to the nearest unit.
func TRXToSun(trx float64) int64 {
	return int64(math.Round(trx * SunPerTRX))
}

// ScaleAmount divides a raw token amount by 10^decimals.
func ScaleAmount(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	if decimals <= 0 {
		f, _ := new(big.Float).SetInt(raw).Float64()
		return f
	}
	denom := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), denom).Float64()
	return f
}
