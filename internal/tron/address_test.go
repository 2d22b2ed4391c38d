package tron

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/tron-source-router/internal/source"
)

const (
	usdtBase58 = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	usdtHex    = "41a614f803b6fd780986a42c78ec9c7f77e6ded13c"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantHex string
		wantErr bool
	}{
		{"base58", usdtBase58, usdtHex, false},
		{"hex", usdtHex, usdtHex, false},
		{"hex with 0x", "0x" + usdtHex, usdtHex, false},
		{"padded", "  " + usdtBase58 + " ", usdtHex, false},
		{"empty", "", "", true},
		{"bad checksum", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6u", "", true},
		{"too short hex", "41a614f8", "", true},
		{"wrong prefix", "42a614f803b6fd780986a42c78ec9c7f77e6ded13c", "", true},
		{"not hex", "zz", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, source.HasCode(err, source.CodeInvalidAddress), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHex, Hex(addr))
			assert.Equal(t, usdtBase58, Base58(addr))
		})
	}
}

func TestNormalizeBase58(t *testing.T) {
	assert.Equal(t, usdtBase58, NormalizeBase58(usdtHex))
	assert.Equal(t, usdtBase58, NormalizeBase58(usdtBase58))
	assert.Equal(t, "garbage", NormalizeBase58("garbage"))
	assert.Equal(t, "", NormalizeBase58(""))
}

func TestEVMRoundTrip(t *testing.T) {
	addr := MustParseAddress(usdtBase58)
	evm := ToEVM(addr)
	assert.Equal(t, "0xa614f803b6fd780986a42c78ec9c7f77e6ded13c", strings.ToLower(evm.Hex()))
	assert.Equal(t, usdtHex, Hex(FromEVM(evm)))
}

func TestSunConversionRoundTrip(t *testing.T) {
	for _, raw := range []int64{0, 1, 999_999, 1_000_000, 123_456_789, 98_765_432_101_234} {
		trx := SunToTRX(raw)
		assert.InDelta(t, float64(raw)/1_000_000, trx, 1e-9)
		assert.Equal(t, raw, TRXToSun(trx), "round trip of %d", raw)
	}
}

func TestZeroAddress(t *testing.T) {
	addr, err := ParseAddress(ZeroAddress)
	require.NoError(t, err)
	assert.Equal(t, "41"+strings.Repeat("0", 40), Hex(addr))
}

func TestValidateTxID(t *testing.T) {
	good := strings.Repeat("ab", 32)
	assert.NoError(t, ValidateTxID(good))
	assert.NoError(t, ValidateTxID("0x"+good))
	for _, bad := range []string{"", "abc", good + "00", strings.Repeat("zz", 32)} {
		err := ValidateTxID(bad)
		require.Error(t, err, bad)
		assert.True(t, source.HasCode(err, source.CodeInvalidParameter))
	}
}
