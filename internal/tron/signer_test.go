package tron

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Private key 1 has the well-known EVM address 0x7E5F…5Bdf.
var keyOne = strings.Repeat("0", 63) + "1"

func TestSignerAddress(t *testing.T) {
	s, err := NewSigner("0x" + keyOne)
	require.NoError(t, err)
	assert.Equal(t, "417e5f4552091a69125d5dfcb7b8c2659029395bdf", Hex(s.Address()))
}

func TestSignerSign(t *testing.T) {
	s, err := NewSigner(keyOne)
	require.NoError(t, err)

	txID := TxIDFromRawData([]byte("raw"))
	sig, err := s.Sign(txID)
	require.NoError(t, err)
	assert.Len(t, sig, 65)

	_, err = s.Sign([]byte("short"))
	assert.Error(t, err)
}

func TestNewSignerInvalid(t *testing.T) {
	_, err := NewSigner("not-a-key")
	assert.Error(t, err)
}

func TestVerifyTxID(t *testing.T) {
	raw := []byte{0x0a, 0x02, 0x01, 0x02}
	sum := sha256.Sum256(raw)

	id, err := VerifyTxID(hex.EncodeToString(sum[:]), hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, sum[:], id)

	_, err = VerifyTxID(strings.Repeat("00", 32), hex.EncodeToString(raw))
	assert.Error(t, err)
}
