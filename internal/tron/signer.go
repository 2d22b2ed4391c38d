package tron

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fbsobreira/gotron-sdk/pkg/address"
)

// ErrNoSigner is returned by write operations when no signing key is configured.
var ErrNoSigner = errors.New("no signing key configured")

// Signer signs transaction IDs with a secp256k1 key. It delegates all
// cryptography to go-ethereum.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr address.Address
}

// NewSigner parses a hex private key.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{
		key:  key,
		addr: FromEVM(crypto.PubkeyToAddress(key.PublicKey)),
	}, nil
}

// Address is the TRON address owning the key.
func (s *Signer) Address() address.Address { return s.addr }

// Sign returns the 65-byte recoverable signature over a 32-byte transaction ID.
func (s *Signer) Sign(txID []byte) ([]byte, error) {
	if len(txID) != 32 {
		return nil, fmt.Errorf("transaction id must be 32 bytes, got %d", len(txID))
	}
	return crypto.Sign(txID, s.key)
}

// TxIDFromRawData hashes serialized raw_data the way nodes derive txID.
func TxIDFromRawData(raw []byte) []byte {
	sum := sha256.Sum256(raw)
	return sum[:]
}

// VerifyTxID checks that txIDHex is the hash of rawDataHex.
func VerifyTxID(txIDHex, rawDataHex string) ([]byte, error) {
	raw, err := hex.DecodeString(rawDataHex)
	if err != nil {
		return nil, fmt.Errorf("decode raw_data_hex: %w", err)
	}
	want := TxIDFromRawData(raw)
	got, err := hex.DecodeString(txIDHex)
	if err != nil {
		return nil, fmt.Errorf("decode txID: %w", err)
	}
	if !bytes.Equal(want, got) {
		return nil, fmt.Errorf("txID %s does not match raw data", txIDHex)
	}
	return want, nil
}
