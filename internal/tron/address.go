// Package tron holds the chain-specific encoding helpers shared by the backend
// adapters: address forms, SUN/TRX units, ABI parameters and transaction
// signing.
package tron

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/address"

	"github.com/web3-frozen/tron-source-router/internal/source"
)

const (
	addressLength = 21
	addressPrefix = 0x41
)

var errAddressShape = errors.New("expected 21 bytes with 0x41 prefix")

// ParseAddress accepts a base58check ("T...") or hex ("41...", optionally
// 0x-prefixed) address and returns the raw 21-byte form.
func ParseAddress(s string) (address.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, source.NewErrInvalidAddress(s, errors.New("empty"))
	}

	var (
		addr address.Address
		err  error
	)
	if strings.HasPrefix(s, "T") {
		addr, err = address.Base58ToAddress(s)
	} else {
		var b []byte
		b, err = hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
		addr = address.Address(b)
	}
	if err != nil {
		return nil, source.NewErrInvalidAddress(s, err)
	}
	if len(addr) != addressLength || addr[0] != addressPrefix {
		return nil, source.NewErrInvalidAddress(s, errAddressShape)
	}
	return addr, nil
}

// MustParseAddress is ParseAddress for static, known-good literals.
func MustParseAddress(s string) address.Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// ValidateAddress returns an InvalidAddress error for malformed input.
func ValidateAddress(s string) error {
	_, err := ParseAddress(s)
	return err
}

// Base58 renders addr in the "T..." form used by the gateway with visible=true
// and by the explorer.
func Base58(addr address.Address) string {
	return addr.String()
}

// Hex renders addr as lowercase hex with the 41 prefix and no 0x.
func Hex(addr address.Address) string {
	return hex.EncodeToString(addr)
}

// ToEVM strips the network prefix for ABI encoding.
func ToEVM(addr address.Address) common.Address {
	return common.BytesToAddress(addr[1:])
}

// FromEVM prefixes a 20-byte EVM address with the TRON network byte.
func FromEVM(a common.Address) address.Address {
	out := make([]byte, 0, addressLength)
	out = append(out, addressPrefix)
	out = append(out, a.Bytes()...)
	return address.Address(out)
}

// NormalizeBase58 converts any accepted form to base58, or returns the input
// unchanged when it does not parse. Used when mapping backend payloads that
// mix encodings.
func NormalizeBase58(s string) string {
	if s == "" {
		return ""
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return s
	}
	return Base58(addr)
}

// ZeroAddress is the all-zero account, used as the caller of read-only
// contract calls when no owner is given.
const ZeroAddress = "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb"

// ValidateTxID checks for a 32-byte hex transaction hash.
func ValidateTxID(id string) error {
	id = strings.TrimPrefix(strings.TrimSpace(id), "0x")
	b, err := hex.DecodeString(id)
	if err != nil || len(b) != 32 {
		return source.NewErrInvalidParameter("txId", "expected 64 hex characters")
	}
	return nil
}
