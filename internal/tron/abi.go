package tron

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/web3-frozen/tron-source-router/internal/source"
)

// Param is one typed contract-call argument as received from a tool call.
type Param struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

var paramDecoder = sonic.Config{UseNumber: true}.Froze()

// UnmarshalJSON accepts the value as a JSON string, number or bool. Numbers
// keep their exact digits, so 256-bit integers survive.
func (p *Param) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	}
	if err := paramDecoder.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.Type = wire.Type
	switch v := wire.Value.(type) {
	case nil:
		p.Value = ""
	case string:
		p.Value = v
	case json.Number:
		p.Value = v.String()
	case bool:
		p.Value = strconv.FormatBool(v)
	default:
		return fmt.Errorf("value of %s parameter must be a string, number or bool", wire.Type)
	}
	return nil
}

// canonicalType maps the accepted Solidity type names onto the ones the
// encoder knows. Sized integers below 256 bits are not supported.
func canonicalType(t string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "address":
		return "address", true
	case "uint", "uint256":
		return "uint256", true
	case "int", "int256":
		return "int256", true
	case "bool":
		return "bool", true
	case "string":
		return "string", true
	}
	return "", false
}

// FunctionName returns the bare name of a function selector, e.g.
// "transfer(address,uint256)" -> "transfer".
func FunctionName(fn string) string {
	fn = strings.TrimSpace(fn)
	if i := strings.IndexByte(fn, '('); i >= 0 {
		return fn[:i]
	}
	return fn
}

// FunctionSignature returns fn unchanged when it already carries a parameter
// list; otherwise it builds one from params.
func FunctionSignature(fn string, params []Param) (string, error) {
	fn = strings.TrimSpace(fn)
	if fn == "" {
		return "", source.NewErrInvalidParameter("functionName", "required")
	}
	if strings.Contains(fn, "(") {
		return fn, nil
	}
	types := make([]string, 0, len(params))
	for i, p := range params {
		t, ok := canonicalType(p.Type)
		if !ok {
			return "", source.NewErrInvalidParameter(fmt.Sprintf("parameters[%d].type", i), "unsupported type "+p.Type)
		}
		types = append(types, t)
	}
	return fn + "(" + strings.Join(types, ",") + ")", nil
}

// ValidateParams checks types and values without encoding. Address values are
// validated as TRON addresses.
func ValidateParams(params []Param) error {
	_, err := packArgs(params)
	return err
}

// EncodeParams ABI-encodes params without the 4-byte selector, returning hex
// as expected by the gateway's "parameter" field.
func EncodeParams(params []Param) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	args, values, err := packArgsWithValues(params)
	if err != nil {
		return "", err
	}
	packed, err := args.Pack(values...)
	if err != nil {
		return "", source.NewErrInvalidParameter("parameters", err.Error())
	}
	return hex.EncodeToString(packed), nil
}

// NodeParamsJSON renders params in the `[{"type":"value"}]` layout the node
// client's contract trigger calls take.
func NodeParamsJSON(params []Param) (string, error) {
	if _, err := packArgs(params); err != nil {
		return "", err
	}
	out := make([]map[string]string, 0, len(params))
	for _, p := range params {
		t, _ := canonicalType(p.Type)
		v := p.Value
		if t == "address" {
			v = NormalizeBase58(v)
		}
		out = append(out, map[string]string{t: v})
	}
	if len(out) == 0 {
		return "", nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func packArgs(params []Param) (abi.Arguments, error) {
	args, _, err := packArgsWithValues(params)
	return args, err
}

func packArgsWithValues(params []Param) (abi.Arguments, []any, error) {
	args := make(abi.Arguments, 0, len(params))
	values := make([]any, 0, len(params))
	for i, p := range params {
		name := fmt.Sprintf("parameters[%d]", i)
		t, ok := canonicalType(p.Type)
		if !ok {
			return nil, nil, source.NewErrInvalidParameter(name+".type", "unsupported type "+p.Type)
		}
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, nil, source.NewErrInvalidParameter(name+".type", err.Error())
		}
		v, err := convertValue(t, p.Value)
		if err != nil {
			if source.CodeOf(err) == source.CodeInvalidAddress {
				return nil, nil, err
			}
			return nil, nil, source.NewErrInvalidParameter(name+".value", err.Error())
		}
		args = append(args, abi.Argument{Type: typ})
		values = append(values, v)
	}
	return args, values, nil
}

func convertValue(t, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch t {
	case "address":
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		return ToEVM(addr), nil
	case "uint256", "int256":
		n, ok := parseBigInt(raw)
		if !ok {
			return nil, fmt.Errorf("not an integer: %q", raw)
		}
		if t == "uint256" && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value for uint256: %q", raw)
		}
		return n, nil
	case "bool":
		switch strings.ToLower(raw) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("not a bool: %q", raw)
	case "string":
		return raw, nil
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

func parseBigInt(s string) (*big.Int, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return new(big.Int).SetString(s[2:], 16)
	}
	return new(big.Int).SetString(s, 10)
}

// DecodeUint256 reads the first 32-byte word of a constant-call result.
func DecodeUint256(result []byte) *big.Int {
	if len(result) > 32 {
		result = result[:32]
	}
	return new(big.Int).SetBytes(result)
}

// DecodeUint256Hex is DecodeUint256 for hex-encoded results as returned by the
// gateway.
func DecodeUint256Hex(s string) (*big.Int, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	return DecodeUint256(b), nil
}
