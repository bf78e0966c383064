package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"bazaar/crypto"
	"bazaar/native/ledger"
)

// decodeParams unmarshals the single parameter object of req into dst.
func decodeParams(w http.ResponseWriter, req *RPCRequest, dst interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func invalidParams(w http.ResponseWriter, req *RPCRequest, err error) {
	writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
}

func parseAddress(addr string) ([20]byte, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	return [20]byte(decoded), nil
}

// parseOptionalAddress returns the zero address for an empty string.
func parseOptionalAddress(addr string) ([20]byte, error) {
	if strings.TrimSpace(addr) == "" {
		return [20]byte{}, nil
	}
	return parseAddress(addr)
}

func formatAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.Address(addr).String()
}

// parseAmount parses a non-negative base-10 integer; empty means zero.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parsePositiveAmount(value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, err := parseAmount(value)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseContentRef accepts a 32-byte hex string with or without 0x.
func parseContentRef(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return out, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid content reference: %w", err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("content reference must be 32 bytes")
	}
	copy(out[:], decoded)
	return out, nil
}

func formatHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func parseFunding(kind, token string) (ledger.Funding, error) {
	if strings.TrimSpace(kind) == "" {
		kind = "native"
	}
	k, err := ledger.ParseKind(kind)
	if err != nil {
		return ledger.Funding{}, err
	}
	f := ledger.Funding{Kind: k}
	if k == ledger.KindToken {
		f.Token = strings.ToUpper(strings.TrimSpace(token))
		if f.Token == "" {
			return ledger.Funding{}, fmt.Errorf("token required for token funding")
		}
	}
	return f, nil
}
