package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"bazaar/crypto"
)

var cliNow = time.Now

// normalizeAmount accepts plain integers and 100e18 style shorthand and
// returns the base-10 integer string the node expects.
func normalizeAmount(name, value string) (string, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return "", nil
	}
	r, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return "", fmt.Errorf("--%s: invalid amount %q", name, value)
	}
	if r.Sign() < 0 {
		return "", fmt.Errorf("--%s must not be negative", name)
	}
	if !r.IsInt() {
		return "", fmt.Errorf("--%s must be a whole number of base units", name)
	}
	return r.Num().String(), nil
}

func checkAddress(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if _, err := crypto.DecodeAddress(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("--%s: %v", name, err)
	}
	return nil
}

func checkContentRef(name, value string) error {
	cleaned := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	raw, err := hex.DecodeString(cleaned)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("--%s must be a 32-byte hex string", name)
	}
	return nil
}

// parseTime accepts +duration relative to now, an RFC3339 timestamp or unix
// seconds.
func parseTime(name, value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("--%s is required", name)
	}
	if strings.HasPrefix(trimmed, "+") {
		dur, err := parseDuration(strings.TrimSpace(trimmed[1:]))
		if err != nil {
			return 0, fmt.Errorf("--%s: %v", name, err)
		}
		return cliNow().Add(dur).Unix(), nil
	}
	if secs, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return secs, nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return 0, fmt.Errorf("--%s must be +duration, RFC3339 or unix seconds", name)
	}
	return ts.Unix(), nil
}

// parseDuration extends time.ParseDuration with a day suffix.
func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if strings.HasSuffix(value, "d") || strings.HasSuffix(value, "D") {
		days, err := strconv.ParseInt(value[:len(value)-1], 10, 64)
		if err != nil || days < 0 {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	if dur < 0 {
		return 0, fmt.Errorf("duration must not be negative")
	}
	return dur, nil
}

// releaseList collects repeated --release time:amount flags.
type releaseList []releaseParams

func (r *releaseList) String() string {
	parts := make([]string, 0, len(*r))
	for _, rel := range *r {
		parts = append(parts, fmt.Sprintf("%d:%s", rel.Time, rel.Amount))
	}
	return strings.Join(parts, ",")
}

func (r *releaseList) Set(value string) error {
	idx := strings.LastIndex(value, ":")
	if idx <= 0 {
		return fmt.Errorf("release must be time:amount")
	}
	at, err := parseTime("release", value[:idx])
	if err != nil {
		return err
	}
	amount, err := normalizeAmount("release", value[idx+1:])
	if err != nil {
		return err
	}
	if amount == "" {
		return fmt.Errorf("release amount required")
	}
	*r = append(*r, releaseParams{Time: at, Amount: amount})
	return nil
}
