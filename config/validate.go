package config

import (
	"fmt"
	"math/big"
	"strings"

	"bazaar/crypto"
	"bazaar/native/marketplace"
	"bazaar/storage"
)

// MaxFeeBps is the ceiling for basis-point settings.
const MaxFeeBps = 10_000

// Validate rejects configurations the node cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case storage.BackendLevelDB, storage.BackendBolt, storage.BackendMemory:
	default:
		return fmt.Errorf("storage: unsupported backend %q", cfg.Storage.Backend)
	}

	m := cfg.Marketplace
	policy, err := marketplace.ParseCommissionPolicy(m.CommissionPolicy)
	if err != nil {
		return err
	}
	if m.Treasury != "" {
		if _, err := crypto.DecodeAddress(m.Treasury); err != nil {
			return fmt.Errorf("marketplace: treasury: %w", err)
		}
	}
	if policy == marketplace.PolicyTreasury && m.Treasury == "" {
		return fmt.Errorf("marketplace: treasury policy requires a treasury address")
	}
	if m.ArbitrationFeeBps > MaxFeeBps {
		return fmt.Errorf("marketplace: arbitration fee %d bps exceeds %d", m.ArbitrationFeeBps, MaxFeeBps)
	}
	if m.MaxWithdrawTimeoutSecs < 0 {
		return fmt.Errorf("marketplace: negative max withdraw timeout")
	}
	if _, err := m.Deposit(); err != nil {
		return err
	}

	if cfg.RPC.RequestsPerMinute < 0 || cfg.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if cfg.Telemetry.ExportIntervalSecs < 0 {
		return fmt.Errorf("telemetry: export interval must not be negative")
	}
	return nil
}

// Deposit parses the configured listing deposit. A deposit needs a token.
func (m Marketplace) Deposit() (*big.Int, error) {
	raw := strings.TrimSpace(m.ListingDeposit)
	if raw == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("marketplace: invalid listing deposit %q", m.ListingDeposit)
	}
	if amount.Sign() > 0 && strings.TrimSpace(m.DepositToken) == "" {
		return nil, fmt.Errorf("marketplace: listing deposit requires DepositToken")
	}
	return amount, nil
}

// TreasuryAddress decodes the commission treasury, if any.
func (m Marketplace) TreasuryAddress() ([20]byte, error) {
	if strings.TrimSpace(m.Treasury) == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.DecodeAddress(m.Treasury)
	if err != nil {
		return [20]byte{}, err
	}
	return [20]byte(addr), nil
}

// PauseSet lists the modules paused by configuration, keyed by module name.
func (p Pauses) PauseSet() map[string]bool {
	return map[string]bool{
		"marketplace": p.Marketplace,
		"vesting":     p.Vesting,
		"arbitrator":  p.Arbitrator,
		"identity":    p.Identity,
	}
}
