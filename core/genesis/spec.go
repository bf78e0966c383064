package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bazaar/crypto"
)

// NativeAsset is the allocation key that funds native balances.
const NativeAsset = "native"

// Spec is the YAML genesis document.
type Spec struct {
	GenesisTime string                       `yaml:"genesisTime"`
	Tokens      []TokenSpec                  `yaml:"tokens"`
	Alloc       map[string]map[string]string `yaml:"alloc"` // addr -> asset -> amount
	Arbitrators []ArbitratorSpec             `yaml:"arbitrators"`
	Users       []string                     `yaml:"users"`

	genesisTimestamp time.Time
}

type TokenSpec struct {
	Symbol        string `yaml:"symbol"`
	Name          string `yaml:"name"`
	Decimals      uint8  `yaml:"decimals"`
	MintAuthority string `yaml:"mintAuthority"`
}

// ArbitratorSpec registers Count arbitration contracts for Owner.
type ArbitratorSpec struct {
	Owner string `yaml:"owner"`
	Count int    `yaml:"count"`
}

// Load reads and validates a genesis document.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a genesis document, rejecting unknown fields.
func Parse(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	symbols := make(map[string]struct{}, len(s.Tokens))
	for _, token := range s.Tokens {
		symbol := strings.ToUpper(strings.TrimSpace(token.Symbol))
		if symbol == "" || strings.EqualFold(symbol, NativeAsset) {
			return fmt.Errorf("token symbol %q is reserved or empty", token.Symbol)
		}
		if _, dup := symbols[symbol]; dup {
			return fmt.Errorf("duplicate token %q", symbol)
		}
		symbols[symbol] = struct{}{}
		if _, err := ParseAccount(token.MintAuthority); err != nil {
			return fmt.Errorf("token %q mintAuthority: %w", symbol, err)
		}
	}
	for addr, assets := range s.Alloc {
		if _, err := ParseAccount(addr); err != nil {
			return fmt.Errorf("alloc %q: %w", addr, err)
		}
		for asset, amount := range assets {
			if _, err := parseAmount(amount); err != nil {
				return fmt.Errorf("alloc %q %s: %w", addr, asset, err)
			}
			if strings.EqualFold(asset, NativeAsset) {
				continue
			}
			if _, ok := symbols[strings.ToUpper(strings.TrimSpace(asset))]; !ok {
				return fmt.Errorf("alloc %q: unknown token %q", addr, asset)
			}
		}
	}
	for _, arb := range s.Arbitrators {
		if _, err := ParseAccount(arb.Owner); err != nil {
			return fmt.Errorf("arbitrator owner: %w", err)
		}
		if arb.Count < 0 {
			return fmt.Errorf("arbitrator %s: negative count", arb.Owner)
		}
	}
	for _, user := range s.Users {
		if _, err := ParseAccount(user); err != nil {
			return fmt.Errorf("user: %w", err)
		}
	}
	return nil
}

// GenesisTimestamp returns the parsed genesis time.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// ParseAccount decodes a bzr bech32 address.
func ParseAccount(addr string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return [20]byte{}, fmt.Errorf("decode bech32 account: %w", err)
	}
	return [20]byte(decoded), nil
}

func parseGenesisTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return amount, nil
}
