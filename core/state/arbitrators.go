package state

import (
	"fmt"

	"bazaar/native/arbitrator"
)

type storedContract struct {
	Address      [20]byte
	Owner        [20]byte
	Nonce        uint64
	CreatedAt    uint64
	Rulings      uint64
	LastDispute  uint64
	LastRulingAt uint64
}

// ArbitratorNextNonce allocates the per-owner nonce used to derive contract
// addresses.
func (m *Manager) ArbitratorNextNonce(owner [20]byte) (uint64, error) {
	return m.nextSequence(ArbitratorNonceKey(owner[:]))
}

func (m *Manager) ArbitratorPut(c *arbitrator.Contract) error {
	if c == nil {
		return fmt.Errorf("arbitrator: nil contract")
	}
	record := &storedContract{
		Address:      c.Address,
		Owner:        c.Owner,
		Nonce:        c.Nonce,
		CreatedAt:    uint64(c.CreatedAt),
		Rulings:      c.Rulings,
		LastDispute:  c.LastDispute,
		LastRulingAt: uint64(c.LastRulingAt),
	}
	return m.KVPut(ArbitratorContractKey(c.Address[:]), record)
}

func (m *Manager) ArbitratorGet(addr [20]byte) (*arbitrator.Contract, bool, error) {
	var record storedContract
	ok, err := m.KVGet(ArbitratorContractKey(addr[:]), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &arbitrator.Contract{
		Address:      record.Address,
		Owner:        record.Owner,
		Nonce:        record.Nonce,
		CreatedAt:    int64(record.CreatedAt),
		Rulings:      record.Rulings,
		LastDispute:  record.LastDispute,
		LastRulingAt: int64(record.LastRulingAt),
	}, true, nil
}
