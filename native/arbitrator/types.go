package arbitrator

import "errors"

var (
	ErrNotFound     = errors.New("arbitrator: contract not found")
	ErrUnauthorized = errors.New("arbitrator: caller is not the contract owner")

	errNilState    = errors.New("arbitrator engine: state not configured")
	errNilExecutor = errors.New("arbitrator engine: ruling executor not configured")
)

// Contract is an arbitration authority whose owner issues binding rulings.
// Its address is what offers bind as their arbitrator.
type Contract struct {
	Address      [20]byte
	Owner        [20]byte
	Nonce        uint64
	CreatedAt    int64
	Rulings      uint64
	LastDispute  uint64
	LastRulingAt int64
}

func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
