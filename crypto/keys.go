package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the bech32 human-readable part used for account addresses.
const AddressPrefix = "bzr"

// Address is a 20-byte account identifier rendered as bech32.
type Address [20]byte

// BytesToAddress copies b into an Address. It panics unless b is 20 bytes.
func BytesToAddress(b []byte) Address {
	if len(b) != 20 {
		panic("address must be 20 bytes long")
	}
	var a Address
	copy(a[:], b)
	return a
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == Address{} }

// DecodeAddress parses a bech32 address carrying the bzr prefix.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("unsupported address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return BytesToAddress(conv), nil
}

// DeriveAddress returns the address formed by the last 20 bytes of the
// keccak256 hash over the supplied parts. Module vaults and identity proxies
// are derived this way.
func DeriveAddress(parts ...[]byte) Address {
	hash := crypto.Keccak256(parts...)
	return BytesToAddress(hash[12:])
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	return Address(crypto.PubkeyToAddress(*k.PublicKey))
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
