package crypto

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	encoded := addr.String()
	if !strings.HasPrefix(encoded, AddressPrefix+"1") {
		t.Fatalf("unexpected prefix in %s", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: %x != %x", decoded, addr)
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	// A valid bech32 string under a different human-readable part.
	if _, err := DecodeAddress("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"); err == nil {
		t.Fatalf("expected prefix error")
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	a := DeriveAddress([]byte("module"), []byte("marketplace"))
	b := DeriveAddress([]byte("module"), []byte("marketplace"))
	c := DeriveAddress([]byte("module"), []byte("vesting"))
	if a != b {
		t.Fatalf("derivation must be deterministic")
	}
	if a == c || a.IsZero() {
		t.Fatalf("unexpected derived address %x", a)
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "node.json")
	if err := SaveToKeystore(path, key, "correct horse"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "correct horse")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PubKey().Address() != key.PubKey().Address() {
		t.Fatalf("loaded key does not match")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}
