package state

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Namespaced keys. Every key is hashed by KVPut/KVGet before storage.

func AccountKey(addr []byte) []byte {
	return []byte("accounts/" + hex.EncodeToString(addr))
}

func TokenMetadataKey(symbol string) []byte {
	return []byte("tokens/meta/" + strings.ToUpper(symbol))
}

func TokenListKey() []byte { return []byte("tokens/list") }

func TokenBalanceKey(symbol string, addr []byte) []byte {
	return []byte("tokens/balances/" + strings.ToUpper(symbol) + "/" + hex.EncodeToString(addr))
}

func TokenAllowanceKey(symbol string, owner, spender []byte) []byte {
	return []byte("tokens/allowances/" + strings.ToUpper(symbol) + "/" + hex.EncodeToString(owner) + "/" + hex.EncodeToString(spender))
}

func MarketListingKey(id uint64) []byte {
	return []byte("market/listings/" + strconv.FormatUint(id, 10))
}

func MarketListingSequenceKey() []byte { return []byte("market/listings/seq") }

func MarketOfferKey(listingID, offerID uint64) []byte {
	return []byte("market/offers/" + strconv.FormatUint(listingID, 10) + "/" + strconv.FormatUint(offerID, 10))
}

func MarketOfferSequenceKey(listingID uint64) []byte {
	return []byte("market/offers/" + strconv.FormatUint(listingID, 10) + "/seq")
}

func MarketDisputeKey(id uint64) []byte {
	return []byte("market/disputes/" + strconv.FormatUint(id, 10))
}

func MarketDisputeSequenceKey() []byte { return []byte("market/disputes/seq") }

func ArbitratorContractKey(addr []byte) []byte {
	return []byte("arbitrators/" + hex.EncodeToString(addr))
}

func ArbitratorNonceKey(owner []byte) []byte {
	return []byte("arbitrators/nonce/" + hex.EncodeToString(owner))
}

func VestingGrantKey(id uint64) []byte {
	return []byte("vesting/grants/" + strconv.FormatUint(id, 10))
}

func VestingSequenceKey() []byte { return []byte("vesting/seq") }

func IdentityKey(account []byte) []byte {
	return []byte("identity/accounts/" + hex.EncodeToString(account))
}

func IdentityProxyKey(proxy []byte) []byte {
	return []byte("identity/proxies/" + hex.EncodeToString(proxy))
}

func EventLogKey(seq uint64) []byte {
	return []byte("events/" + strconv.FormatUint(seq, 10))
}

func EventLogCountKey() []byte { return []byte("events/count") }

func GenesisMarkerKey() []byte { return []byte("genesis/time") }
