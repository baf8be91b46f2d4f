package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// NodeKey derives the deterministic private key a client is started with.
// The key is the keccak256 digest of the client identifier.
func NodeKey(clientID string) (*ecdsa.PrivateKey, error) {
	seed := ethcrypto.Keccak256([]byte(clientID))
	key, err := ethcrypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive node key for %s: %w", clientID, err)
	}
	return key, nil
}

// NodeID returns the hex encoded public key of the client, without the 04 prefix.
func NodeID(clientID string) (string, error) {
	key, err := NodeKey(clientID)
	if err != nil {
		return "", err
	}
	pub := ethcrypto.FromECDSAPub(&key.PublicKey)
	return common.Bytes2Hex(pub[1:]), nil
}

// CoinbaseAddress returns the address credited with mining rewards for the client.
func CoinbaseAddress(clientID string) (common.Address, error) {
	key, err := NodeKey(clientID)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey), nil
}
