package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestCoinbaseAddressDeterministic(t *testing.T) {
	a1, err := CoinbaseAddress("client-1")
	require.NoError(t, err)
	a2, err := CoinbaseAddress("client-1")
	require.NoError(t, err)
	require.Equal(t, a1, a2)
	require.NotEqual(t, common.Address{}, a1)

	other, err := CoinbaseAddress("client-2")
	require.NoError(t, err)
	require.NotEqual(t, a1, other)
}

func TestCoinbaseAddressMatchesNodeKey(t *testing.T) {
	key, err := NodeKey("client-7")
	require.NoError(t, err)
	require.Equal(t, ethcrypto.Keccak256([]byte("client-7")), ethcrypto.FromECDSA(key))

	addr, err := CoinbaseAddress("client-7")
	require.NoError(t, err)
	require.Equal(t, ethcrypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestNodeID(t *testing.T) {
	id, err := NodeID("client-1")
	require.NoError(t, err)
	require.Len(t, id, 128)

	key, err := NodeKey("client-1")
	require.NoError(t, err)
	pub, err := ethcrypto.UnmarshalPubkey(append([]byte{0x04}, common.Hex2Bytes(id)...))
	require.NoError(t, err)
	require.Equal(t, ethcrypto.PubkeyToAddress(key.PublicKey), ethcrypto.PubkeyToAddress(*pub))
}
