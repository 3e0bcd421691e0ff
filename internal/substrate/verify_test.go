package substrate

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"testing"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "localhost wants you to sign in with your Polkadot account:\n5Grw...\n\nSign in.\n\nNonce: abc123"

func TestVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	address, err := EncodeSS58(pub, 42)
	require.NoError(t, err)

	signature := hex.EncodeToString(ed25519.Sign(priv, []byte(testMessage)))
	assert.True(t, Verify(testMessage, signature, address))
	assert.True(t, Verify(testMessage, "0x"+signature, address), "0x-prefixed signature")
}

func TestVerifyEd25519WrappedBytes(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	address, err := EncodeSS58(pub, 42)
	require.NoError(t, err)

	// polkadot-js signRaw wraps the payload before signing.
	signature := hex.EncodeToString(ed25519.Sign(priv, WrapBytes(testMessage)))
	assert.True(t, Verify(testMessage, signature, address))
}

func TestVerifySr25519(t *testing.T) {
	priv, pub, err := schnorrkel.GenerateKeypair()
	require.NoError(t, err)

	pubBytes := pub.Encode()
	address, err := EncodeSS58(pubBytes[:], 42)
	require.NoError(t, err)

	transcript := schnorrkel.NewSigningContext([]byte("substrate"), []byte(testMessage))
	sig, err := priv.Sign(transcript)
	require.NoError(t, err)
	sigBytes := sig.Encode()

	assert.True(t, Verify(testMessage, hex.EncodeToString(sigBytes[:]), address))
}

func TestVerifyRejectsTampering(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	address, err := EncodeSS58(pub, 42)
	require.NoError(t, err)
	signature := hex.EncodeToString(ed25519.Sign(priv, []byte(testMessage)))

	assert.False(t, Verify(testMessage+" ", signature, address), "mutated message")

	mutated := signature[:len(signature)-2] + "00"
	if mutated == signature {
		mutated = signature[:len(signature)-2] + "01"
	}
	assert.False(t, Verify(testMessage, mutated, address), "mutated signature")

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherAddress, err := EncodeSS58(otherPub, 42)
	require.NoError(t, err)
	assert.False(t, Verify(testMessage, signature, otherAddress), "wrong signer")
}

func TestVerifyEVMPersonalSign(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()

	prefix := []byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(testMessage)))
	hash := ethcrypto.Keccak256(prefix, []byte(testMessage))
	sig, err := ethcrypto.Sign(hash, key)
	require.NoError(t, err)

	assert.True(t, Verify(testMessage, hex.EncodeToString(sig), address), "raw recovery id")

	// Wallets commonly emit the 27/28 convention.
	sig[64] += 27
	assert.True(t, Verify(testMessage, "0x"+hex.EncodeToString(sig), address), "legacy recovery id")

	assert.False(t, Verify(testMessage+"!", hex.EncodeToString(sig), address))
}

func TestVerifyRejectsEmptyInput(t *testing.T) {
	assert.False(t, Verify("", "ab", aliceAddress))
	assert.False(t, Verify("msg", "", aliceAddress))
	assert.False(t, Verify("msg", "ab", ""))
	assert.False(t, Verify("msg", "not-hex", aliceAddress))
}
