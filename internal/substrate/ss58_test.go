package substrate

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known Alice dev account on the substrate generic network (prefix 42).
const (
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	alicePubKey  = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
)

func TestDecodeSS58KnownAddress(t *testing.T) {
	network, pubKey, err := DecodeSS58(aliceAddress)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), network)
	assert.Equal(t, alicePubKey, hex.EncodeToString(pubKey))
}

func TestSS58RoundTrip(t *testing.T) {
	pubKey := make([]byte, 32)
	_, err := rand.Read(pubKey)
	require.NoError(t, err)

	for _, network := range []uint16{0, 2, 42, 63, 64, 255, 2254, 16383} {
		address, err := EncodeSS58(pubKey, network)
		require.NoError(t, err)

		gotNetwork, gotKey, err := DecodeSS58(address)
		require.NoError(t, err, "network %d", network)
		assert.Equal(t, network, gotNetwork)
		assert.Equal(t, pubKey, gotKey)
	}
}

func TestDecodeSS58RejectsCorruptChecksum(t *testing.T) {
	// Flip one character of a valid address.
	corrupted := []byte(aliceAddress)
	if corrupted[10] == 'a' {
		corrupted[10] = 'b'
	} else {
		corrupted[10] = 'a'
	}

	_, _, err := DecodeSS58(string(corrupted))
	assert.Error(t, err)
}

func TestDecodeSS58RejectsGarbage(t *testing.T) {
	for _, address := range []string{"", "0OIl", "abc", "5Grwva"} {
		_, _, err := DecodeSS58(address)
		assert.Error(t, err, "address %q", address)
	}
}

func TestEncodeSS58RejectsBadInput(t *testing.T) {
	_, err := EncodeSS58(make([]byte, 31), 42)
	assert.Error(t, err)

	_, err = EncodeSS58(make([]byte, 32), 1<<14)
	assert.Error(t, err)
}
