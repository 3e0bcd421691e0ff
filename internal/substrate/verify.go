package substrate

import (
	"crypto/ed25519"
	"encoding/hex"
	"strconv"
	"strings"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// signingContext is the transcript label polkadot wallets use for sr25519
// signatures over arbitrary bytes.
const signingContext = "substrate"

// Verify checks a wallet signature over message for the given address. It
// never returns an error: malformed signatures, addresses or messages all
// yield false.
//
// SS58 addresses are checked against sr25519 and ed25519 schemes, both over
// the raw message and over the "<Bytes>...</Bytes>" wrapping applied by
// polkadot-js signRaw. 0x addresses are checked by Ethereum personal_sign
// public key recovery.
func Verify(message, signature, address string) bool {
	if message == "" || signature == "" || address == "" {
		return false
	}

	if isEVMAddress(address) {
		return verifyEVM(message, signature, address)
	}

	_, pubKey, err := DecodeSS58(address)
	if err != nil {
		return false
	}
	sig, err := decodeHex(signature)
	if err != nil || len(sig) != 64 {
		return false
	}

	var pub [32]byte
	copy(pub[:], pubKey)
	var sig64 [64]byte
	copy(sig64[:], sig)

	// Wallets differ on whether the signed payload is the raw message or
	// the <Bytes> wrapping; accept either, but only the exact bytes.
	candidates := [][]byte{[]byte(message), wrapBytes(message)}
	for _, msg := range candidates {
		if verifySr25519(pub, sig64, msg) {
			return true
		}
		if ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig) {
			return true
		}
	}
	return false
}

// WrapBytes applies the polkadot-js signRaw envelope to a message.
func WrapBytes(message string) []byte { return wrapBytes(message) }

func wrapBytes(message string) []byte {
	return []byte("<Bytes>" + message + "</Bytes>")
}

func verifySr25519(pub [32]byte, sig [64]byte, msg []byte) bool {
	pk := &schnorrkel.PublicKey{}
	if err := pk.Decode(pub); err != nil {
		return false
	}
	s := &schnorrkel.Signature{}
	if err := s.Decode(sig); err != nil {
		return false
	}
	transcript := schnorrkel.NewSigningContext([]byte(signingContext), msg)
	ok, err := pk.Verify(s, transcript)
	return err == nil && ok
}

func isEVMAddress(address string) bool {
	if len(address) != 42 {
		return false
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return false
	}
	_, err := hex.DecodeString(address[2:])
	return err == nil
}

func verifyEVM(message, signature, address string) bool {
	sig, err := decodeHex(signature)
	if err != nil || len(sig) != 65 {
		return false
	}
	// Normalize the recovery id from the 27/28 convention.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	prefix := []byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message)))
	hash := ethcrypto.Keccak256(prefix, []byte(message))

	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return false
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), address)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
