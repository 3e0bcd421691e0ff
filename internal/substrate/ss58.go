// Package substrate implements the address and signature primitives the SSO
// core verifies against: SS58 address decoding and sr25519/ed25519 signature
// checks for Substrate accounts, plus personal_sign recovery for 0x accounts
// on EVM-compatible parachains.
package substrate

import (
	"errors"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ss58Prefix is the checksum preimage prefix defined by the SS58 spec.
var ss58Prefix = []byte("SS58PRE")

var (
	ErrInvalidAddress  = errors.New("invalid ss58 address")
	ErrInvalidChecksum = errors.New("invalid ss58 checksum")
)

// DecodeSS58 decodes an SS58 address into its network identifier and 32-byte
// public key, verifying the embedded checksum.
func DecodeSS58(address string) (network uint16, pubKey []byte, err error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return 0, nil, ErrInvalidAddress
	}
	if len(raw) < 3 {
		return 0, nil, ErrInvalidAddress
	}

	var prefixLen int
	switch {
	case raw[0] < 64:
		network = uint16(raw[0])
		prefixLen = 1
	case raw[0] < 128:
		if len(raw) < 4 {
			return 0, nil, ErrInvalidAddress
		}
		// Two-byte prefix: 14 bits spread over both bytes.
		lower := uint16(raw[0]&0x3f)<<2 | uint16(raw[1])>>6
		upper := uint16(raw[1]&0x3f) << 8
		network = lower | upper
		prefixLen = 2
	default:
		return 0, nil, ErrInvalidAddress
	}

	// 32-byte public keys carry a 2-byte checksum.
	if len(raw) != prefixLen+32+2 {
		return 0, nil, ErrInvalidAddress
	}
	body := raw[:len(raw)-2]
	checksum := raw[len(raw)-2:]

	want := ss58Checksum(body)
	if want[0] != checksum[0] || want[1] != checksum[1] {
		return 0, nil, ErrInvalidChecksum
	}

	return network, raw[prefixLen : prefixLen+32], nil
}

// EncodeSS58 encodes a 32-byte public key as an SS58 address for the given
// network identifier.
func EncodeSS58(pubKey []byte, network uint16) (string, error) {
	if len(pubKey) != 32 {
		return "", ErrInvalidAddress
	}
	if network >= 1<<14 {
		return "", ErrInvalidAddress
	}

	var body []byte
	if network < 64 {
		body = append([]byte{byte(network)}, pubKey...)
	} else {
		first := byte(network&0xfc)>>2 | 0x40
		second := byte(network>>8) | byte(network&0x03)<<6
		body = append([]byte{first, second}, pubKey...)
	}

	checksum := ss58Checksum(body)
	return base58.Encode(append(body, checksum[:2]...)), nil
}

func ss58Checksum(body []byte) [2]byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Prefix)
	h.Write(body)
	sum := h.Sum(nil)
	return [2]byte{sum[0], sum[1]}
}
