package tron

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

const (
	AddressVersion = byte(0x41)

	accountIDLen = 20
	payloadLen   = accountIDLen + 1
	checksumLen  = 4
	decodedLen   = payloadLen + checksumLen
)

var ErrInvalidAddress = errors.New("invalid tron address")

// ToDisplay converts a raw hex address (41..., 0x41... or a bare 20-byte hex)
// into the base58check form shown by explorers (T...).
func ToDisplay(raw string) (string, error) {
	cleaned := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "0x")
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not hex", ErrInvalidAddress, raw)
	}
	if len(b) == accountIDLen {
		b = append([]byte{AddressVersion}, b...)
	}
	return ToDisplayBytes(b)
}

// ToDisplayBytes encodes a 21-byte version-prefixed address.
func ToDisplayBytes(raw []byte) (string, error) {
	if len(raw) != payloadLen {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, payloadLen, len(raw))
	}
	if raw[0] != AddressVersion {
		return "", fmt.Errorf("%w: unexpected version byte 0x%02x", ErrInvalidAddress, raw[0])
	}
	full := make([]byte, 0, decodedLen)
	full = append(full, raw...)
	full = append(full, checksum(raw)...)
	return base58.Encode(full), nil
}

// ToRaw decodes a display address back to its lowercase 21-byte hex form.
func ToRaw(display string) (string, error) {
	b, err := decode(display)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ToRawBytes is ToRaw without the hex step.
func ToRawBytes(display string) ([]byte, error) {
	return decode(display)
}

func Validate(display string) error {
	_, err := decode(display)
	return err
}

func IsValid(display string) bool {
	return Validate(display) == nil
}

func decode(display string) ([]byte, error) {
	cleaned := strings.TrimSpace(display)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	full := base58.Decode(cleaned)
	if len(full) != decodedLen {
		return nil, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, display, len(full))
	}
	payload, sum := full[:payloadLen], full[payloadLen:]
	if !bytes.Equal(checksum(payload), sum) {
		return nil, fmt.Errorf("%w: checksum mismatch for %q", ErrInvalidAddress, display)
	}
	if payload[0] != AddressVersion {
		return nil, fmt.Errorf("%w: unexpected version byte 0x%02x", ErrInvalidAddress, payload[0])
	}
	return payload, nil
}

func checksum(payload []byte) []byte {
	h1 := sha256.Sum256(payload)
	h2 := sha256.Sum256(h1[:])
	return h2[:checksumLen]
}
