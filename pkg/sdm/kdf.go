package sdm

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveMode selects which of the two documented key-diversification
// regimes to use. Both derive TagKey (K_SDMFileReadKey, UID-diversified)
// and MetaKey (K_SDMMetaReadKey, undiversified) from one MasterKey.
type DeriveMode int

const (
	// DeriveNew is the HMAC/CMAC scheme introduced 2023-01-24. This is
	// the default for new deployments.
	DeriveNew DeriveMode = iota
	// DeriveLegacy is the PBKDF2-HMAC-SHA512 scheme kept for
	// compatibility with tags provisioned before the 2023-01-24 change.
	DeriveLegacy
)

// Diversification constants for DeriveNew, ASCII strings per the
// 2023-01-24 scheme.
var (
	divConst1 = []byte("PICCDataKey")   // undiversified-key domain separator
	divConst2 = []byte("SlotMasterKey") // per-key-slot domain separator
	divConst3 = []byte("DivBaseKey")    // UID-diversification domain separator
)

const legacyPBKDF2Iterations = 5000
const legacyPBKDF2KeyLen = 16

var zeroKey16 = make([]byte, 16)

func isZeroMasterKey(mk []byte) bool {
	return constantTimeEqual(mk, zeroKey16) && len(mk) == 16
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// DeriveUndiversifiedKey derives K_SDMMetaReadKey (always key_no == 1)
// from MasterKey. An all-zero MasterKey ("demo mode", spec.md §3) always
// short-circuits to an all-zero key, in both derivation modes, so that
// the published test vectors can be verified without real key material.
func DeriveUndiversifiedKey(mode DeriveMode, masterKey []byte, keyNo int) ([]byte, error) {
	if keyNo != 1 {
		return nil, fmt.Errorf("sdm: only key #1 can be derived in undiversified mode")
	}
	if isZeroMasterKey(masterKey) {
		return make([]byte, 16), nil
	}

	switch mode {
	case DeriveNew:
		return hmacSHA256(masterKey, divConst1)[:16], nil
	case DeriveLegacy:
		label := append([]byte("key_no_uid"), byte(keyNo))
		return pbkdf2.Key(masterKey, label, legacyPBKDF2Iterations, legacyPBKDF2KeyLen, sha512.New), nil
	default:
		return nil, fmt.Errorf("sdm: unknown derive mode %v", mode)
	}
}

// DeriveTagKey derives K_SDMFileReadKey, diversified per the tag's UID,
// from MasterKey. The same demo-mode short-circuit as
// DeriveUndiversifiedKey applies.
func DeriveTagKey(mode DeriveMode, masterKey, uid []byte, keyNo int) ([]byte, error) {
	if isZeroMasterKey(masterKey) {
		return make([]byte, 16), nil
	}

	switch mode {
	case DeriveNew:
		inner := hmacSHA256(masterKey, divConst3) // full 32 bytes
		ikm := hmacSHA256(inner, uid)[:16]
		subKey := hmacSHA256(masterKey, append(append([]byte{}, divConst2...), byte(keyNo)))[:16]
		msg := append([]byte{0x01}, ikm...)
		return aesCMAC(subKey, msg)
	case DeriveLegacy:
		label := append(append([]byte("key"), uid...), byte(keyNo))
		return pbkdf2.Key(masterKey, label, legacyPBKDF2Iterations, legacyPBKDF2KeyLen, sha512.New), nil
	default:
		return nil, fmt.Errorf("sdm: unknown derive mode %v", mode)
	}
}
