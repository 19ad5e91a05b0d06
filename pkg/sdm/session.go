package sdm

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// SV2 and SV1 prefixes (AN12196). SV2 binds the session key used for
// MAC computation; SV1 binds the session key used for file encryption.
var (
	sv2PrefixAES = []byte{0x3C, 0xC3, 0x00, 0x01, 0x00, 0x80}
	sv1PrefixAES = []byte{0xC3, 0x3C, 0x00, 0x01, 0x00, 0x80}
	sv2PrefixLRP = []byte{0x00, 0x01, 0x00, 0x80}
	lrpSVTrailer = []byte{0x1E, 0xE1}
)

// sessionMACInput builds the MAC input buffer: the hex-uppercase ASCII
// of encFileData followed by "&<sdmmacParam>=" when BOTH a non-empty
// parameter name is configured AND paramMode is SEPARATED. In BULK mode,
// or when the parameter name is empty, the suffix is omitted (spec.md
// §4.4).
func sessionMACInput(paramMode ParamMode, sdmmacParam string, encFileData []byte) []byte {
	if len(encFileData) == 0 {
		return nil
	}
	suffix := ""
	if sdmmacParam != "" && paramMode != ParamModeBulk {
		suffix = "&" + sdmmacParam + "="
	}
	hexStr := strings.ToUpper(hex.EncodeToString(encFileData))
	return append([]byte(hexStr), []byte(suffix)...)
}

// calculateSDMMAC computes the 8-byte truncated SDMMAC binding picc_data
// (and, when present, the encrypted file payload) to fileKey, in either
// AES or LRP mode (spec.md §4.4).
func calculateSDMMAC(paramMode ParamMode, sdmmacParam string, fileKey, piccData, encFileData []byte, mode EncMode) ([]byte, error) {
	macInput := sessionMACInput(paramMode, sdmmacParam, encFileData)

	var full []byte
	var err error
	switch mode {
	case EncModeAES:
		sv2 := append(append([]byte{}, sv2PrefixAES...), piccData...)
		sv2 = zeroPadToBlock(sv2)
		sessKey, err2 := aesCMAC(fileKey, sv2)
		if err2 != nil {
			return nil, err2
		}
		full, err = aesCMAC(sessKey, macInput)
	case EncModeLRP:
		sv := buildLRPSessionVector(piccData)
		masterSessLRP, err2 := newLRPEngine(fileKey, 0, nil, true)
		if err2 != nil {
			return nil, err2
		}
		masterSessKey, err2 := masterSessLRP.cmac(sv)
		if err2 != nil {
			return nil, err2
		}
		macLRP, err2 := newLRPEngine(masterSessKey, 0, nil, true)
		if err2 != nil {
			return nil, err2
		}
		full, err = macLRP.cmac(macInput)
	default:
		return nil, newInvalidMessage(errUnsupportedEncMode)
	}
	if err != nil {
		return nil, err
	}
	return truncateOddBytes(full), nil
}

// buildLRPSessionVector builds the SV for the LRP session-key
// construction: the 4-byte prefix, PICCData, zero padding such that
// (length+2) is AES-block aligned, and the fixed "1E E1" trailer.
func buildLRPSessionVector(piccData []byte) []byte {
	sv := append(append([]byte{}, sv2PrefixLRP...), piccData...)
	for (len(sv)+2)%blockSize != 0 {
		sv = append(sv, 0x00)
	}
	sv = append(sv, lrpSVTrailer...)
	return sv
}

// decryptFileData decrypts SDMEncFileData using fileKey, picc_data
// (UID||counter as actually parsed), readCtr (3 bytes) and the
// encryption mode (spec.md §4.4).
func decryptFileData(fileKey, piccData, readCtr, encFileData []byte, mode EncMode) ([]byte, error) {
	switch mode {
	case EncModeAES:
		sv1 := append(append([]byte{}, sv1PrefixAES...), piccData...)
		sv1 = zeroPadToBlock(sv1)
		kSesEnc, err := aesCMAC(fileKey, sv1)
		if err != nil {
			return nil, err
		}
		ivIn := append(append([]byte{}, readCtr...), make([]byte, 13)...)
		iv, err := aesECBEncrypt(kSesEnc, ivIn)
		if err != nil {
			return nil, err
		}
		return aesCBCDecrypt(kSesEnc, iv, encFileData)
	case EncModeLRP:
		sv := buildLRPSessionVector(piccData)
		masterSessLRP, err := newLRPEngine(fileKey, 0, nil, true)
		if err != nil {
			return nil, err
		}
		masterKey, err := masterSessLRP.cmac(sv)
		if err != nil {
			return nil, err
		}
		r := append(append([]byte{}, readCtr...), make([]byte, 3)...)
		fileSessLRP, err := newLRPEngine(masterKey, 1, r, false)
		if err != nil {
			return nil, err
		}
		return fileSessLRP.decrypt(encFileData)
	default:
		return nil, fmt.Errorf("sdm: invalid encryption mode")
	}
}
