package sdm

import (
	"encoding/hex"
	"fmt"
	"net/url"
)

// GenerateParams is the input to GenerateSUNMessage: everything a tag
// itself would know at tap time.
type GenerateParams struct {
	UID      []byte // 7 bytes
	ReadCtr  uint32 // 0..0xFFFFFF
	FileData []byte // nil if this tap carries no SDMEncFileData
	EncMode  EncMode
}

// GenerateSUNMessage simulates what the tag's SDM engine does on tap:
// build PICCData, encrypt it (and the file payload, if any) under the
// keys cfg.MasterKey derives for this UID, and compute the SDMMAC. It
// is the algebraic inverse of DecryptSUNMessage and exists primarily
// so tests and local tooling can synthesize fixtures without needing a
// physical tag (spec.md §4, supplemented from the reference
// implementation's URL-generation helper).
func GenerateSUNMessage(cfg Config, dm DeriveMode, p GenerateParams) (params DecodedParams, err error) {
	if len(p.UID) != uidLen {
		return DecodedParams{}, fmt.Errorf("sdm: UID must be %d bytes, got %d", uidLen, len(p.UID))
	}
	if p.ReadCtr > 0xFFFFFF {
		return DecodedParams{}, fmt.Errorf("sdm: read counter must fit in 3 bytes")
	}

	metaKey, err := DeriveUndiversifiedKey(dm, cfg.MasterKey, 1)
	if err != nil {
		return DecodedParams{}, err
	}
	fileKey, err := DeriveTagKey(dm, cfg.MasterKey, p.UID, fileKeyNo)
	if err != nil {
		return DecodedParams{}, err
	}

	readCtrLE := []byte{byte(p.ReadCtr), byte(p.ReadCtr >> 8), byte(p.ReadCtr >> 16)}

	flag := byte(flagUIDMirror | flagCtrMirror | uidLen)
	plainPICC := append([]byte{flag}, p.UID...)
	plainPICC = append(plainPICC, readCtrLE...)
	plainPICC = zeroPadToBlock(plainPICC)

	piccEnc, err := encryptPICCData(metaKey, plainPICC, p.EncMode)
	if err != nil {
		return DecodedParams{}, err
	}

	// The MAC and file-encryption steps bind only UID||ReadCtr (spec.md
	// §4.5 step 6), not the padded plaintext block encryptPICCData just
	// consumed above.
	macPICC := append(append([]byte{}, p.UID...), readCtrLE...)

	var fileEnc []byte
	if len(p.FileData) > 0 {
		fileEnc, err = encryptFileData(fileKey, macPICC, readCtrLE, p.FileData, p.EncMode)
		if err != nil {
			return DecodedParams{}, err
		}
	}

	mac, err := calculateSDMMAC(ParamModeSeparated, cfg.SDMMACParam, fileKey, macPICC, fileEnc, p.EncMode)
	if err != nil {
		return DecodedParams{}, err
	}

	return DecodedParams{
		ParamMode:   ParamModeSeparated,
		PICCEncData: piccEnc,
		EncFileData: fileEnc,
		SDMMAC:      mac,
	}, nil
}

// encryptPICCData is the encrypt-side counterpart of decryptPICCData.
// In LRP mode it uses an 8-byte random-looking (here: zero, since this
// is a simulation helper, not a tag) prefix as the LRP counter and
// prepends it to the ciphertext, matching the on-wire framing real tags
// produce.
func encryptPICCData(metaKey, plainPICC []byte, mode EncMode) ([]byte, error) {
	switch mode {
	case EncModeAES:
		return aesECBEncrypt(metaKey, plainPICC)
	case EncModeLRP:
		prefix := make([]byte, lrpPrefix)
		engine, err := newLRPEngine(metaKey, 0, prefix, false)
		if err != nil {
			return nil, err
		}
		ct, err := engine.encrypt(plainPICC)
		if err != nil {
			return nil, err
		}
		return append(prefix, ct...), nil
	default:
		return nil, newInvalidMessage(errUnsupportedEncMode)
	}
}

// encryptFileData is the encrypt-side counterpart of decryptFileData.
func encryptFileData(fileKey, piccData, readCtr, fileData []byte, mode EncMode) ([]byte, error) {
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
		padded := zeroPadToBlock(fileData)
		return aesCBCEncrypt(kSesEnc, iv, padded)
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
		return fileSessLRP.encrypt(zeroPadToBlock(fileData))
	default:
		return nil, newInvalidMessage(errUnsupportedEncMode)
	}
}

// BuildBulkURL assembles the single-"e"-parameter BULK URL real
// SDM-enabled tags produce, from a base URL and already-generated
// dynamic parameters.
func BuildBulkURL(baseURL string, params DecodedParams) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("sdm: invalid base URL: %w", err)
	}
	blob := append(append([]byte{}, params.PICCEncData...), params.EncFileData...)
	blob = append(blob, params.SDMMAC...)

	q := u.Query()
	q.Set("e", hex.EncodeToString(blob))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
