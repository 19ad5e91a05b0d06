package sdm

import "encoding/hex"

// ParamMode is the tagged variant of the two URL encodings a tapped tag
// can produce (spec.md §3).
type ParamMode int

const (
	// ParamModeSeparated passes picc_data, enc, and cmac as distinct
	// hex query arguments.
	ParamModeSeparated ParamMode = iota
	// ParamModeBulk packs PICCData, an optional file payload, and the
	// MAC into one hex blob under a single "e" argument.
	ParamModeBulk
)

// DecodedParams is the result of decoding either URL-argument shape: a
// PICCData ciphertext, an optional file ciphertext, an 8-byte MAC, and
// which shape produced them.
type DecodedParams struct {
	ParamMode   ParamMode
	PICCEncData []byte
	EncFileData []byte // nil if absent
	SDMMAC      []byte
}

// ParseBulkParam decodes the single "e" hex blob format: PICCData, an
// optional file payload, and an 8-byte MAC concatenated together. The
// length of the blob (minus the trailing 8 MAC bytes) modulo 16
// discriminates AES (16-byte PICCData) from LRP (24-byte PICCData);
// any other remainder is rejected (spec.md §4.6).
func ParseBulkParam(eHex string) (DecodedParams, error) {
	e, err := hex.DecodeString(eHex)
	if err != nil {
		return DecodedParams{}, wrapBadRequest(errFailedDecodeParams, err)
	}

	n := len(e)
	if n < 8 {
		return DecodedParams{}, newBadRequest(errIncorrectDynParamLen)
	}

	var piccLen int
	switch (n - 8) % 16 {
	case 0:
		piccLen = 16
	case 8:
		piccLen = 24
	default:
		return DecodedParams{}, newBadRequest(errIncorrectDynParamLen)
	}

	fileLen := n - piccLen - 8
	if fileLen < 0 {
		return DecodedParams{}, newBadRequest(errIncorrectDynParamLen)
	}

	picc := e[0:piccLen]
	var file []byte
	if fileLen > 0 {
		file = e[piccLen : piccLen+fileLen]
	}
	mac := e[piccLen+fileLen:]

	return DecodedParams{
		ParamMode:   ParamModeBulk,
		PICCEncData: picc,
		EncFileData: file,
		SDMMAC:      mac,
	}, nil
}

// ParseSeparatedParams decodes the SEPARATED shape: three independently
// hex-encoded arguments. enc is optional; picc and mac are required.
func ParseSeparatedParams(piccHex, encHex, macHex string) (DecodedParams, error) {
	if piccHex == "" {
		return DecodedParams{}, newBadRequest(errFailedDecodeParams)
	}
	if macHex == "" {
		return DecodedParams{}, newBadRequest(errFailedDecodeParams)
	}

	picc, err := hex.DecodeString(piccHex)
	if err != nil {
		return DecodedParams{}, wrapBadRequest(errFailedDecodeParams, err)
	}
	mac, err := hex.DecodeString(macHex)
	if err != nil {
		return DecodedParams{}, wrapBadRequest(errFailedDecodeParams, err)
	}

	var file []byte
	if encHex != "" {
		file, err = hex.DecodeString(encHex)
		if err != nil {
			return DecodedParams{}, wrapBadRequest(errFailedDecodeParams, err)
		}
	}

	return DecodedParams{
		ParamMode:   ParamModeSeparated,
		PICCEncData: picc,
		EncFileData: file,
		SDMMAC:      mac,
	}, nil
}
