package sdm

// Key slot numbers the reference deployment uses: key #1 for the
// undiversified metadata-decryption key, key #2 for the UID-diversified
// file/MAC key (app.py's derive_undiversified_key(MK, 1) /
// derive_tag_key(MK, uid, 2)). DeriveUndiversifiedKey rejects any slot
// other than 1 outright; slot 2 for the diversified key is a
// deployment convention, not a protocol constant, but it's the one the
// reference implementation actually ships.
const (
	metaKeyNo = 1
	fileKeyNo = 2
)

// Result is the outcome of successfully decoding and verifying a SUN
// message: the tag identity, the monotonic read counter, and the
// decrypted file payload when one was present.
type Result struct {
	UID         []byte
	ReadCounter uint32
	EncMode     EncMode
	FileData    []byte // nil if no SDMEncFileData was present
}

// FileKeyFunc resolves a tag's UID to its K_SDMFileReadKey. It is a
// closure rather than a precomputed key so that a caller backed by, say,
// a per-tag key store can look one up per request (spec.md §9: "the
// file-key function is UID-dependent... not a precomputed octet
// string"). NewMasterKeyFileFunc builds the common case of deriving it
// from a single master key.
type FileKeyFunc func(uid []byte) ([]byte, error)

// NewMasterKeyFileFunc returns a FileKeyFunc that diversifies TagKey
// from masterKey under mode for whatever UID it's asked about — the
// single-master-key deployment shape DecryptSUNMessage's Config-based
// callers (VerifyBulkURL, VerifySeparatedURL, and through them
// cmd/sunverify) use.
func NewMasterKeyFileFunc(mode DeriveMode, masterKey []byte) FileKeyFunc {
	return func(uid []byte) ([]byte, error) {
		return DeriveTagKey(mode, masterKey, uid, fileKeyNo)
	}
}

// DecryptSUNMessage verifies and, where applicable, decrypts a full SUN
// message (PICCData + optional encrypted file payload + MAC) under
// cfg.DeriveMode, deriving both the meta key and the per-UID file key
// from cfg.MasterKey, and enforces cfg.RequireLRP at the very end so a
// genuinely-verified AES message is still rejected as a policy
// violation rather than silently accepted (spec.md §5, §9). This is the
// convenience path for the single-master-key deployment shape; callers
// with their own key store should use DecryptSUNMessageWithKeys.
func DecryptSUNMessage(cfg Config, params DecodedParams) (*Result, error) {
	metaKey, err := DeriveUndiversifiedKey(cfg.DeriveMode, cfg.MasterKey, metaKeyNo)
	if err != nil {
		return nil, err
	}
	return DecryptSUNMessageWithKeys(cfg, metaKey, NewMasterKeyFileFunc(cfg.DeriveMode, cfg.MasterKey), params)
}

// DecryptSUNMessageWithKeys is C5/C7's decoder/façade proper (spec.md
// §4.5, §4.7): given an already-derived meta key and a per-UID file-key
// callback, it is agnostic to how either was produced — master-key
// diversification (C3) is just one caller of it. cfg is still consulted
// for SDMMACParam and RequireLRP, the façade-level policy that isn't
// tied to key derivation.
func DecryptSUNMessageWithKeys(cfg Config, metaKey []byte, fileKeyFn FileKeyFunc, params DecodedParams) (*Result, error) {
	mode, err := encModeForCiphertext(params.PICCEncData)
	if err != nil {
		return nil, err
	}

	res, err := tryDecode(cfg, metaKey, fileKeyFn, mode, params)
	if err != nil {
		return nil, err
	}
	if cfg.RequireLRP && res.EncMode != EncModeLRP {
		return nil, newInvalidMessage(errInvalidEncModeLRP)
	}
	return res, nil
}

// tryDecode attempts one full verify/decrypt pass. When the UID length
// is unsupported (or the UID is absent) it still computes a dummy MAC
// before rejecting, so that rejection costs about as much cryptographic
// work as a bad-MAC rejection (spec.md §5's timing-oracle note). File
// data is decrypted only after the MAC has been verified.
func tryDecode(cfg Config, metaKey []byte, fileKeyFn FileKeyFunc, mode EncMode, params DecodedParams) (*Result, error) {
	picc, _, err := decryptPICCData(metaKey, params.PICCEncData, mode)
	if err != nil {
		return nil, err
	}

	if !picc.UIDLenOK || len(picc.UID) != uidLen {
		// Equal-work dummy path: derive against a fixed, well-formed
		// zero UID and compute a MAC over a 10-byte zero buffer (the
		// same shape as a real UID||ReadCtr), so the rejection takes
		// the same time as a normal bad-MAC rejection.
		dummyKey, derr := fileKeyFn(make([]byte, uidLen))
		if derr == nil {
			_, _ = calculateSDMMAC(params.ParamMode, cfg.SDMMACParam, dummyKey, make([]byte, uidLen+readCtrLen), params.EncFileData, mode)
		}
		return nil, newInvalidMessage(errUnsupportedUIDLen)
	}

	fileKey, err := fileKeyFn(picc.UID)
	if err != nil {
		return nil, err
	}

	// The MAC and file-decryption inputs are built from the parsed
	// UID||ReadCtr, not the raw decrypted PICCData block (which still
	// carries the flag byte and any ignored tail bytes).
	macPICC := picc.reconstructed()

	expectedMAC, err := calculateSDMMAC(params.ParamMode, cfg.SDMMACParam, fileKey, macPICC, params.EncFileData, mode)
	if err != nil {
		return nil, err
	}
	if !constantTimeEqual(expectedMAC, params.SDMMAC) {
		return nil, newInvalidMessage(errBadMAC)
	}

	res := &Result{UID: picc.UID, ReadCounter: picc.ReadCtrInt, EncMode: mode}

	if len(params.EncFileData) > 0 {
		if picc.ReadCtr == nil {
			return nil, newInvalidMessage(errMissingCtrForFile)
		}
		file, err := decryptFileData(fileKey, macPICC, picc.ReadCtr, params.EncFileData, mode)
		if err != nil {
			return nil, err
		}
		res.FileData = file
	}

	return res, nil
}

// PlainResult is the outcome of validating a plain (non-encrypted)
// SUN URL: the UID and read counter are carried in cleartext and only
// the MAC is checked.
type PlainResult struct {
	UID         []byte
	ReadCounter uint32
}

// ValidatePlainSUN verifies a "plain SUN" URL: UID and read counter
// arrive as cleartext hex, and only SDMMAC is checked against them.
// The read counter is parsed big-endian as an integer but, per the
// wire format this mirrors, fed to the MAC big-endian-reversed-to-
// little-endian — the same asymmetry the full (encrypted) path avoids
// by carrying the counter as raw bytes throughout (spec.md §4.5).
func ValidatePlainSUN(cfg Config, uid []byte, readCtrBE []byte, sdmmacParam string, mac []byte, mode EncMode) (*PlainResult, error) {
	fileKey, err := DeriveTagKey(cfg.DeriveMode, cfg.MasterKey, uid, fileKeyNo)
	if err != nil {
		return nil, err
	}
	return ValidatePlainSUNWithKey(fileKey, uid, readCtrBE, sdmmacParam, mac, mode)
}

// ValidatePlainSUNWithKey is C7's validate_plain_sun proper (spec.md
// §4.5, §4.7): it takes the already-derived TagKey directly, exactly as
// the spec's signature names it, leaving diversification up to the
// caller (ValidatePlainSUN's master-key convenience wrapper, or a
// caller's own key store).
func ValidatePlainSUNWithKey(tagKey []byte, uid []byte, readCtrBE []byte, sdmmacParam string, mac []byte, mode EncMode) (*PlainResult, error) {
	if len(uid) != uidLen {
		return nil, newInvalidMessage(errUnsupportedUIDLen)
	}
	if len(readCtrBE) != readCtrLen {
		return nil, newInvalidMessage(errIncorrectDynParamLen)
	}

	ctrInt := uint32(readCtrBE[0])<<16 | uint32(readCtrBE[1])<<8 | uint32(readCtrBE[2])

	// The MAC input is UID||reverse(counter) — no flag byte, unlike the
	// full-SUN path's reconstructed PICCData (spec.md §4.5).
	readCtrRev := []byte{readCtrBE[2], readCtrBE[1], readCtrBE[0]}
	piccPlain := append(append([]byte{}, uid...), readCtrRev...)

	expected, err := calculateSDMMAC(ParamModeSeparated, sdmmacParam, tagKey, piccPlain, nil, mode)
	if err != nil {
		return nil, err
	}
	if !constantTimeEqual(expected, mac) {
		return nil, newInvalidMessage(errBadMAC)
	}
	return &PlainResult{UID: uid, ReadCounter: ctrInt}, nil
}
