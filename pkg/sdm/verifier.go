package sdm

import "net/url"

// VerifyBulkURL decodes and verifies a SUN URL whose dynamic data
// arrived as a single "e" query parameter (BULK mode). It is a thin
// convenience wrapper over ParseBulkParam + DecryptSUNMessage for
// callers holding a raw URL rather than pre-split hex strings.
func VerifyBulkURL(cfg Config, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, wrapBadRequest(errFailedDecodeParams, err)
	}
	eHex := u.Query().Get("e")
	if eHex == "" {
		return nil, newBadRequest(errFailedDecodeParams)
	}

	params, err := ParseBulkParam(eHex)
	if err != nil {
		return nil, err
	}
	return DecryptSUNMessage(cfg, params)
}

// VerifySeparatedURL is the SEPARATED-mode counterpart of
// VerifyBulkURL: it reads picc_data, enc (optional), and cmac (or
// whatever cfg.SDMMACParam names) from the query string.
func VerifySeparatedURL(cfg Config, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, wrapBadRequest(errFailedDecodeParams, err)
	}
	q := u.Query()

	macParam := cfg.SDMMACParam
	if macParam == "" {
		macParam = "cmac"
	}

	params, err := ParseSeparatedParams(q.Get("picc_data"), q.Get("enc"), q.Get(macParam))
	if err != nil {
		return nil, err
	}
	return DecryptSUNMessage(cfg, params)
}
