package sdm

import "fmt"

// numUpdatedKeys is q in AN12304 Algorithm 2: the engine precomputes
// four updated keys (u = 0..3) though SUN only ever uses u=0 (MAC/meta
// decrypt) and u=1 (file decrypt).
const numUpdatedKeys = 4

// numPlaintexts is 2^m for m=4 (nibble-indexed table lookups).
const numPlaintexts = 16

// lrpEngine is the Leakage Resilient Primitive from AN12304, evaluated
// the way this package's one caller (the SUN pipeline) needs it: a
// counter-mode construction (LRICB) whose big-endian counter has
// whatever length r was given (16 bytes by default), plus a CMAC built
// on the same evaluation primitive.
//
// This implementation is reader-side (PCD) only. Nothing here attempts
// side-channel resistance beyond equal-length-equal-work; it must never
// be ported to run on the tag (PICC) side.
type lrpEngine struct {
	p   [numPlaintexts][]byte
	ku  [numUpdatedKeys][]byte
	kp  []byte
	r   []byte
	pad bool
}

// newLRPEngine builds an engine bound to updated-key index u (0-3), with
// counter/IV r (defaults to 16 zero bytes when nil) and the given bit
// padding behavior. Engines are cheap — a 16-entry plaintext table and a
// 4-entry updated-key table, both derived once from key — and are never
// shared across requests: the counter r mutates with every block
// encrypted or decrypted by this instance.
func newLRPEngine(key []byte, u int, r []byte, pad bool) (*lrpEngine, error) {
	if u < 0 || u >= numUpdatedKeys {
		return nil, fmt.Errorf("sdm: LRP updated-key index out of range: %d", u)
	}
	if r == nil {
		r = make([]byte, blockSize)
	}
	p, err := lrpGeneratePlaintexts(key)
	if err != nil {
		return nil, err
	}
	ku, err := lrpGenerateUpdatedKeys(key)
	if err != nil {
		return nil, err
	}
	rCopy := make([]byte, len(r))
	copy(rCopy, r)
	return &lrpEngine{p: p, ku: ku, kp: ku[u], r: rCopy, pad: pad}, nil
}

// lrpGeneratePlaintexts is Algorithm 1: h <- E(k, 0x55*16); sixteen times
// emit E(h, 0xAA*16) and advance h <- E(h, 0x55*16).
func lrpGeneratePlaintexts(k []byte) ([numPlaintexts][]byte, error) {
	var p [numPlaintexts][]byte
	h, err := aesECBEncrypt(k, bytesOf(0x55))
	if err != nil {
		return p, err
	}
	for i := 0; i < numPlaintexts; i++ {
		block, err := aesECBEncrypt(h, bytesOf(0xAA))
		if err != nil {
			return p, err
		}
		p[i] = block
		h, err = aesECBEncrypt(h, bytesOf(0x55))
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// lrpGenerateUpdatedKeys is Algorithm 2: h <- E(k, 0xAA*16); four times
// emit E(h, 0xAA*16) and advance h <- E(h, 0x55*16).
func lrpGenerateUpdatedKeys(k []byte) ([numUpdatedKeys][]byte, error) {
	var uk [numUpdatedKeys][]byte
	h, err := aesECBEncrypt(k, bytesOf(0xAA))
	if err != nil {
		return uk, err
	}
	for i := 0; i < numUpdatedKeys; i++ {
		block, err := aesECBEncrypt(h, bytesOf(0xAA))
		if err != nil {
			return uk, err
		}
		uk[i] = block
		h, err = aesECBEncrypt(h, bytesOf(0x55))
		if err != nil {
			return uk, err
		}
	}
	return uk, nil
}

func bytesOf(b byte) []byte {
	out := make([]byte, blockSize)
	for i := range out {
		out[i] = b
	}
	return out
}

// lrpNibbles yields the 4-bit values of x, high nibble first, used to
// index the plaintext table in evalLRP.
func lrpNibbles(x []byte) []byte {
	out := make([]byte, 0, len(x)*2)
	for _, b := range x {
		out = append(out, b>>4, b&0x0F)
	}
	return out
}

// evalLRP is Algorithm 3 (m=4): starting from kp, walk the nibbles of x
// through the plaintext table, optionally finishing with one more
// encryption under the all-zero block (the "final" step every SUN call
// site uses).
func evalLRP(p [numPlaintexts][]byte, kp, x []byte, final bool) ([]byte, error) {
	y := kp
	for _, xi := range lrpNibbles(x) {
		next, err := aesECBEncrypt(y, p[xi])
		if err != nil {
			return nil, err
		}
		y = next
	}
	if final {
		y2, err := aesECBEncrypt(y, make([]byte, blockSize))
		if err != nil {
			return nil, err
		}
		y = y2
	}
	return y, nil
}

// incrCounter increments a big-endian counter of arbitrary length,
// wrapping to all-zero (not to one) on overflow.
func incrCounter(r []byte) []byte {
	out := make([]byte, len(r))
	copy(out, r)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			return out
		}
	}
	// every byte wrapped past 0xFF -> 0x00: full overflow, reset to zero.
	return make([]byte, len(r))
}

// encrypt is LRICBEnc: counter-mode encryption where each block's
// keystream is eval_lrp(r) for the engine's current counter, which is
// then advanced after every block.
func (e *lrpEngine) encrypt(data []byte) ([]byte, error) {
	pt := make([]byte, len(data))
	copy(pt, data)

	if e.pad {
		pt = append(pt, 0x80)
		pt = zeroPadToBlock(pt)
	} else if len(pt)%blockSize != 0 {
		return nil, fmt.Errorf("sdm: LRP plaintext must be a multiple of %d bytes", blockSize)
	} else if len(pt) == 0 {
		return nil, fmt.Errorf("sdm: LRP zero-length plaintext not supported")
	}

	out := make([]byte, 0, len(pt))
	for off := 0; off < len(pt); off += blockSize {
		block := pt[off : off+blockSize]
		y, err := evalLRP(e.p, e.kp, e.r, true)
		if err != nil {
			return nil, err
		}
		ct, err := aesECBEncrypt(y, block)
		if err != nil {
			return nil, err
		}
		out = append(out, ct...)
		e.r = incrCounter(e.r)
	}
	return out, nil
}

// decrypt is LRICBDecr, the inverse of encrypt; if pad is set the
// trailing 0x80 00* bit-padding trailer is stripped.
func (e *lrpEngine) decrypt(data []byte) ([]byte, error) {
	if len(data)%blockSize != 0 {
		return nil, fmt.Errorf("sdm: LRP ciphertext must be a multiple of %d bytes", blockSize)
	}

	out := make([]byte, 0, len(data))
	for off := 0; off < len(data); off += blockSize {
		block := data[off : off+blockSize]
		y, err := evalLRP(e.p, e.kp, e.r, true)
		if err != nil {
			return nil, err
		}
		pt, err := aesECBDecrypt(y, block)
		if err != nil {
			return nil, err
		}
		out = append(out, pt...)
		e.r = incrCounter(e.r)
	}

	if e.pad {
		return lrpRemovePadding(out)
	}
	return out, nil
}

// lrpRemovePadding strips a 0x80 00* trailer, scanning from the tail:
// skip zero bytes, then require a 0x80; anything else is bad padding.
func lrpRemovePadding(pt []byte) ([]byte, error) {
	idx := len(pt) - 1
	for idx >= 0 && pt[idx] == 0x00 {
		idx--
	}
	if idx < 0 || pt[idx] != 0x80 {
		return nil, newInvalidMessage(errBadPadding)
	}
	return pt[:idx], nil
}

// cmac is CMAC_LRP: a CMAC built on evalLRP instead of plain AES
// encryption, with LRP-specific subkeys k1=2*k0, k2=4*k0 in GF(2^128).
func (e *lrpEngine) cmac(data []byte) ([]byte, error) {
	k0, err := evalLRP(e.p, e.kp, make([]byte, blockSize), true)
	if err != nil {
		return nil, err
	}
	k1 := gf128Double(k0)
	k2 := gf128Double(k1)

	y := make([]byte, blockSize)
	off := 0
	for off+blockSize < len(data) {
		block := data[off : off+blockSize]
		y = xorBytes(block, y)
		y, err = evalLRP(e.p, e.kp, y, true)
		if err != nil {
			return nil, err
		}
		off += blockSize
	}

	last := data[off:]
	var final []byte
	if len(last) == blockSize {
		final = xorBytes(last, k1)
	} else {
		padded := make([]byte, blockSize)
		copy(padded, last)
		padded[len(last)] = 0x80
		final = xorBytes(padded, k2)
	}
	y = xorBytes(final, y)
	return evalLRP(e.p, e.kp, y, true)
}
