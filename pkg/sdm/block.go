package sdm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"fmt"
)

const blockSize = aes.BlockSize // 16

// aesECBEncrypt encrypts a single 16-byte block under key with AES-ECB.
// NTAG 424 DNA and the LRP construction both build everything else
// (CBC, CMAC, LRICB) out of this one primitive.
func aesECBEncrypt(key, in []byte) ([]byte, error) {
	if len(in) != blockSize {
		return nil, fmt.Errorf("sdm: ECB input must be %d bytes, got %d", blockSize, len(in))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, blockSize)
	block.Encrypt(out, in)
	return out, nil
}

// aesECBDecrypt is the inverse of aesECBEncrypt.
func aesECBDecrypt(key, in []byte) ([]byte, error) {
	if len(in) != blockSize {
		return nil, fmt.Errorf("sdm: ECB input must be %d bytes, got %d", blockSize, len(in))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, blockSize)
	block.Decrypt(out, in)
	return out, nil
}

func aesCBCEncrypt(key, iv, data []byte) ([]byte, error) {
	if len(data)%blockSize != 0 {
		return nil, fmt.Errorf("sdm: CBC encrypt: data not block aligned")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func aesCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	if len(data)%blockSize != 0 {
		return nil, fmt.Errorf("sdm: CBC decrypt: data not block aligned")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// aesCMAC computes the full 16-byte AES-CMAC (NIST SP 800-38B / RFC 4493)
// of msg under key. Truncation to the 8-byte "short tag" used on the
// wire is a separate step (truncateOddBytes), kept apart because AES
// session-key derivation (session.go) and DeriveTagKey (kdf.go) use the
// untruncated 16-byte form.
func aesCMAC(key, msg []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	k1, k2 := cmacSubkeys(block)

	n := (len(msg) + 15) / blockSize
	if n == 0 {
		n = 1
	}
	lastComplete := len(msg) != 0 && len(msg)%blockSize == 0

	last := make([]byte, blockSize)
	if lastComplete {
		copy(last, msg[(n-1)*blockSize:])
		xorBlock(last, last, k1)
	} else {
		remain := len(msg) - (n-1)*blockSize
		if remain > 0 {
			copy(last, msg[(n-1)*blockSize:])
		}
		last[remain] = 0x80
		xorBlock(last, last, k2)
	}

	x := make([]byte, blockSize)
	y := make([]byte, blockSize)
	for i := 0; i < n-1; i++ {
		start := i * blockSize
		xorBlock(y, x, msg[start:start+blockSize])
		block.Encrypt(x, y)
	}
	xorBlock(y, x, last)
	block.Encrypt(x, y)
	return x, nil
}

// cmacSubkeys derives K1, K2 from a zero-block encryption by doubling in
// GF(2^128) with the CMAC reducing polynomial x^128+x^7+x^2+x+1 (0x87).
func cmacSubkeys(block cipher.Block) (k1, k2 []byte) {
	const rb = 0x87
	zero := make([]byte, blockSize)
	l := make([]byte, blockSize)
	block.Encrypt(l, zero)

	k1 = make([]byte, blockSize)
	leftShift1(k1, l)
	if (l[0] & 0x80) != 0 {
		k1[blockSize-1] ^= rb
	}

	k2 = make([]byte, blockSize)
	leftShift1(k2, k1)
	if (k1[0] & 0x80) != 0 {
		k2[blockSize-1] ^= rb
	}
	return k1, k2
}

// gf128Double doubles a 16-byte block in GF(2^128) under the same
// reducing polynomial as cmacSubkeys. The LRP-CMAC construction (lrp.go)
// needs this applied once and twice to its own k0.
func gf128Double(in []byte) []byte {
	const rb = 0x87
	out := make([]byte, blockSize)
	leftShift1(out, in)
	if (in[0] & 0x80) != 0 {
		out[blockSize-1] ^= rb
	}
	return out
}

func leftShift1(dst, src []byte) {
	var carry byte
	for i := len(src) - 1; i >= 0; i-- {
		b := src[i]
		dst[i] = (b << 1) | carry
		carry = (b >> 7) & 1
	}
}

func xorBlock(dst, a, b []byte) {
	for i := 0; i < len(a) && i < len(b); i++ {
		dst[i] = a[i] ^ b[i]
	}
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	xorBlock(out, a, b)
	return out
}

// truncateOddBytes returns the odd-indexed bytes (1,3,5,...,15) of a
// full 16-byte CMAC, the 8-byte "SDMMAC"/short-tag format NTAG 424 DNA
// puts on the wire.
func truncateOddBytes(cmacFull []byte) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = cmacFull[1+i*2]
	}
	return out
}

// zeroPadToBlock appends zero bytes until buf's length is a multiple of
// the AES block size.
func zeroPadToBlock(buf []byte) []byte {
	rem := len(buf) % blockSize
	if rem == 0 {
		return buf
	}
	return append(buf, make([]byte, blockSize-rem)...)
}

// constantTimeEqual reports whether a and b are equal, in time
// independent of where they first differ, as required by spec.md §5 for
// the final MAC comparison.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
