// Package reader talks to a physical NTAG 424 DNA tag over PC/SC to read
// back the SUN URL it mirrors into its NDEF record on tap — the live
// counterpart to feeding a previously-captured URL into pkg/sdm.
//
// Everything here is read-only: selecting the NDEF application, reading
// the capability container, and reading the NDEF file. Writing,
// provisioning, and authenticated command sessions are out of scope for
// a verifier and are not implemented.
package reader

import (
	"encoding/hex"
	"fmt"

	"github.com/ebfe/scard"
)

const (
	ndefAppAID = "D2760000850101"
	ccFileID   = 0xE103
)

// Status words this package needs to recognize. NTAG 424 DNA speaks
// plain ISO 7816 status words for the unauthenticated commands used
// here.
const (
	swSuccess   = 0x9000
	swWrongLe   = 0x6C00 // mask: correct Le is returned in SW2
)

// SWError is a non-success status word returned by the tag for a given
// command byte.
type SWError struct {
	Cmd byte
	SW  uint16
}

func (e *SWError) Error() string {
	return fmt.Sprintf("card command 0x%02X failed with SW=0x%04X", e.Cmd, e.SW)
}

func swOK(sw uint16) bool { return sw == swSuccess }

// Card abstracts the transmit behavior of a connected card, so the
// protocol logic below can be exercised with a fake in tests as well as
// a real PC/SC connection.
type Card interface {
	Transmit(apdu []byte) ([]byte, error)
}

// transmit sends an APDU and splits off the trailing 2-byte status
// word from the response body.
func transmit(card Card, apdu []byte) ([]byte, uint16, error) {
	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, 0, err
	}
	if len(resp) < 2 {
		return nil, 0, fmt.Errorf("reader: short response: %d bytes", len(resp))
	}
	sw := uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
	return resp[:len(resp)-2], sw, nil
}

// Connection wraps a PC/SC card connection to a single reader slot.
type Connection struct {
	ctx    *scard.Context
	card   *scard.Card
	Reader string
}

// Connect opens the given PC/SC reader by index (as returned by
// ListReaderNames) and connects to whatever card is present.
func Connect(readerIndex int) (*Connection, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("reader: establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("reader: no PC/SC readers found: %v", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader: index out of range (0..%d)", len(readers)-1)
	}

	name := readers[readerIndex]
	card, err := ctx.Connect(name, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("reader: connect to %q: %w", name, err)
	}

	return &Connection{ctx: ctx, card: card, Reader: name}, nil
}

// Close disconnects the card and releases the PC/SC context.
func (c *Connection) Close() {
	if c == nil {
		return
	}
	if c.card != nil {
		_ = c.card.Disconnect(scard.LeaveCard)
	}
	if c.ctx != nil {
		_ = c.ctx.Release()
	}
}

// Transmit implements Card.
func (c *Connection) Transmit(apdu []byte) ([]byte, error) {
	if c == nil || c.card == nil {
		return nil, fmt.Errorf("reader: connection not established")
	}
	return c.card.Transmit(apdu)
}

// ListReaderNames is a convenience for CLI flag help text and
// interactive reader selection.
func ListReaderNames() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("reader: establish context: %w", err)
	}
	defer ctx.Release()
	return ctx.ListReaders()
}

func selectNDEFApp(card Card) error {
	aid, err := hex.DecodeString(ndefAppAID)
	if err != nil {
		return err
	}
	apdu := append([]byte{0x00, 0xA4, 0x04, 0x00, byte(len(aid))}, aid...)
	apdu = append(apdu, 0x00)
	_, sw, err := transmit(card, apdu)
	if err != nil {
		return err
	}
	if !swOK(sw) {
		return &SWError{Cmd: 0xA4, SW: sw}
	}
	return nil
}

func selectFile(card Card, fileID uint16) error {
	apdu := []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, byte(fileID >> 8), byte(fileID)}
	_, sw, err := transmit(card, apdu)
	if err != nil {
		return err
	}
	if !swOK(sw) {
		return &SWError{Cmd: 0xA4, SW: sw}
	}
	return nil
}

// readBinary issues ISO 7816 READ BINARY at offset, retrying once with
// the tag-supplied correct Le if it first replies with wrong-Le (6C xx).
func readBinary(card Card, offset uint16, le byte) ([]byte, error) {
	apdu := []byte{0x00, 0xB0, byte(offset >> 8), byte(offset), le}
	data, sw, err := transmit(card, apdu)
	if err != nil {
		return nil, err
	}
	if (sw & 0xFF00) == swWrongLe {
		apdu[4] = byte(sw & 0x00FF)
		data, sw, err = transmit(card, apdu)
		if err != nil {
			return nil, err
		}
	}
	if !swOK(sw) {
		return nil, &SWError{Cmd: 0xB0, SW: sw}
	}
	return data, nil
}

// ReadCCFile selects the NDEF application and reads the Capability
// Container file (0xE103), which is where the actual NDEF file ID is
// published.
func ReadCCFile(card Card) ([]byte, error) {
	if err := selectNDEFApp(card); err != nil {
		return nil, err
	}
	if err := selectFile(card, ccFileID); err != nil {
		return nil, err
	}
	return readBinary(card, 0x0000, 0x20)
}

// ReadNDEF reads the full NDEF message body (NLEN header stripped)
// from the tag's NDEF file, following the file ID the CC file
// publishes rather than assuming 0xE104.
func ReadNDEF(card Card) ([]byte, error) {
	if err := selectNDEFApp(card); err != nil {
		return nil, err
	}
	if err := selectFile(card, ccFileID); err != nil {
		return nil, err
	}

	cc, err := readBinary(card, 0x0000, 0x0F)
	if err != nil {
		return nil, err
	}
	if len(cc) < 15 {
		return nil, fmt.Errorf("reader: CC file too short: %d bytes", len(cc))
	}

	ndefFileID := uint16(0xE104)
	if cc[7] == 0x04 && cc[8] >= 6 {
		ndefFileID = uint16(cc[9])<<8 | uint16(cc[10])
	}

	if err := selectFile(card, ndefFileID); err != nil {
		return nil, err
	}

	nlenBytes, err := readBinary(card, 0x0000, 0x02)
	if err != nil {
		return nil, err
	}
	if len(nlenBytes) < 2 {
		return nil, fmt.Errorf("reader: NLEN read too short")
	}
	nlen := int(nlenBytes[0])<<8 | int(nlenBytes[1])
	if nlen == 0 {
		return []byte{}, nil
	}

	ndef := make([]byte, 0, nlen)
	offset := 2
	remaining := nlen
	for remaining > 0 {
		chunk := remaining
		if chunk > 0xFF {
			chunk = 0xFF
		}
		part, err := readBinary(card, uint16(offset), byte(chunk))
		if err != nil {
			return nil, err
		}
		if len(part) == 0 {
			break
		}
		ndef = append(ndef, part...)
		offset += len(part)
		remaining -= len(part)
	}
	return ndef, nil
}

// GetUID retrieves the card's UID via the ISO 7816 contactless GET
// DATA command, independent of whatever UID SDM happens to mirror into
// the NDEF URL — useful for confirming a verified SDM result's UID
// actually matches the physical tag in hand.
func GetUID(card Card) ([]byte, error) {
	for _, le := range []byte{0x00, 0x04} {
		apdu := []byte{0xFF, 0xCA, 0x00, 0x00, le}
		data, sw, err := transmit(card, apdu)
		if err == nil && swOK(sw) && len(data) > 0 {
			return data, nil
		}
	}
	return nil, fmt.Errorf("reader: UID not available via GET DATA")
}

// ExtractURIRecord parses the well-known URI record out of a raw NDEF
// message body and expands its 1-byte URI identifier prefix (NFC Forum
// URI Record Type Definition, table 3) back into the literal scheme
// string. Only the first record is read, in short-record form, and only
// identifier codes 0x00-0x04 (none, "http://www.", "https://www.",
// "http://", "https://") are recognized; any other code is an error.
func ExtractURIRecord(ndef []byte) (string, error) {
	if len(ndef) < 5 {
		return "", fmt.Errorf("reader: NDEF message too short for a URI record")
	}

	// TNF/flags byte, type length, payload length (short record form),
	// type byte ('U'), then 1-byte URI identifier code + URI bytes.
	typeLen := int(ndef[1])
	payloadLen := int(ndef[2])
	if typeLen != 1 || ndef[3] != 'U' {
		return "", fmt.Errorf("reader: not a URI record")
	}
	payloadStart := 4
	if payloadStart+payloadLen > len(ndef) {
		return "", fmt.Errorf("reader: truncated NDEF payload")
	}
	payload := ndef[payloadStart : payloadStart+payloadLen]
	if len(payload) < 1 {
		return "", fmt.Errorf("reader: empty URI payload")
	}

	prefix, ok := uriPrefixes[payload[0]]
	if !ok {
		return "", fmt.Errorf("reader: unknown URI identifier code 0x%02X", payload[0])
	}
	return prefix + string(payload[1:]), nil
}

var uriPrefixes = map[byte]string{
	0x00: "",
	0x01: "http://www.",
	0x02: "https://www.",
	0x03: "http://",
	0x04: "https://",
}
