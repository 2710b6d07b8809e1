package appendlog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/datatrails/vaultledger/vaulterr"
)

// Frame-at-a-time format: [uint32 big-endian length][cbor bytes][uint32
// crc32 of the cbor bytes]. Matches the "length prefix and per-record
// CRC" framing spec §6 specifies for the persisted log.
const frameOverhead = 4 + 4

var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("appendlog: building cbor encode mode: %v", err))
	}
}

func writeFrame(w io.Writer, e wireEntry) (int, error) {
	payload, err := cborMode.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("%w: cbor marshal: %v", vaulterr.ErrStorageError, err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	n1, err := w.Write(lenBuf[:])
	if err != nil {
		return n1, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	n2, err := w.Write(payload)
	if err != nil {
		return n1 + n2, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc32.ChecksumIEEE(payload))
	n3, err := w.Write(crcBuf[:])
	if err != nil {
		return n1 + n2 + n3, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	return n1 + n2 + n3, nil
}

// readFrame reads a single frame from r. It returns (entry, frameLen, nil)
// on success. io.EOF signals a clean end of stream (no partial frame
// present).
//
// On failure, frameLen distinguishes two cases the caller must handle
// differently: frameLen == 0 means the length prefix, payload or CRC
// was short (the write was torn mid-frame — the frame's true extent is
// unknowable, so the caller can only truncate back to the last good
// offset). frameLen > 0 means the full frame was read but its CRC or CBOR
// decode failed (the record bytes themselves were corrupted in place) —
// the caller knows exactly how many bytes to skip and can keep scanning,
// recording this one frame as ErrCorruptEntry.
func readFrame(r *bufio.Reader) (wireEntry, int, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return wireEntry{}, 0, io.EOF
		}
		return wireEntry{}, 0, io.ErrUnexpectedEOF
	}
	length := binary.BigEndian.Uint32(lenBuf[:])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return wireEntry{}, 0, io.ErrUnexpectedEOF
	}
	frameLen := frameOverhead + int(length)

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return wireEntry{}, 0, io.ErrUnexpectedEOF
	}
	want := binary.BigEndian.Uint32(crcBuf[:])
	got := crc32.ChecksumIEEE(payload)
	if want != got {
		return wireEntry{}, frameLen, vaulterr.ErrCorruptEntry
	}

	var e wireEntry
	if err := cbor.Unmarshal(payload, &e); err != nil {
		return wireEntry{}, frameLen, fmt.Errorf("%w: cbor unmarshal: %v", vaulterr.ErrCorruptEntry, err)
	}
	return e, frameLen, nil
}
