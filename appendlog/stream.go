package appendlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/merklechain"
	"github.com/datatrails/vaultledger/vaulterr"
)

// Stream is a single named, ordered, append-only sink (spec §3's Stream).
// Appends are serialized by appendMu; readers (Tip/Scan/GetRecord) take
// only stateMu, a brief RWMutex, and never block behind an in-flight
// fsync (spec §5 "Readers never block writers").
type Stream struct {
	id       string
	path     string
	durable  bool
	log      *zap.Logger

	appendMu sync.Mutex // serializes Append (and the open-time repair)
	file     *os.File   // append-only handle, always positioned at EOF

	stateMu sync.RWMutex
	tip     *ChainEntry
	offsets []indexEntry // offsets[seq] locates that entry's frame
	broken  bool
	brokenReason error
}

// indexEntry locates one physical frame. corrupt marks a frame whose CRC
// or CBOR decode failed but whose length prefix was intact (spec §8 S6:
// a byte-level tamper inside a stored record is reported per-entry by
// ReplayVerifier rather than making the whole stream unreadable).
type indexEntry struct {
	offset  int64
	corrupt bool
}

// openStream opens (creating if absent) the file backing id at path,
// repairing any torn trailing write per spec §4.5's crash semantics, and
// rebuilding the in-memory tip/offset index.
func openStream(id, path string, durable bool, log *zap.Logger) (*Stream, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", vaulterr.ErrStorageError, path, err)
	}

	s := &Stream{id: id, path: path, durable: durable, log: log, file: f}
	if err := s.repairAndIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// repairAndIndex scans the file from the start, verifying hash chaining
// as it goes. A short read at the very end of the file (frameLen == 0,
// meaning the length prefix, payload or CRC was incomplete) is treated as
// a torn write from an interrupted append and the file is truncated back
// to the last good frame boundary (spec §4.5: "truncates any partially
// written trailing entry so that tip() is always a fully committed
// entry"). A CRC or decode failure on an otherwise complete frame
// (frameLen > 0) is in-place corruption: spec §8 S6 requires this to
// remain discoverable by ReplayVerifier rather than making the stream
// unopenable, so repairAndIndex records it as a corrupt index entry,
// marks the stream BROKEN (spec §7), and keeps scanning.
func (s *Stream) repairAndIndex() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	r := bufio.NewReader(s.file)

	var offset int64
	var prev *ChainEntry
	var offsets []indexEntry
	var corrupted bool

	for {
		w, frameLen, err := readFrame(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			if frameLen == 0 {
				// Only the tail may be torn with unknown extent; anything
				// we've already indexed is a committed, good prefix.
				if truncErr := s.file.Truncate(offset); truncErr != nil {
					return fmt.Errorf("%w: truncating torn tail: %v", vaulterr.ErrStorageError, truncErr)
				}
				s.log.Warn("truncated torn trailing frame", zap.String("stream", s.id), zap.Int64("offset", offset))
				break
			}
			if !(errors.Is(err, vaulterr.ErrCorruptEntry)) {
				return fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
			}
			s.log.Warn("corrupt frame in place, continuing scan", zap.String("stream", s.id), zap.Int64("offset", offset))
			offsets = append(offsets, indexEntry{offset: offset, corrupt: true})
			offset += int64(frameLen)
			corrupted = true
			continue
		}

		entry, err := chainEntryFromWire(w)
		if err != nil {
			offsets = append(offsets, indexEntry{offset: offset, corrupt: true})
			offset += int64(frameLen)
			corrupted = true
			continue
		}
		if prev != nil {
			if verr := merklechain.VerifyPair(*prev, entry); verr != nil {
				corrupted = true
				s.stateMu.Lock()
				s.brokenReason = fmt.Errorf("%w: %v", vaulterr.ErrBrokenChain, verr)
				s.stateMu.Unlock()
			}
		}

		offsets = append(offsets, indexEntry{offset: offset})
		offset += int64(frameLen)
		e := entry
		prev = &e
	}

	if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}

	s.stateMu.Lock()
	s.offsets = offsets
	s.tip = prev
	if corrupted {
		s.broken = true
		if s.brokenReason == nil {
			s.brokenReason = vaulterr.ErrCorruptEntry
		}
	}
	s.stateMu.Unlock()
	return nil
}

// lastSeq returns -1 if the stream is empty.
func (s *Stream) lastSeq() int64 {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.tip == nil {
		return -1
	}
	return int64(s.tip.seq)
}

// Append assigns the next seq, links it to the current tip via
// merklechain.Link, writes it atomically, fsyncs if durable, and returns
// the committed entry. Per spec §5, appends within a stream are
// serialized by appendMu; this is the stream's single writer lock.
func (s *Stream) Append(record canon.Value, payloadCID digest.CID, schemaVersion string) (ChainEntry, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	return s.appendLocked(record, payloadCID, schemaVersion)
}

// AppendGuarded holds the stream's single writer lock across a
// caller-supplied guard check and the append itself, so a "scan for an
// existing record, then append if absent" sequence (spec §4.8 step 2's
// dedup scan) is atomic with respect to concurrent writers on the same
// stream. guard runs with the lock held and may use Scan/GetRecord/Tip
// freely; if it returns an error, AppendGuarded aborts without writing.
func (s *Stream) AppendGuarded(guard func() error, record canon.Value, payloadCID digest.CID, schemaVersion string) (ChainEntry, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	if err := guard(); err != nil {
		return ChainEntry{}, err
	}
	return s.appendLocked(record, payloadCID, schemaVersion)
}

func (s *Stream) appendLocked(record canon.Value, payloadCID digest.CID, schemaVersion string) (ChainEntry, error) {
	s.stateMu.RLock()
	broken := s.broken
	s.stateMu.RUnlock()
	if broken {
		return ChainEntry{}, vaulterr.ErrStreamLocked
	}

	recordBytes, err := canon.Canonicalize(record)
	if err != nil {
		return ChainEntry{}, err
	}
	recordDigest := digest.Sum(recordBytes)

	var prevHash *digest.Digest
	var seq uint64
	if tip := s.Tip(); tip != nil {
		h := tip.Hash()
		prevHash = &h
		seq = tip.Seq() + 1
	}

	hash, err := merklechain.Link(prevHash, recordDigest, payloadCID, seq)
	if err != nil {
		return ChainEntry{}, err
	}

	entry := ChainEntry{
		prevHash:     prevHash,
		hash:         hash,
		recordDigest: recordDigest,
		payloadCID:   payloadCID,
		seq:          seq,
		tsIngested:   time.Now().UTC(),
	}

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return ChainEntry{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	if _, err := writeFrame(s.file, entry.toWire(recordBytes, schemaVersion)); err != nil {
		return ChainEntry{}, err
	}
	if s.durable {
		if err := s.file.Sync(); err != nil {
			return ChainEntry{}, fmt.Errorf("%w: fsync: %v", vaulterr.ErrStorageError, err)
		}
	}

	s.stateMu.Lock()
	s.offsets = append(s.offsets, indexEntry{offset: offset})
	e := entry
	s.tip = &e
	s.stateMu.Unlock()

	return entry, nil
}

// ID returns the stream's identifier, as registered with its Registry.
func (s *Stream) ID() string {
	return s.id
}

// Tip returns the most recently committed entry, or nil if empty.
func (s *Stream) Tip() *ChainEntry {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.tip == nil {
		return nil
	}
	e := *s.tip
	return &e
}

// Broken reports whether the stream is locked for writes pending operator
// reset, and why.
func (s *Stream) Broken() (bool, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.broken, s.brokenReason
}

// MarkBroken locks the stream for writes after an integrity failure
// (spec §7: "Writers are halted on the affected stream until an operator
// acks"). Nothing in this module calls it; the replay verifier only
// reports, and repairAndIndex sets the same flag itself at open time.
func (s *Stream) MarkBroken(reason error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.broken = true
	s.brokenReason = reason
}

// Reset clears the broken flag after an operator has acknowledged and
// addressed the underlying integrity failure.
func (s *Stream) Reset() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.broken = false
	s.brokenReason = nil
}

// recordAt reads the wireEntry at the given seq by seeking to its
// indexed offset and decoding exactly one frame. Used by GetRecord and
// Scan. Returns ErrCorruptEntry without touching the file if seq was
// indexed as corrupt at open time.
func (s *Stream) recordAt(seq uint64) (wireEntry, error) {
	s.stateMu.RLock()
	if int64(seq) >= int64(len(s.offsets)) {
		s.stateMu.RUnlock()
		return wireEntry{}, vaulterr.ErrNotFound
	}
	idx := s.offsets[seq]
	s.stateMu.RUnlock()

	if idx.corrupt {
		return wireEntry{}, vaulterr.ErrCorruptEntry
	}

	f, err := os.Open(s.path)
	if err != nil {
		return wireEntry{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	defer f.Close()
	if _, err := f.Seek(idx.offset, io.SeekStart); err != nil {
		return wireEntry{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	w, _, err := readFrame(bufio.NewReader(f))
	if err != nil {
		return wireEntry{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	return w, nil
}

// GetRecord returns the CanonicalBytes of the record stored at seq.
func (s *Stream) GetRecord(seq uint64) ([]byte, error) {
	w, err := s.recordAt(seq)
	if err != nil {
		return nil, err
	}
	return w.RecordCanonical, nil
}

// Cursor is a finite, restartable iterator over a stream's entries,
// starting at fromSeq (spec §4.5 scan contract).
type Cursor struct {
	stream  *Stream
	next    uint64
}

// Scan returns a Cursor starting at fromSeq.
func (s *Stream) Scan(fromSeq uint64) *Cursor {
	return &Cursor{stream: s, next: fromSeq}
}

// Next returns the next entry, or (ChainEntry{}, false, nil) once the
// cursor has passed the stream's current tip. If the frame at this
// position was indexed as corrupt (spec §8 S6), Next still returns
// ok=true (a position exists and the cursor advances past it) together
// with a ChainEntry carrying only Seq and a non-nil error, so callers
// like ReplayVerifier can record the defect and keep scanning instead of
// stopping at the first bad entry.
func (c *Cursor) Next() (ChainEntry, bool, error) {
	c.stream.stateMu.RLock()
	count := len(c.stream.offsets)
	c.stream.stateMu.RUnlock()

	if int64(c.next) >= int64(count) {
		return ChainEntry{}, false, nil
	}
	seq := c.next
	w, err := c.stream.recordAt(seq)
	if err != nil {
		c.next++
		return ChainEntry{seq: seq}, true, err
	}
	entry, err := chainEntryFromWire(w)
	if err != nil {
		c.next++
		return ChainEntry{seq: seq}, true, err
	}
	c.next++
	return entry, true, nil
}

// Close closes the underlying file handle.
func (s *Stream) Close() error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	return s.file.Close()
}
