package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/datatrails/vaultledger/appendlog"
	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/content"
	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaulterr"
)

// Producer supplies state that is already canonical: stripped of
// wall-clock and host-identifying fields, per spec §4.7 step 1. Engine
// never reads a clock or a hostname itself.
type Producer interface {
	CanonicalState() (canon.Value, error)
}

// SeqEnforce selects how Engine enforces tick monotonicity, matching the
// `checkpoint.seq_enforce` config option in spec §6.
type SeqEnforce int

const (
	// SeqEnforceStrict requires tick > last tick (the spec §6 default).
	SeqEnforceStrict SeqEnforce = iota
	// SeqEnforceMonotonicNonStrict allows tick == last tick (idempotent
	// re-snapshot of the same producer tick is accepted, not rejected).
	SeqEnforceMonotonicNonStrict
)

// Result is returned by Snapshot, per spec §4.7 step 5.
type Result struct {
	CapsuleCID digest.CID
	ChainHash  digest.Digest
}

// Engine implements C7. Grounded on the teacher's use of a log confirmer
// to chain one massif's signed root to the next (massifs/rootsigner.go
// doc comments reference LogConfirmer); here the chaining is of capsules
// rather than signed roots, and the storage is the generic AppendLog/
// ContentStore pair rather than Azure blobs directly.
type Engine struct {
	registry *appendlog.Registry
	store    content.Store
	enforce  SeqEnforce
	log      *zap.Logger

	mu       sync.Mutex
	lastTick map[string]int64
}

func NewEngine(registry *appendlog.Registry, store content.Store, enforce SeqEnforce, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		store:    store,
		enforce:  enforce,
		log:      log,
		lastTick: make(map[string]int64),
	}
}

// Snapshot runs the algorithm in spec §4.7: canonicalize+hash the
// producer's state, store it, link it to the stream's previous capsule,
// append the capsule, and return its address. On any failure the append
// is aborted atomically (canon/content failures simply never reach
// appendlog.Append; appendlog.Append itself is atomic per entry).
func (e *Engine) Snapshot(ctx context.Context, streamID string, tick int64, producer Producer, metadata canon.Value) (Result, error) {
	state, err := producer.CanonicalState()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", vaulterr.ErrCanonicalizationFailed, err)
	}
	stateBytes, err := canon.Canonicalize(state)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", vaulterr.ErrCanonicalizationFailed, err)
	}
	stateDigest := digest.Sum(stateBytes)

	statePayloadCID, err := e.store.Put(ctx, stateBytes)
	if err != nil {
		return Result{}, err
	}

	stream, err := e.registry.Open(streamID)
	if err != nil {
		return Result{}, err
	}

	last, err := e.resolveLastTick(ctx, streamID, stream)
	if err != nil {
		return Result{}, err
	}
	if last != nil {
		ok := tick > *last
		if e.enforce == SeqEnforceMonotonicNonStrict {
			ok = tick >= *last
		}
		if !ok {
			return Result{}, fmt.Errorf("%w: tick %d does not advance past %d", vaulterr.ErrCheckpointOutOfOrder, tick, *last)
		}
	}

	var parentCID *digest.CID
	if tip := stream.Tip(); tip != nil {
		c := tip.PayloadCID()
		parentCID = &c
	}

	capsule := Capsule{
		StreamID:         streamID,
		Tick:             tick,
		StateDigest:      stateDigest,
		StatePayloadCID:  statePayloadCID,
		ParentCapsuleCID: parentCID,
		ProducerMetadata: metadata,
	}
	capsuleValue, err := capsule.Value()
	if err != nil {
		return Result{}, err
	}
	capsuleBytes, err := canon.Canonicalize(capsuleValue)
	if err != nil {
		return Result{}, err
	}
	capsuleCID, err := e.store.Put(ctx, capsuleBytes)
	if err != nil {
		return Result{}, err
	}

	entry, err := stream.Append(capsuleValue, capsuleCID, SchemaVersion)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	e.lastTick[streamID] = tick
	e.mu.Unlock()

	e.log.Info("checkpoint snapshot",
		zap.String("stream", streamID),
		zap.Int64("tick", tick),
		zap.String("capsule_cid", capsuleCID.String()),
	)
	return Result{CapsuleCID: capsuleCID, ChainHash: entry.Hash()}, nil
}

// resolveLastTick returns the last committed tick for streamID, checking
// the in-memory cache first and falling back to reading the stream tip's
// capsule from content store (covers the first Snapshot call after a
// process restart, before any in-process cache exists).
func (e *Engine) resolveLastTick(ctx context.Context, streamID string, stream *appendlog.Stream) (*int64, error) {
	e.mu.Lock()
	if t, ok := e.lastTick[streamID]; ok {
		e.mu.Unlock()
		return &t, nil
	}
	e.mu.Unlock()

	tip := stream.Tip()
	if tip == nil {
		return nil, nil
	}
	raw, err := e.store.Get(ctx, tip.PayloadCID())
	if err != nil {
		return nil, err
	}
	rec, err := e.decodeCapsule(raw)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.lastTick[streamID] = rec.Tick
	e.mu.Unlock()
	return &rec.Tick, nil
}

func (e *Engine) decodeCapsule(raw []byte) (Capsule, error) {
	v, err := canon.Parse(raw)
	if err != nil {
		return Capsule{}, err
	}
	return ParseCapsule(v)
}
