package anchor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datatrails/vaultledger/appendlog"
	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/content"
	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaultkey"
	"github.com/datatrails/vaultledger/vaulterr"
)

// StreamPrefix names the anchor stream bound to a vault fingerprint (spec
// §4.8: "opens ... the anchor stream whose name is bound to the
// fingerprint"). Rotation therefore opens a fresh, distinct stream.
const StreamPrefix = "anchor-"

// Service implements C8: validate, deduplicate, sign, persist, return
// receipt. Grounded on the teacher's RootSigner lifecycle (init/teardown
// around one resident key) paired with the AppendLog registry this
// package already depends on for C5.
type Service struct {
	vault    *vaultkey.Vault
	registry *appendlog.Registry
	store    content.Store
	log      *zap.Logger

	streamID string
}

// NewService wires a Service to an already-Init'd vault, the shared
// stream registry, and the content store that ledger-line bytes are
// mirrored into so ReplayVerifier can resolve payload_cid for anchor
// streams the same way it does for checkpoint streams. Init must be
// called before WriteAnchor.
func NewService(vault *vaultkey.Vault, registry *appendlog.Registry, store content.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{vault: vault, registry: registry, store: store, log: log}
}

// Init resolves and opens the anchor stream bound to the vault's current
// fingerprint (spec §4.8 key lifecycle). Call after vault.Init.
func (s *Service) Init() error {
	fp, err := s.vault.Fingerprint()
	if err != nil {
		return err
	}
	s.streamID = StreamPrefix + fp.Hex()
	_, err = s.registry.Open(s.streamID)
	return err
}

// StreamID returns the anchor stream this Service is currently bound to.
func (s *Service) StreamID() string {
	return s.streamID
}

// Registry exposes the underlying stream registry, e.g. for a
// ReplayVerifier or test harness that needs to scan the anchor stream
// directly.
func (s *Service) Registry() *appendlog.Registry {
	return s.registry
}

// WriteAnchor implements spec §4.8's 8-step write_anchor algorithm.
func (s *Service) WriteAnchor(ctx context.Context, req Request) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", vaulterr.ErrTimeout, err)
	}
	if err := req.Validate(); err != nil {
		return Receipt{}, err
	}

	fingerprint, err := s.vault.Fingerprint()
	if err != nil {
		return Receipt{}, err
	}

	stream, err := s.registry.Open(s.streamID)
	if err != nil {
		return Receipt{}, err
	}

	pre := Receipt{
		SchemaVersion:    ReceiptSchemaVersion,
		ArtifactKind:     req.ArtifactKind,
		PayloadHash:      req.PayloadHashSHA256,
		VaultFingerprint: fingerprint,
		AnchorID:         uuid.NewString(),
		TS:               time.Now().UTC().Format(time.RFC3339),
		Sealed:           true,
	}

	preBytes, err := pre.PreAnchorBytes()
	if err != nil {
		return Receipt{}, err
	}
	sig, err := s.vault.Sign(preBytes)
	if err != nil {
		return Receipt{}, err
	}
	pre.Signature = sig

	hashInput, err := pre.anchorHashInputBytes()
	if err != nil {
		return Receipt{}, err
	}
	pre.AnchorHash = digest.Sum(hashInput)

	lineValue, err := ledgerLineValue(pre)
	if err != nil {
		return Receipt{}, err
	}
	lineBytes, err := canon.Canonicalize(lineValue)
	if err != nil {
		return Receipt{}, err
	}
	// Spec §4.8 ("the core does not store payload bytes for anchors")
	// means no caller-supplied artifact bytes are stored; the ledger line
	// itself, however, is put into the content store like any other
	// AppendLog payload so ReplayVerifier's payload_cid resolution works
	// uniformly across streams.
	lineCID, err := s.store.Put(ctx, lineBytes)
	if err != nil {
		return Receipt{}, err
	}

	_, err = stream.AppendGuarded(
		func() error { return s.checkDuplicate(stream, req.PayloadHashSHA256) },
		lineValue, lineCID, LedgerLineSchemaVersion,
	)
	if err != nil {
		return Receipt{}, err
	}

	s.log.Info("anchor written",
		zap.String("stream", s.streamID),
		zap.String("anchor_id", pre.AnchorID),
		zap.String("payload_hash", pre.PayloadHash),
	)
	return pre, nil
}

// checkDuplicate implements spec §4.8 step 2: scan every ledger line
// already committed to the stream for a matching payload_hash. Called by
// AppendGuarded with the stream's write lock held, so this scan and the
// subsequent append are atomic with respect to concurrent WriteAnchor
// calls on the same stream.
func (s *Service) checkDuplicate(stream *appendlog.Stream, payloadHash string) error {
	cur := stream.Scan(0)
	for {
		entry, ok, err := cur.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		raw, err := stream.GetRecord(entry.Seq())
		if err != nil {
			return err
		}
		v, err := canon.Parse(raw)
		if err != nil {
			return err
		}
		if existing, ok := payloadHashOf(v); ok && existing == payloadHash {
			return vaulterr.ErrDuplicateAnchor
		}
	}
}
