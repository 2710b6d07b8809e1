package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.uber.org/zap"

	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaulterr"
)

// AzureMirror forwards ContentStore payloads to an Azure Blob container,
// used as the external CAS referenced by spec §4.4's optional mirror_to.
// Grounded on the teacher's idempotent-create pattern in
// MassifCommitter.CommitContext: new blobs are uploaded with
// IfNoneMatch("*") so a racing duplicate upload is a harmless no-op
// rather than an overwrite.
type AzureMirror struct {
	client    *azblob.Client
	container string
	log       *zap.Logger
}

func NewAzureMirror(client *azblob.Client, container string, log *zap.Logger) *AzureMirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &AzureMirror{client: client, container: container, log: log}
}

// MirrorTo uploads b under a blob name derived from cid's hex digest. If
// the blob already exists (another process mirrored identical content
// first), that is not an error. Before upload, cid is compared to the CID
// implied by re-hashing b; any mismatch fails ErrCIDMismatch and nothing
// is uploaded, so no blob is ever stored under a name its bytes do not
// hash to.
func (m *AzureMirror) MirrorTo(ctx context.Context, cid digest.CID, b []byte) (digest.CID, error) {
	blobName := cid.Hex()

	remote := digest.Of(b)
	if remote != cid {
		return digest.CID{}, fmt.Errorf("%w: local=%s remote=%s", vaulterr.ErrCIDMismatch, cid, remote)
	}

	_, err := m.client.UploadBuffer(ctx, m.container, blobName, b, &azblob.UploadBufferOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		},
	})
	if err != nil && !alreadyExists(err) {
		return digest.CID{}, fmt.Errorf("%w: azure upload: %v", vaulterr.ErrStorageError, err)
	}

	m.log.Debug("mirrored to azure", zap.String("cid", cid.String()), zap.String("container", m.container))
	return remote, nil
}

// alreadyExists reports whether err is the conflict the SDK returns when
// IfNoneMatch("*") loses the race against a pre-existing blob.
func alreadyExists(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.ErrorCode == "BlobAlreadyExists" || respErr.StatusCode == 409
	}
	return false
}
