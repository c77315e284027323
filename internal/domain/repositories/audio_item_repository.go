package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cddm-gh/audio-sphere-switcher/internal/domain/entities"
)

// OwnerScopedStore is the caller-capability view of the pipeline state store.
// Every query is filtered by the owning user; a caller can never read or
// mutate another owner's rows through this interface.
type OwnerScopedStore interface {
	Create(ctx context.Context, item *entities.AudioItem) error
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*entities.AudioItem, error)
	FindByFilename(ctx context.Context, ownerID uuid.UUID, filename string) (*entities.AudioItem, error)

	// AttachRequestID writes the provider correlation id onto the row
	// matched by filename. It returns the number of rows matched; callers
	// must treat anything other than exactly one as a hard error, because
	// the later callback would be unroutable.
	AttachRequestID(ctx context.Context, ownerID uuid.UUID, filename, requestID string) (int64, error)

	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]entities.AudioItem, int64, error)
}

// SystemStore is the system-capability view, used by stages that cannot act
// as any particular caller: the provider webhook and the summary worker.
type SystemStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entities.AudioItem, error)
	FindByRequestID(ctx context.Context, requestID string) (*entities.AudioItem, error)

	// CommitTranscription atomically writes the normalized transcription,
	// raw provider metadata and the transcribed flag on the row matched by
	// correlation id. Returns the number of rows matched; zero means an
	// orphan callback. Re-running for an already-transcribed row matches
	// and rewrites the same text, which keeps duplicate provider
	// deliveries harmless.
	CommitTranscription(ctx context.Context, requestID, text string, providerMetadata []byte) (int64, error)

	// UpdateSummary writes (or overwrites) the summary on the row with the
	// given primary key, provided its transcription has been committed.
	// Returns the number of rows matched; zero means the row is missing or
	// not yet transcribed.
	UpdateSummary(ctx context.Context, id uuid.UUID, summary string) (int64, error)

	// ListStuckDispatched returns rows that were dispatched longer than
	// maxAge ago and never received a callback. Nothing invokes this
	// automatically; it exists for operator reconciliation.
	ListStuckDispatched(ctx context.Context, maxAge time.Duration) ([]entities.AudioItem, error)
}
