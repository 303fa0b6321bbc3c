// Package remote defines the remote-store contract the sync orchestrator
// talks to, and its HTTP/JSON reference implementation.
//
// The contract is transport-agnostic: Read returns the remote's full
// live+deleted record set, Write submits ours. A Write the remote rejects on
// version grounds fails with *ConflictError carrying the server-side records
// that were incompatible; those feed the merge resolver directly.
package remote

import (
	"context"
	"fmt"

	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/models"
)

// Store is the remote peer. It is never a dictating master: conflicts are
// settled by version comparison on the client, not by source authority.
type Store interface {
	Read(ctx context.Context) (models.Dataset, error)
	Write(ctx context.Context, ds models.Dataset) error
}

// ConflictError reports a rejected Write. Conflicts holds, per entity type,
// the server-side records whose versions clashed with the submitted ones.
type ConflictError struct {
	Conflicts models.Dataset
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %d server records", common.ErrVersionConflict, e.Conflicts.RecordCount())
}

// Is lets errors.Is(err, common.ErrVersionConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == common.ErrVersionConflict
}
