package sheets

import (
	"context"

	"finbot/internal/core"
)

// EntryExporter mirrors ledger mutations into an external spreadsheet.
// Implementations must tolerate replays: removing a row that is already gone
// is not an error.
type EntryExporter interface {
	AppendEntry(ctx context.Context, user core.UserID, e core.Entry) error
	RemoveEntry(ctx context.Context, user core.UserID, e core.Entry) error
	// ClearUser removes every exported row of user and reports how many
	// rows were deleted.
	ClearUser(ctx context.Context, user core.UserID) (int, error)
}
