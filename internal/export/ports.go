package export

import (
	"context"

	"moneta/internal/core"
)

// Appender writes a transaction row to an external sheet and returns
// a reference to where it landed.
type Appender interface {
	Append(ctx context.Context, tx core.Transaction, categoryName string) (string, error)
}
