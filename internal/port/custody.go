package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// Custody moves tokens between external holders and the auction escrow.
// Either call must succeed fully or return an error; the engine aborts the
// triggering operation on failure and leaves no partial queue or claim state.
type Custody interface {
	TransferIn(ctx context.Context, token, from string, amount decimal.Decimal) error
	TransferOut(ctx context.Context, token, to string, amount decimal.Decimal) error
}
