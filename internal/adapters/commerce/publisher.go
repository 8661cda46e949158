// Package commerce defines the contract for the external product publisher.
// The pipeline calls Publish once per finalized draft; one draft's failure
// never blocks another's publication.
package commerce

import (
	"context"
	"errors"

	"github.com/sigil-labs/prophet/internal/domain/model"
)

// Sentinel kinds for commerce errors.
var (
	ErrPublish = errors.New("product publish failed")
)

// Publisher submits finalized product drafts to a storefront.
type Publisher interface {
	// Publish submits one draft and returns the storefront listing,
	// honoring ctx for cancellation and deadline.
	Publish(ctx context.Context, draft model.ProductDraft) (model.Listing, error)
}
