package billing

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/mmdatafocus/freight_backend/models"
)

// Compensate cancels invoices left behind by a rolled back operation. It is a
// no-op for services that share the store's transaction.
func Compensate(ctx context.Context, accounts AccountingService, invoiceIds []int) error {
	if accounts.Transactional() {
		return nil
	}
	var result *multierror.Error
	for _, id := range invoiceIds {
		err := retry.Do(
			func() error {
				_, err := accounts.CancelInvoice(ctx, id)
				if isNotFound(err) || errors.Is(err, models.ErrAlreadyCancelled) {
					return nil
				}
				return err
			},
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(200*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, models.ErrConflict) && !errors.Is(err, models.ErrValidation)
			}),
		)
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
