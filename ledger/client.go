package ledger

import (
	"github.com/shopspring/decimal"
)

// TransferClient executes an atomic transfer of money between two ledger
// accounts. Implementations either fully succeed, returning a transfer id,
// or fail without moving money. When commit is false the transfer is built
// and signed but not submitted; the returned id is then the transaction
// envelope awaiting submission.
type TransferClient interface {
	Transfer(from, to string, amount decimal.Decimal, currency string, meta map[string]string, commit bool) (string, error)
}
