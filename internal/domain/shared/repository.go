package shared

import "context"

// Transactor runs fn inside one store transaction. The store handed to fn is
// bound to that transaction; every write made through it commits together or
// not at all.
type Transactor[S any] interface {
	Transaction(ctx context.Context, fn func(tx S) error) error
}
