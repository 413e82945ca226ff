package txv1

import "context"

// Transactor runs a function as one atomic unit of work. The unit travels in
// the context handed to fn; repositories called with that context join it.
// Calling Do with a context that already carries a unit joins that unit.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactorFunc adapts a function to Transactor.
type TransactorFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// Do implements Transactor.
func (f TransactorFunc) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Passthrough runs fn directly on ctx. Used by unit tests with mocked
// repositories.
var Passthrough Transactor = TransactorFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
