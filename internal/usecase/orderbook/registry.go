package orderbook

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderbookv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/orderbook/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

type halt struct {
	reason string
}

type pairBook struct {
	mu   sync.RWMutex
	book *Orderbook
	halt atomic.Pointer[halt]
}

// Registry owns one Orderbook per pair. All mutation of a pair goes through
// With, which serialises it; different pairs proceed concurrently.
type Registry struct {
	mu     sync.Mutex
	books  map[marketv1.Pair]*pairBook
	logger logger.Interface
}

// NewRegistry creates an empty Registry.
func NewRegistry(log logger.Interface) *Registry {
	return &Registry{
		books:  make(map[marketv1.Pair]*pairBook),
		logger: log,
	}
}

func (r *Registry) get(pair marketv1.Pair) *pairBook {
	r.mu.Lock()
	defer r.mu.Unlock()

	pb, ok := r.books[pair]
	if !ok {
		pb = &pairBook{book: NewOrderbook(pair)}
		r.books[pair] = pb
	}
	return pb
}

// With runs fn holding the pair's exclusive lock.
func (r *Registry) With(pair marketv1.Pair, fn func(ob *Orderbook) error) error {
	pb := r.get(pair)
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return fn(pb.book)
}

// View runs fn holding the pair's shared lock. fn must not mutate the book.
func (r *Registry) View(pair marketv1.Pair, fn func(ob *Orderbook)) {
	pb := r.get(pair)
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	fn(pb.book)
}

// Pairs lists every pair with a book, sorted.
func (r *Registry) Pairs() []marketv1.Pair {
	r.mu.Lock()
	defer r.mu.Unlock()

	pairs := make([]marketv1.Pair, 0, len(r.books))
	for p := range r.books {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}

// Restore rebuilds the books of pairs from the open limit orders in repo.
// Existing book contents are replaced.
func (r *Registry) Restore(ctx context.Context, repo orderv1.Repository, pairs ...marketv1.Pair) error {
	for _, pair := range pairs {
		orders, err := repo.ListOpen(ctx, pair)
		if err != nil {
			return errors.Tracef(err, "list open orders of %s", pair)
		}

		book := NewOrderbook(pair)
		for _, o := range orders {
			e, ok := orderbookv1.EntryFromOrder(o)
			if !ok {
				r.logger.WarnContext(ctx, "skipping open order that cannot rest",
					logger.NewField("order_id", o.ID),
					logger.NewField("pair", pair.String()),
				)
				continue
			}
			if err := book.Add(e); err != nil {
				return errors.Tracef(err, "restore order %s", o.ID)
			}
		}

		pb := r.get(pair)
		pb.mu.Lock()
		pb.book = book
		pb.mu.Unlock()

		r.logger.InfoContext(ctx, "order book restored",
			logger.NewField("pair", pair.String()),
			logger.NewField("orders", book.Len()),
		)
	}
	return nil
}

// Halt stops automatic matching on pair. It may be called from inside With.
func (r *Registry) Halt(pair marketv1.Pair, reason string) {
	r.get(pair).halt.Store(&halt{reason: reason})
}

// Resume re-enables matching on pair. It reports whether the pair was halted.
func (r *Registry) Resume(pair marketv1.Pair) bool {
	return r.get(pair).halt.Swap(nil) != nil
}

// Halted reports whether pair is halted, and why.
func (r *Registry) Halted(pair marketv1.Pair) (bool, string) {
	r.mu.Lock()
	pb, ok := r.books[pair]
	r.mu.Unlock()
	if !ok {
		return false, ""
	}
	if h := pb.halt.Load(); h != nil {
		return true, h.reason
	}
	return false, ""
}

// HaltedPairs maps every halted pair to its reason.
func (r *Registry) HaltedPairs() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string)
	for p, pb := range r.books {
		if h := pb.halt.Load(); h != nil {
			out[p.String()] = h.reason
		}
	}
	return out
}
