// Package batch composes segment map operations into one atomically applied sequence
// against a single record.
//
// A Batch is built fluently and executed in one of two explicitly named modes:
//
//	b := batch.New(s, db.NewKey("test", "u42"), "u").
//		GetByKey(1001, cdt.ReturnValue).
//		Put(1001, cdt.NewEntry(hour)).
//		GetByKey(1001, cdt.ReturnValue)
//
//	results, err := b.ExecOrdered(ctx) // one result per operation, in submission order
//	last, err := b.Exec(ctx)           // last result per bin, order not preserved
//
// Either all operations of a batch take effect or none do. On failure a single error
// is returned and no results.
package batch

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/store"
)

// Batch accumulates operations for one record key. The builder methods target the
// current bin, which can be switched with Bin.
//
// A Batch is not safe for concurrent use while it is being built.
type Batch struct {
	s   store.IStore
	key db.Key
	bin string
	ops []cdt.Operation
}

// New creates an empty batch for key, targeting bin
func New(s store.IStore, key db.Key, bin string) *Batch {
	return &Batch{
		s:   s,
		key: key,
		bin: bin,
	}
}

// Key returns the record key the batch is executed against
func (b *Batch) Key() db.Key { return b.key }

// Len returns the number of queued operations
func (b *Batch) Len() int { return len(b.ops) }

// Ops returns a copy of the queued operations
func (b *Batch) Ops() []cdt.Operation {
	return append([]cdt.Operation(nil), b.ops...)
}

// Reset drops all queued operations so the batch can be reused
func (b *Batch) Reset() *Batch {
	b.ops = b.ops[:0]
	return b
}

// --------------------------------------------------------------------------
// Builder
// --------------------------------------------------------------------------

// Bin switches the bin targeted by the following builder calls
func (b *Batch) Bin(name string) *Batch {
	b.bin = name
	return b
}

// Add queues an arbitrary operation as is (its bin is not rewritten)
func (b *Batch) Add(ops ...cdt.Operation) *Batch {
	b.ops = append(b.ops, ops...)
	return b
}

func (b *Batch) GetByKey(id int64, rk cdt.ReturnKind) *Batch {
	return b.Add(cdt.GetByKey(b.bin, id, rk))
}

func (b *Batch) GetByValue(hour int64, rk cdt.ReturnKind) *Batch {
	return b.Add(cdt.GetByValue(b.bin, hour, rk))
}

func (b *Batch) GetByValueRange(low, high int64, rk cdt.ReturnKind, inverted bool) *Batch {
	return b.Add(cdt.GetByValueRange(b.bin, low, high, rk, inverted))
}

func (b *Batch) GetByKeyRange(low, high int64, rk cdt.ReturnKind) *Batch {
	return b.Add(cdt.GetByKeyRange(b.bin, low, high, rk))
}

func (b *Batch) Put(id int64, e cdt.Entry) *Batch {
	return b.Add(cdt.Put(b.bin, id, e))
}

func (b *Batch) PutItems(items map[int64]cdt.Entry) *Batch {
	return b.Add(cdt.PutItems(b.bin, items))
}

func (b *Batch) RemoveByKey(id int64, rk cdt.ReturnKind) *Batch {
	return b.Add(cdt.RemoveByKey(b.bin, id, rk))
}

func (b *Batch) RemoveByValueRange(low, high int64, rk cdt.ReturnKind, inverted bool) *Batch {
	return b.Add(cdt.RemoveByValueRange(b.bin, low, high, rk, inverted))
}

func (b *Batch) RemoveByKeyRange(low, high int64, rk cdt.ReturnKind) *Batch {
	return b.Add(cdt.RemoveByKeyRange(b.bin, low, high, rk))
}

func (b *Batch) Size() *Batch {
	return b.Add(cdt.Size(b.bin))
}

func (b *Batch) Increment(path []cdt.PathStep, delta int64) *Batch {
	return b.Add(cdt.Increment(b.bin, path, delta))
}

// IncrementTTL adds delta to the expiration hour of segment id
func (b *Batch) IncrementTTL(id int64, delta int64) *Batch {
	return b.Increment(cdt.TTLPath(id), delta)
}

func (b *Batch) Clear() *Batch {
	return b.Add(cdt.Clear(b.bin))
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// ExecOrdered applies the batch atomically and returns one result per operation,
// aligned with the order in which the operations were added.
func (b *Batch) ExecOrdered(ctx context.Context) ([]cdt.Result, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}

	results, err := b.s.OperateOrdered(b.key, b.ops)
	if err != nil {
		return nil, fmt.Errorf("batch on %s failed: %w", b.key, err)
	}
	if len(results) != len(b.ops) {
		return nil, fmt.Errorf("batch on %s: got %d results for %d operations", b.key, len(results), len(b.ops))
	}
	return results, nil
}

// Exec applies the batch atomically without preserving result order.
// The returned map holds the last result of every bin touched by the batch.
func (b *Batch) Exec(ctx context.Context) (map[string]cdt.Result, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}

	results, err := b.s.Operate(b.key, b.ops)
	if err != nil {
		return nil, fmt.Errorf("batch on %s failed: %w", b.key, err)
	}
	return results, nil
}

func (b *Batch) check(ctx context.Context) error {
	if len(b.ops) == 0 {
		return fmt.Errorf("batch on %s: no operations", b.key)
	}
	return ctx.Err()
}
