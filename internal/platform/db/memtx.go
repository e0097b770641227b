package db

import (
	"context"
	"sync"
)

type undoKey struct{}

type undoLog struct {
	mu  sync.Mutex
	fns []func()
}

// RecordUndo registers a compensating action for the in-memory unit running
// in ctx. Outside a unit it is a no-op.
func RecordUndo(ctx context.Context, fn func()) {
	log, _ := ctx.Value(undoKey{}).(*undoLog)
	if log == nil {
		return
	}
	log.mu.Lock()
	log.fns = append(log.fns, fn)
	log.mu.Unlock()
}

// MemTxRunner gives in-memory repositories all-or-nothing units: units run
// one at a time and, when fn fails, every recorded undo action is replayed in
// reverse order before the error is returned.
type MemTxRunner struct {
	mu sync.Mutex
}

func NewMemTxRunner() *MemTxRunner {
	return &MemTxRunner{}
}

func (r *MemTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := &undoLog{}
	defer func() {
		if p := recover(); p != nil {
			log.rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, undoKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	return nil
}

func (l *undoLog) rollback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.fns) - 1; i >= 0; i-- {
		l.fns[i]()
	}
	l.fns = nil
}
