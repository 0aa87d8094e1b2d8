package kernel

import (
	"context"

	"github.com/hupe1980/echokernel/core"
)

// timedStore applies the provider timeout and error classification to the
// registered memory store, resolved on every call.
type timedStore struct {
	k *Kernel
}

var _ core.MemoryStore = (*timedStore)(nil)

func (s *timedStore) Add(ctx context.Context, text string, vector []float32, metadata map[string]any) (string, error) {
	const op = "kernel.memory.add"
	store := s.k.memoryStore()
	if store == nil {
		return "", unavailable(op, Memory)
	}
	var id string
	err := s.k.withTimeout(ctx, op, func(callCtx context.Context) error {
		var err error
		id, err = store.Add(callCtx, text, vector, metadata)
		return err
	})
	return id, err
}

func (s *timedStore) Search(ctx context.Context, vector []float32, topK int) ([]core.SearchResult, error) {
	const op = "kernel.memory.search"
	store := s.k.memoryStore()
	if store == nil {
		return nil, unavailable(op, Memory)
	}
	var results []core.SearchResult
	err := s.k.withTimeout(ctx, op, func(callCtx context.Context) error {
		var err error
		results, err = store.Search(callCtx, vector, topK)
		return err
	})
	return results, err
}

func (s *timedStore) Get(ctx context.Context, id string) (core.MemoryRecord, error) {
	const op = "kernel.memory.get"
	store := s.k.memoryStore()
	if store == nil {
		return core.MemoryRecord{}, unavailable(op, Memory)
	}
	var rec core.MemoryRecord
	err := s.k.withTimeout(ctx, op, func(callCtx context.Context) error {
		var err error
		rec, err = store.Get(callCtx, id)
		return err
	})
	return rec, err
}

func (s *timedStore) Delete(ctx context.Context, id string) error {
	const op = "kernel.memory.delete"
	store := s.k.memoryStore()
	if store == nil {
		return unavailable(op, Memory)
	}
	return s.k.withTimeout(ctx, op, func(callCtx context.Context) error {
		return store.Delete(callCtx, id)
	})
}
