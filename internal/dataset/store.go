package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound：存储中没有该名称的数据集
	ErrNotFound = errors.New("dataset: not found")

	// ErrUnknownFeature：Update 中的要素 ID 不属于该数据集
	ErrUnknownFeature = errors.New("dataset: unknown feature id")

	// ErrDuplicateID：Save 时两个要素共用一个 ID
	ErrDuplicateID = errors.New("dataset: duplicate feature id")
)

// 文档注释：要素存储契约
// 背景：替代隐式的全局工作空间；各阶段通过显式句柄读写命名数据集。
// 约束：Update 仅改写已存在的要素（按 ID），任一 ID 不存在时整体失败、不落任何修改；
// Load 返回的数据与存储内部状态不共享内存。
type Store interface {
	Exists(ctx context.Context, name string) (bool, error)
	Load(ctx context.Context, name string) (*Dataset, error)
	Save(ctx context.Context, ds *Dataset) error
	Update(ctx context.Context, name string, fs []Feature) error
}

func checkIDs(ds *Dataset) error {
	seen := make(map[int64]bool, len(ds.Features))
	for _, f := range ds.Features {
		if seen[f.ID] {
			return fmt.Errorf("%w: %d in %q", ErrDuplicateID, f.ID, ds.Name)
		}
		seen[f.ID] = true
	}
	return nil
}

// applyUpdates：在副本上按 ID 覆盖要素；全部校验通过才返回新副本
func applyUpdates(ds *Dataset, fs []Feature) (*Dataset, error) {
	out := ds.Clone()
	idx := out.ByID()
	for _, f := range fs {
		i, ok := idx[f.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %d in %q", ErrUnknownFeature, f.ID, ds.Name)
		}
		out.Features[i] = f.Clone()
	}
	return out, nil
}

// MemoryStore：进程内存储，用于测试与单机运行
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]*Dataset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]*Dataset)}
}

func (m *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sets[name]
	return ok, nil
}

func (m *MemoryStore) Load(_ context.Context, name string) (*Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.sets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return ds.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, ds *Dataset) error {
	if err := checkIDs(ds); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[ds.Name] = ds.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, name string, fs []Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.sets[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	out, err := applyUpdates(ds, fs)
	if err != nil {
		return err
	}
	m.sets[name] = out
	return nil
}
