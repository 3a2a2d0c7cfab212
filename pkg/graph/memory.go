package graph

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryCheckpointer 进程内快照存储，测试与单机调试用
type MemoryCheckpointer struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{snapshots: make(map[string][]byte)}
}

func (c *MemoryCheckpointer) Get(_ context.Context, threadID string, state interface{}) (bool, error) {
	c.mu.RLock()
	raw, ok := c.snapshots[threadID]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryCheckpointer) Put(_ context.Context, threadID string, state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snapshots[threadID] = raw
	c.mu.Unlock()
	return nil
}
