package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"healthcare_assistant/constant"
	"healthcare_assistant/model"
)

// ErrThreadBusy 同一线程已有一轮对话在执行
var ErrThreadBusy = errors.New("thread is busy")

// Checkpointer 图状态快照存储
type Checkpointer interface {
	// Get 读取线程快照，不存在时返回 false
	Get(ctx context.Context, threadID string, state interface{}) (bool, error)
	// Put 覆盖写入线程快照
	Put(ctx context.Context, threadID string, state interface{}) error
}

// Runner 按线程驱动图执行，一个线程同一时刻只允许一轮对话
type Runner struct {
	graph        *Graph
	checkpointer Checkpointer
	maxSteps     int
	locks        sync.Map // threadID -> *sync.Mutex
}

func NewRunner(g *Graph, checkpointer Checkpointer, maxSteps int) (*Runner, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if maxSteps <= 0 {
		maxSteps = constant.DefaultMaxStepsPerTurn
	}
	return &Runner{
		graph:        g,
		checkpointer: checkpointer,
		maxSteps:     maxSteps,
	}, nil
}

// Invoke 执行一轮对话：恢复快照、追加用户消息、沿图运行到终点
// 每个节点执行完都会立即落一次快照，中途失败后可从最近快照恢复
func (r *Runner) Invoke(ctx context.Context, threadID string, userMessage model.ChatMessage, emit EmitFunc) (*State, error) {
	lock := r.threadLock(threadID)
	if !lock.TryLock() {
		return nil, ErrThreadBusy
	}
	defer lock.Unlock()

	state := &State{}
	if _, err := r.checkpointer.Get(ctx, threadID, state); err != nil {
		return nil, err
	}
	// 老快照没有累计计数，用当前消息数兜底
	if state.TotalMessages < len(state.Messages) {
		state.TotalMessages = len(state.Messages)
	}

	state.AppendMessages(userMessage)
	if err := r.checkpointer.Put(ctx, threadID, state); err != nil {
		return nil, err
	}

	node := r.graph.entry(state)
	for step := 0; node != constant.NodeEnd; step++ {
		if step >= r.maxSteps {
			return nil, fmt.Errorf("thread %s exceeded %d steps in one turn", threadID, r.maxSteps)
		}

		fn, ok := r.graph.nodes[node]
		if !ok {
			return nil, fmt.Errorf("unknown graph node %s", node)
		}

		log.Debugf("graph step thread=%s node=%s messages=%d", threadID, node, len(state.Messages))
		if err := fn(ctx, state, emit); err != nil {
			return nil, fmt.Errorf("node %s: %w", node, err)
		}
		if err := r.checkpointer.Put(ctx, threadID, state); err != nil {
			return nil, err
		}

		node = r.graph.edges[node](state)
	}

	return state, nil
}

// Load 只读地取出线程的当前状态，不存在时返回空状态
func (r *Runner) Load(ctx context.Context, threadID string) (*State, error) {
	state := &State{}
	if _, err := r.checkpointer.Get(ctx, threadID, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (r *Runner) threadLock(threadID string) *sync.Mutex {
	actual, _ := r.locks.LoadOrStore(threadID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
