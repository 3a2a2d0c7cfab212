package graph

import (
	"context"
	"fmt"

	"healthcare_assistant/constant"
	"healthcare_assistant/model"
)

// State 图执行状态，每个对话线程一份，节点之间只通过它传递数据
type State struct {
	Messages []model.ChatMessage `json:"messages"`
	Summary  string              `json:"summary"`
	// TotalMessages 线程累计消息数，摘要压缩只删 Messages，不回退该计数
	TotalMessages int `json:"total_messages"`
	// Warnings 本轮产生的非致命告警，不落快照
	Warnings []string `json:"-"`
}

// AppendMessages 追加消息，历史消息只增不改
func (s *State) AppendMessages(messages ...model.ChatMessage) {
	s.Messages = append(s.Messages, messages...)
	s.TotalMessages += len(messages)
}

// KeepRecentMessages 压缩后只保留最近 n 条消息，累计计数不变
func (s *State) KeepRecentMessages(n int) {
	if n < 0 {
		n = 0
	}
	if len(s.Messages) > n {
		s.Messages = append([]model.ChatMessage{}, s.Messages[len(s.Messages)-n:]...)
	}
}

// AddWarning 记录一条非致命告警
func (s *State) AddWarning(warning string) {
	s.Warnings = append(s.Warnings, warning)
}

// LastMessage 最后一条消息，空状态返回 nil
func (s *State) LastMessage() *model.ChatMessage {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// EmitFunc 节点向调用方推送增量事件
type EmitFunc func(event *model.StreamEvent)

// NodeFunc 图节点，读写状态并可向外发事件
type NodeFunc func(ctx context.Context, state *State, emit EmitFunc) error

// RouterFunc 根据当前状态决定下一个节点
type RouterFunc func(state *State) constant.GraphNode

// Graph 节点与路由的静态定义，构建完成后只读
type Graph struct {
	nodes map[constant.GraphNode]NodeFunc
	edges map[constant.GraphNode]RouterFunc
	entry RouterFunc
}

func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[constant.GraphNode]NodeFunc),
		edges: make(map[constant.GraphNode]RouterFunc),
	}
}

func (g *Graph) AddNode(name constant.GraphNode, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

// SetEntry 入口路由，每轮调用开始时决定首个节点
func (g *Graph) SetEntry(router RouterFunc) *Graph {
	g.entry = router
	return g
}

// AddEdge 固定边，from 执行完后总是进入 to
func (g *Graph) AddEdge(from, to constant.GraphNode) *Graph {
	g.edges[from] = func(*State) constant.GraphNode { return to }
	return g
}

// AddConditionalEdge 条件边，from 执行完后由路由函数决定去向
func (g *Graph) AddConditionalEdge(from constant.GraphNode, router RouterFunc) *Graph {
	g.edges[from] = router
	return g
}

// Validate 检查所有边的出入点都已注册
func (g *Graph) Validate() error {
	if g.entry == nil {
		return fmt.Errorf("graph has no entry router")
	}
	for from := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("edge from unregistered node %s", from)
		}
	}
	for name := range g.nodes {
		if _, ok := g.edges[name]; !ok {
			return fmt.Errorf("node %s has no outgoing edge", name)
		}
	}
	return nil
}
