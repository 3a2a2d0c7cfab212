package embedding

import "sync"

// LRUCache LRU 缓存实现
type LRUCache struct {
	capacity int
	cache    map[string]*CacheNode
	head     *CacheNode
	tail     *CacheNode
	mu       sync.RWMutex
}

// CacheNode 缓存节点
type CacheNode struct {
	key   string
	value []float64
	prev  *CacheNode
	next  *CacheNode
}

// NewLRUCache 创建新的 LRU 缓存
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = LRUCacheCapacity
	}
	head := &CacheNode{}
	tail := &CacheNode{}
	head.next = tail
	tail.prev = head
	return &LRUCache{
		capacity: capacity,
		cache:    make(map[string]*CacheNode),
		head:     head,
		tail:     tail,
	}
}

// Get 从缓存获取
func (lru *LRUCache) Get(key string) ([]float64, bool) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	node, ok := lru.cache[key]
	if !ok {
		return nil, false
	}

	// 移动到头部
	lru.moveToHead(node)
	return node.value, true
}

// Put 放入缓存
func (lru *LRUCache) Put(key string, value []float64) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if node, ok := lru.cache[key]; ok {
		// 更新现有节点
		node.value = value
		lru.moveToHead(node)
		return
	}

	// 创建新节点
	node := &CacheNode{
		key:   key,
		value: value,
	}
	lru.cache[key] = node
	lru.addToHead(node)

	// 如果超过容量，删除尾部节点
	if len(lru.cache) > lru.capacity {
		lru.removeTail()
	}
}

func (lru *LRUCache) addToHead(node *CacheNode) {
	node.prev = lru.head
	node.next = lru.head.next
	lru.head.next.prev = node
	lru.head.next = node
}

func (lru *LRUCache) removeNode(node *CacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

func (lru *LRUCache) moveToHead(node *CacheNode) {
	lru.removeNode(node)
	lru.addToHead(node)
}

func (lru *LRUCache) removeTail() {
	node := lru.tail.prev
	lru.removeNode(node)
	delete(lru.cache, node.key)
}
