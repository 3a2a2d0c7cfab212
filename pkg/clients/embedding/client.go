package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	log "github.com/sirupsen/logrus"
)

const (
	// MaxBatchSize 每批最多处理的数量
	MaxBatchSize = 64
	// LRUCacheCapacity LRU 缓存容量
	LRUCacheCapacity = 5000
)

// Config Embedding 客户端配置
type Config struct {
	APIKey    string
	ModelName string
	BaseURL   string
}

// Client Embedding 客户端，向量做 L2 归一化以便内积即余弦相似度
type Client struct {
	client    openai.Client
	modelName string
	cache     *LRUCache // embedding 缓存
	metrics   *Metrics  // 指标统计
}

// Metrics 指标统计
type Metrics struct {
	IngestCount      int64         // ingest 条数
	QueryCount       int64         // query 次数
	EmbeddingLatency time.Duration // embedding 总耗时
	mu               sync.Mutex
}

// NewClient 创建 Embedding 客户端
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedding config cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("embedding model name is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}

	// 如果配置了 base_url，则使用自定义的 base_url（用于兼容其他兼容 OpenAI API 的服务）
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &Client{
		client:    client,
		modelName: cfg.ModelName,
		cache:     NewLRUCache(LRUCacheCapacity),
		metrics:   &Metrics{},
	}, nil
}

// GetTextEmbedding 获取单个文本的归一化 Embedding 向量（带缓存）
func (c *Client) GetTextEmbedding(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := c.GetTextEmbeddingBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embeddings[0], nil
}

// GetTextEmbeddingBatch 批量获取归一化后的 Embedding 向量（带批量切分和缓存）
func (c *Client) GetTextEmbeddingBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	// 更新查询计数
	c.metrics.mu.Lock()
	c.metrics.QueryCount++
	c.metrics.mu.Unlock()

	startTime := time.Now()
	defer func() {
		c.metrics.mu.Lock()
		c.metrics.EmbeddingLatency += time.Since(startTime)
		c.metrics.mu.Unlock()
	}()

	// 检查缓存并收集需要请求的文本
	type textWithIndex struct {
		text  string
		index int
	}
	needRequest := make([]textWithIndex, 0)
	result := make([][]float64, len(texts))
	cacheHits := 0

	for i, text := range texts {
		if cached, ok := c.cache.Get(text); ok {
			result[i] = cached
			cacheHits++
		} else {
			needRequest = append(needRequest, textWithIndex{text: text, index: i})
		}
	}

	if len(needRequest) == 0 {
		log.Debugf("All embeddings retrieved from cache (count: %d)", len(texts))
		return result, nil
	}

	// 批量切分处理
	allEmbeddings := make([][]float64, len(texts))
	for i := 0; i < len(needRequest); i += MaxBatchSize {
		end := i + MaxBatchSize
		if end > len(needRequest) {
			end = len(needRequest)
		}

		batch := needRequest[i:end]
		batchTexts := make([]string, len(batch))
		for j, item := range batch {
			batchTexts[j] = item.text
		}

		embeddings, err := c.getTextEmbeddingBatchOnce(ctx, batchTexts)
		if err != nil {
			return nil, fmt.Errorf("failed to get embeddings for batch %d-%d: %w", i, end, err)
		}

		// 填充结果并更新缓存
		for j, item := range batch {
			if j < len(embeddings) {
				allEmbeddings[item.index] = embeddings[j]
				c.cache.Put(item.text, embeddings[j])
			}
		}
	}

	// 合并缓存结果和新请求结果
	for i := range texts {
		if result[i] == nil {
			result[i] = allEmbeddings[i]
		}
	}

	log.Debugf("Embedding batch completed: total=%d, cache_hits=%d, requests=%d",
		len(texts), cacheHits, len(needRequest))

	// 更新 ingest 计数
	c.metrics.mu.Lock()
	c.metrics.IngestCount += int64(len(needRequest))
	c.metrics.mu.Unlock()

	return result, nil
}

// getTextEmbeddingBatchOnce 单次批量获取 Embedding 并归一化
func (c *Client) getTextEmbeddingBatchOnce(ctx context.Context, texts []string) ([][]float64, error) {
	input := openai.EmbeddingNewParamsInputUnion{
		OfArrayOfStrings: texts,
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.modelName),
		Input: input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	// 归一化后内积等于余弦相似度
	result := make([][]float64, 0, len(resp.Data))
	for _, item := range resp.Data {
		result = append(result, Normalize(item.Embedding))
	}

	return result, nil
}

// GetMetrics 获取指标统计
func (c *Client) GetMetrics() Metrics {
	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()
	return Metrics{
		IngestCount:      c.metrics.IngestCount,
		QueryCount:       c.metrics.QueryCount,
		EmbeddingLatency: c.metrics.EmbeddingLatency,
	}
}
