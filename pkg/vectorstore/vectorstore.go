package vectorstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	log "github.com/sirupsen/logrus"
)

const (
	// CollectionName 症状知识库集合名
	CollectionName = "symptoms"

	fieldSymptom           = "symptom"
	fieldConditions        = "conditions"
	fieldFollowUpQuestions = "follow_up_questions"
)

// SymptomRecord 一条检索命中的症状记录
type SymptomRecord struct {
	Symptom           string   `json:"symptom"`
	Conditions        string   `json:"conditions"`
	FollowUpQuestions []string `json:"follow_up_questions"`
	Similarity        float32  `json:"similarity"`
}

// Store 症状向量索引，基于 chromem 持久化存储
// 启动时从固定数据集构建一次，之后直接加载磁盘上的索引
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	col     *chromem.Collection
	embedFn chromem.EmbeddingFunc
}

// New 打开（或创建）持久化的症状向量索引
// 数据集或索引目录不可用时返回错误，调用方应视为启动失败
func New(indexDir, dataFile string, embedFn chromem.EmbeddingFunc) (*Store, error) {
	if err := os.MkdirAll(indexDir, 0750); err != nil {
		return nil, fmt.Errorf("create vectorstore dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(indexDir, false)
	if err != nil {
		return nil, fmt.Errorf("open vectorstore: %w", err)
	}

	store := &Store{db: db, embedFn: embedFn}

	records, err := loadDataset(dataFile)
	if err != nil {
		return nil, err
	}

	col := db.GetCollection(CollectionName, embedFn)
	if col != nil && col.Count() == len(records) {
		// 已有索引且条数一致，直接复用
		log.Infof("Loaded existing symptom index, documents=%d", col.Count())
		store.col = col
		return store, nil
	}

	log.Infof("Building symptom index from %s, documents=%d", dataFile, len(records))
	col, err = db.CreateCollection(CollectionName, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("create symptom collection: %w", err)
	}

	ctx := context.Background()
	for i, record := range records {
		doc := chromem.Document{
			ID:      strconv.Itoa(i),
			Content: record.Symptom,
			Metadata: map[string]string{
				fieldConditions:        record.Conditions,
				fieldFollowUpQuestions: strings.Join(record.FollowUpQuestions, ";"),
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("index symptom %q: %w", record.Symptom, err)
		}
	}

	store.col = col
	return store, nil
}

// SimilaritySearch 返回与查询最相似的一条症状记录（余弦相似度 top-1）
func (s *Store) SimilaritySearch(ctx context.Context, query string) (*SymptomRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.col.Count()
	if count == 0 {
		return nil, fmt.Errorf("symptom index is empty")
	}

	results, err := s.col.Query(ctx, query, 1, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query symptom index: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	hit := results[0]
	return &SymptomRecord{
		Symptom:           hit.Content,
		Conditions:        hit.Metadata[fieldConditions],
		FollowUpQuestions: parseQuestions(hit.Metadata[fieldFollowUpQuestions]),
		Similarity:        hit.Similarity,
	}, nil
}

// Count 索引中的记录数
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count()
}

// loadDataset 读取症状数据集 csv，列为 symptom,conditions,follow_up_questions
func loadDataset(path string) ([]*SymptomRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symptom dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read symptom dataset: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("symptom dataset %s has no data rows", path)
	}

	header := rows[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{fieldSymptom, fieldConditions, fieldFollowUpQuestions} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("symptom dataset missing column %q", required)
		}
	}

	records := make([]*SymptomRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, &SymptomRecord{
			Symptom:           strings.TrimSpace(row[index[fieldSymptom]]),
			Conditions:        strings.TrimSpace(row[index[fieldConditions]]),
			FollowUpQuestions: parseQuestions(row[index[fieldFollowUpQuestions]]),
		})
	}
	return records, nil
}

// parseQuestions 按分号拆分追问问题列表
func parseQuestions(raw string) []string {
	parts := strings.Split(raw, ";")
	questions := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			questions = append(questions, trimmed)
		}
	}
	return questions
}
