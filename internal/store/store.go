// Package store 以每个项目一个 JSON 文件的形式持久化分块翻译记录。
// 记录按 (projectId, chunkId) 唯一，写入时持有跨进程文件锁并原子替换文件。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/guided-translator/pkg/chunk"
	"github.com/nerdneilsfield/guided-translator/pkg/glossary"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

const (
	FormatVersion = "1.0.0"
	projectExt    = ".json"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrChunkNotFound   = errors.New("chunk record not found")
	ErrLocked          = errors.New("project file is locked by another process")
)

// ChunkRecord 单个分块的持久化记录
type ChunkRecord struct {
	ProjectID          string               `json:"projectId"`
	ChunkID            string               `json:"chunkId"`
	Position           int                  `json:"position"`
	OriginalText       string               `json:"originalText"`
	OriginalType       chunk.Type           `json:"originalType"`
	Metadata           chunk.Metadata       `json:"metadata"`
	InitialTranslation string               `json:"initialTranslation"`
	CurrentTranslation string               `json:"currentTranslation"`
	MatchedTerms       []glossary.TermMatch `json:"matchedTerms"`
	NewTerms           []glossary.NewTerm   `json:"newTerms,omitempty"`
	Error              string               `json:"error,omitempty"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// Project 一个翻译项目
type Project struct {
	Version      string        `json:"version"`
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	SourceFile   string        `json:"sourceFile"`
	GlossaryFile string        `json:"glossaryFile"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Chunks       []chunk.Chunk `json:"chunks"`
	Records      []ChunkRecord `json:"records"`
}

// Store 项目存储
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

// Open 打开（必要时创建）存储目录
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir 存储目录
func (s *Store) Dir() string { return s.dir }

func (s *Store) projectPath(id string) string {
	return filepath.Join(s.dir, id+projectExt)
}

func (s *Store) lockPath(id string) string {
	return filepath.Join(s.dir, id+".lock")
}

// CreateProject 新建项目并保存分块列表
func (s *Store) CreateProject(name, sourceFile, glossaryFile string, chunks []chunk.Chunk) (*Project, error) {
	now := time.Now()
	p := &Project{
		Version:      FormatVersion,
		ID:           uuid.NewString(),
		Name:         name,
		SourceFile:   sourceFile,
		GlossaryFile: glossaryFile,
		CreatedAt:    now,
		UpdatedAt:    now,
		Chunks:       chunks,
		Records:      make([]ChunkRecord, 0, len(chunks)),
	}
	err := s.withLock(p.ID, func() error {
		return s.write(p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("创建项目", zap.String("project", p.ID), zap.Int("chunks", len(chunks)))
	return p, nil
}

// Load 读取项目
func (s *Store) Load(id string) (*Project, error) {
	var p *Project
	err := s.withRLock(id, func() error {
		var err error
		p, err = s.read(id)
		return err
	})
	return p, err
}

// List 列出全部项目，按创建时间倒序
func (s *Store) List() ([]*Project, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	var out []*Project
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, projectExt) {
			continue
		}
		p, err := s.Load(strings.TrimSuffix(name, projectExt))
		if err != nil {
			s.logger.Warn("跳过无法读取的项目文件", zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Upsert 按 (projectId, chunkId) 插入或替换记录。
// 已有成功译文时保留 InitialTranslation，其余字段以新记录为准。
func (s *Store) Upsert(rec ChunkRecord) error {
	if rec.ProjectID == "" || rec.ChunkID == "" {
		return errors.New("record requires projectId and chunkId")
	}
	return s.withLock(rec.ProjectID, func() error {
		p, err := s.read(rec.ProjectID)
		if err != nil {
			return err
		}
		rec.UpdatedAt = time.Now()
		if rec.CurrentTranslation == "" {
			rec.CurrentTranslation = rec.InitialTranslation
		}

		replaced := false
		for i := range p.Records {
			if p.Records[i].ChunkID != rec.ChunkID {
				continue
			}
			prev := p.Records[i]
			if prev.Error == "" && prev.InitialTranslation != "" {
				rec.InitialTranslation = prev.InitialTranslation
			}
			p.Records[i] = rec
			replaced = true
			break
		}
		if !replaced {
			p.Records = append(p.Records, rec)
		}
		sortRecords(p.Records)
		return s.write(p)
	})
}

// UpdateTranslation 人工修订某个分块的当前译文
func (s *Store) UpdateTranslation(projectID, chunkID, text string) error {
	return s.withLock(projectID, func() error {
		p, err := s.read(projectID)
		if err != nil {
			return err
		}
		for i := range p.Records {
			if p.Records[i].ChunkID == chunkID {
				p.Records[i].CurrentTranslation = text
				p.Records[i].UpdatedAt = time.Now()
				return s.write(p)
			}
		}
		return fmt.Errorf("%w: %s/%s", ErrChunkNotFound, projectID, chunkID)
	})
}

// Records 按位置返回项目的全部记录
func (s *Store) Records(projectID string) ([]ChunkRecord, error) {
	p, err := s.Load(projectID)
	if err != nil {
		return nil, err
	}
	return p.Records, nil
}

// CompletedPrefix 返回从位置 0 起连续成功的分块，用于续译。
// 失败或缺失的第一个位置即续译起点。
func CompletedPrefix(p *Project) []translate.TranslatedChunk {
	byID := make(map[string]ChunkRecord, len(p.Records))
	for _, r := range p.Records {
		byID[r.ChunkID] = r
	}
	var out []translate.TranslatedChunk
	for _, c := range p.Chunks {
		r, ok := byID[c.ID]
		if !ok || r.Error != "" {
			break
		}
		out = append(out, r.TranslatedChunk(c))
	}
	return out
}

// TranslatedChunk 把记录还原为翻译结果
func (r ChunkRecord) TranslatedChunk(c chunk.Chunk) translate.TranslatedChunk {
	return translate.TranslatedChunk{
		Chunk:        c,
		Translation:  r.CurrentTranslation,
		MatchedTerms: r.MatchedTerms,
		NewTerms:     r.NewTerms,
		Error:        r.Error,
	}
}

// RecordFrom 由翻译结果构造记录
func RecordFrom(projectID string, tc *translate.TranslatedChunk) ChunkRecord {
	return ChunkRecord{
		ProjectID:          projectID,
		ChunkID:            tc.ID,
		Position:           tc.Position,
		OriginalText:       tc.Text,
		OriginalType:       tc.Type,
		Metadata:           tc.Metadata,
		InitialTranslation: tc.Translation,
		CurrentTranslation: tc.Translation,
		MatchedTerms:       tc.MatchedTerms,
		NewTerms:           tc.NewTerms,
		Error:              tc.Error,
	}
}

// ProjectPersister 把批次结果写入指定项目
type ProjectPersister struct {
	store     *Store
	projectID string
}

// Persister 返回绑定到项目的持久化器
func (s *Store) Persister(projectID string) *ProjectPersister {
	return &ProjectPersister{store: s, projectID: projectID}
}

// SaveChunk 持久化一个分块
func (pp *ProjectPersister) SaveChunk(ctx context.Context, tc *translate.TranslatedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pp.store.Upsert(RecordFrom(pp.projectID, tc))
}

func sortRecords(records []ChunkRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Position < records[j].Position })
}

func (s *Store) withLock(id string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileLock := flock.New(s.lockPath(id))
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			s.logger.Warn("释放写锁失败", zap.String("project", id), zap.Error(err))
		}
	}()
	return fn()
}

func (s *Store) withRLock(id string, fn func() error) error {
	if _, err := os.Stat(s.projectPath(id)); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}

	fileLock := flock.New(s.lockPath(id))
	locked, err := fileLock.TryRLock()
	if err != nil {
		return fmt.Errorf("failed to acquire read lock: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			s.logger.Warn("释放读锁失败", zap.String("project", id), zap.Error(err))
		}
	}()
	return fn()
}

// read 调用方必须持有锁
func (s *Store) read(id string) (*Project, error) {
	data, err := os.ReadFile(s.projectPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}
	return &p, nil
}

// write 调用方必须持有锁
func (s *Store) write(p *Project) error {
	p.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	// 原子写入
	tmp := s.projectPath(p.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp project file: %w", err)
	}
	if err := os.Rename(tmp, s.projectPath(p.ID)); err != nil {
		return fmt.Errorf("failed to rename project file: %w", err)
	}
	return nil
}
