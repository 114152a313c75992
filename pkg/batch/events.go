package batch

import (
	"time"

	"github.com/nerdneilsfield/guided-translator/pkg/glossary"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

// EventKind 事件类型
type EventKind string

const (
	EventProgress      EventKind = "progress"
	EventStatus        EventKind = "status"
	EventChunkComplete EventKind = "chunk_complete"
	EventError         EventKind = "error"
	EventDone          EventKind = "done"
)

// Progress 进度快照，每完成一个分块重新计算
type Progress struct {
	Current                int               `json:"current"`
	Total                  int               `json:"total"`
	Percentage             int               `json:"percentage"`
	EstimatedTimeRemaining time.Duration     `json:"estimatedTimeRemaining"`
	GlossaryCoverage       glossary.Coverage `json:"glossaryCoverage"`
}

// Summary 批次结束时的汇总
type Summary struct {
	Total      int                         `json:"total"`
	Resumed    int                         `json:"resumed"`
	Translated int                         `json:"translated"`
	Failed     int                         `json:"failed"`
	Canceled   bool                        `json:"canceled"`
	Err        error                       `json:"-"`
	TokenUsage llm.Usage                   `json:"tokenUsage"`
	Coverage   glossary.Coverage           `json:"coverage"`
	Duration   time.Duration               `json:"duration"`
	Chunks     []translate.TranslatedChunk `json:"-"`
}

// Event 批次事件，Kind 决定哪个字段有值
type Event struct {
	Kind     EventKind
	Progress *Progress
	Status   *translate.Status
	Chunk    *translate.TranslatedChunk
	ChunkID  string
	Err      error
	Summary  *Summary
}
