// Package keypool 管理 API 密钥池：当前密钥、轮换、跳转到付费密钥，
// 以及"依次尝试每个密钥，首个成功即返回"的故障转移。
package keypool

import (
	"errors"
	"strings"
	"sync"
)

// ErrEmptyPool 密钥池为空
var ErrEmptyPool = errors.New("api key pool is empty")

// APIKey 单个密钥配置
type APIKey struct {
	Key    string `json:"key" mapstructure:"key"`
	IsPaid bool   `json:"paid" mapstructure:"paid"`
}

// Status 密钥池状态
type Status struct {
	Configured   bool `json:"configured"`
	KeyCount     int  `json:"key_count"`
	PaidCount    int  `json:"paid_count"`
	CurrentIndex int  `json:"current_index"`
}

// Pool 进程级的密钥池。当前索引始终指向有效成员。
type Pool struct {
	mu    sync.RWMutex
	keys  []APIKey
	index int
}

// NewPool 创建密钥池，空白密钥会被丢弃
func NewPool(keys []APIKey) (*Pool, error) {
	p := &Pool{}
	if err := p.SetKeys(keys); err != nil {
		return nil, err
	}
	return p, nil
}

// SetKeys 替换整个密钥池并把索引重置为 0
func (p *Pool) SetKeys(keys []APIKey) error {
	cleaned := make([]APIKey, 0, len(keys))
	for _, k := range keys {
		k.Key = strings.TrimSpace(k.Key)
		if k.Key != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return ErrEmptyPool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = cleaned
	p.index = 0
	return nil
}

// Size 密钥数量
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.keys)
}

// Keys 按池内顺序返回密钥副本
func (p *Pool) Keys() []APIKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]APIKey, len(p.keys))
	copy(out, p.keys)
	return out
}

// Current 当前密钥
func (p *Pool) Current() APIKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.keys[p.index]
}

// CurrentIndex 当前索引
func (p *Pool) CurrentIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index
}

// Rotate 轮换到下一个密钥（循环），返回新的当前密钥
func (p *Pool) Rotate() APIKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = (p.index + 1) % len(p.keys)
	return p.keys[p.index]
}

// HasPaid 池中是否有付费密钥
func (p *Pool) HasPaid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, k := range p.keys {
		if k.IsPaid {
			return true
		}
	}
	return false
}

// SkipToPaid 直接跳到第一个付费密钥，与轮换顺序无关
func (p *Pool) SkipToPaid() (APIKey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, k := range p.keys {
		if k.IsPaid {
			p.index = i
			return k, true
		}
	}
	return APIKey{}, false
}

// Status 返回池状态快照
func (p *Pool) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	paid := 0
	for _, k := range p.keys {
		if k.IsPaid {
			paid++
		}
	}
	return Status{
		Configured:   len(p.keys) > 0,
		KeyCount:     len(p.keys),
		PaidCount:    paid,
		CurrentIndex: p.index,
	}
}

// Mask 遮蔽密钥，只显示前4位和后4位
func Mask(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
