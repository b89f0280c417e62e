package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store 用户 ID 到 History 的映射。空闲超过 TTL 或容量满时被新用户挤出的会话会被丢弃
type Store struct {
	mu       sync.Mutex
	lru      *expirable.LRU[int64, *History]
	maxTurns int
}

// NewStore 最多保存 maxUsers 个会话
func NewStore(maxUsers int, idleTTL time.Duration, maxTurns int) *Store {
	if maxUsers <= 0 {
		maxUsers = 10000
	}
	return &Store{
		lru:      expirable.NewLRU[int64, *History](maxUsers, nil, idleTTL),
		maxTurns: maxTurns,
	}
}

// Get 返回用户会话，不存在时创建；每次调用都刷新空闲计时
func (s *Store) Get(userID int64) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.lru.Get(userID)
	if !ok {
		h = NewHistory(s.maxTurns)
	}
	s.lru.Add(userID, h)
	return h
}

// Peek 只读取，不创建也不刷新
func (s *Store) Peek(userID int64) (*History, bool) {
	return s.lru.Peek(userID)
}

// Reset 清空用户历史，会先等待该用户进行中的轮次结束
func (s *Store) Reset(userID int64) bool {
	h, ok := s.Peek(userID)
	if !ok {
		return false
	}
	h.Lock()
	h.Clear()
	h.Unlock()
	return true
}

// Len 存活会话数
func (s *Store) Len() int { return s.lru.Len() }
