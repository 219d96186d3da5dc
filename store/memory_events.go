package store

import (
	"context"
	"sync"

	"github.com/rushteam/venuerec/core"
)

// MemoryEventSource 是内存实现的交互事件与画像文本来源，用于测试/开发。
type MemoryEventSource struct {
	mu       sync.RWMutex
	events   []core.InteractionEvent
	profiles map[string]*core.ProfileTexts
}

func NewMemoryEventSource() *MemoryEventSource {
	return &MemoryEventSource{profiles: make(map[string]*core.ProfileTexts)}
}

// Append 追加交互事件。
func (m *MemoryEventSource) Append(events ...core.InteractionEvent) {
	m.mu.Lock()
	m.events = append(m.events, events...)
	m.mu.Unlock()
}

// SetProfile 设置用户画像文本。
func (m *MemoryEventSource) SetProfile(userID string, p core.ProfileTexts) {
	m.mu.Lock()
	m.profiles[userID] = &p
	m.mu.Unlock()
}

func (m *MemoryEventSource) Events(_ context.Context) ([]core.InteractionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.InteractionEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

// ProfileTexts 未知用户返回空画像，由调用方判断是否不足。
func (m *MemoryEventSource) ProfileTexts(_ context.Context, userID string) (*core.ProfileTexts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return &core.ProfileTexts{}, nil
}
