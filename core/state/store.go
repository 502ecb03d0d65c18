package state

import (
	"sync"

	"Bt1QPlayer/model"

	"github.com/google/uuid"
)

// Listener 状态订阅回调
// 回调在状态变更的调用方 goroutine 中同步执行，不能在回调里再修改状态
type Listener func(model.PlaybackState)

// Store 播放状态存储
// 每次变更生成新的完整快照并同步通知所有订阅者，不做合并也不异步派发
type Store struct {
	mu        sync.Mutex // 保护 snapshot 与 listeners
	emitMu    sync.Mutex // 串行化广播，保证通知顺序与变更顺序一致
	snapshot  model.PlaybackState
	listeners map[string]Listener
	order     []string
}

// NewStore 创建状态存储，初始为空闲状态
func NewStore() *Store {
	return &Store{
		snapshot:  model.InitialPlaybackState(),
		listeners: make(map[string]Listener),
	}
}

// Subscribe 订阅状态变更，立即以当前快照回调一次
// 返回的函数用于取消订阅，可重复调用
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	id := uuid.New().String()

	s.emitMu.Lock()
	s.mu.Lock()
	s.listeners[id] = l
	s.order = append(s.order, id)
	current := s.snapshot.Clone()
	s.mu.Unlock()
	l(current)
	s.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listeners, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Snapshot 返回当前状态的副本
func (s *Store) Snapshot() model.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Update 基于当前快照生成新快照并广播
func (s *Store) Update(mutate func(next *model.PlaybackState)) model.PlaybackState {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	next := s.snapshot.Clone()
	mutate(&next)
	s.snapshot = next
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next.Clone())
	}
	return next.Clone()
}

// Replace 整体替换快照并广播
func (s *Store) Replace(state model.PlaybackState) model.PlaybackState {
	return s.Update(func(next *model.PlaybackState) {
		*next = state.Clone()
	})
}

// SubscriberCount 当前订阅者数量
func (s *Store) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
