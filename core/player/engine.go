package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"Bt1QPlayer/core/state"
	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"
)

var (
	ErrEmptyQueue      = errors.New("queue is empty")
	ErrIndexOutOfRange = errors.New("start index out of range")
)

// Resolver 将歌曲解析为可播放地址
type Resolver interface {
	Resolve(ctx context.Context, track model.Track) (string, error)
}

// Options 引擎可选参数
type Options struct {
	// Rand 洗牌使用的随机源，为空时按当前时间播种
	Rand *rand.Rand
}

// Engine 播放队列管理器
// 所有状态修改都在 mu 下完成；网络解析在锁外进行，
// 回到锁内后先比对 epoch，已被后续请求取代的操作直接丢弃。
type Engine struct {
	player   Player
	resolver Resolver
	store    *state.Store

	mu           sync.Mutex
	epoch        uint64
	tracks       []model.Track // 当前队列，与子系统队列一一对应
	original     []model.Track // 最近一次 PlayQueue 时的顺序，用于关闭随机播放时还原
	currentIndex int
	shuffle      bool
	repeat       model.RepeatMode
	rng          *rand.Rand

	ctx        context.Context
	cancel     context.CancelFunc
	loadCancel context.CancelFunc
	loaders    sync.WaitGroup
	done       chan struct{}
}

// NewEngine 创建引擎并开始消费子系统事件
func NewEngine(p Player, resolver Resolver, store *state.Store, opts Options) *Engine {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if store == nil {
		store = state.NewStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		player:       p,
		resolver:     resolver,
		store:        store,
		currentIndex: -1,
		repeat:       model.RepeatOff,
		rng:          rng,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go e.eventLoop()
	return e
}

func (e *Engine) eventLoop() {
	defer close(e.done)

	events := e.player.Events()
	if events == nil {
		<-e.ctx.Done()
		return
	}
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.HandleEvent(ev)
		}
	}
}

// Close 停止事件循环并等待后台加载结束
func (e *Engine) Close() {
	e.cancel()
	<-e.done
	e.loaders.Wait()
}

// Wait 阻塞直到当前所有后台加载结束
func (e *Engine) Wait() {
	e.loaders.Wait()
}

// Subscribe 订阅播放状态
func (e *Engine) Subscribe(l state.Listener) func() {
	return e.store.Subscribe(l)
}

// Snapshot 当前播放状态
func (e *Engine) Snapshot() model.PlaybackState {
	return e.store.Snapshot()
}

// Tracks 当前内部队列的副本
func (e *Engine) Tracks() []model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneTracks(e.tracks)
}

// PlaySong 播放单曲
func (e *Engine) PlaySong(ctx context.Context, track model.Track) error {
	return e.PlayQueue(ctx, []model.Track{track}, 0)
}

// PlayQueue 以 startIndex 为起点播放队列
// 首曲解析成功后立即开始播放，其余歌曲在后台逐首解析并追加。
// 解析失败不会返回错误，只会清除加载状态。
func (e *Engine) PlayQueue(ctx context.Context, tracks []model.Track, startIndex int) error {
	if len(tracks) == 0 {
		return ErrEmptyQueue
	}
	if startIndex < 0 || startIndex >= len(tracks) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, startIndex, len(tracks))
	}
	tracks = model.CloneTracks(tracks)
	first := tracks[startIndex]

	e.mu.Lock()
	epoch := e.advance()
	e.store.Update(func(s *model.PlaybackState) {
		s.IsLoading = true
	})
	if err := e.player.Reset(); err != nil {
		logger.Warn("[Engine] 重置播放器失败", logger.ErrorField(err))
	}
	e.mu.Unlock()

	logger.Debug("[Engine] 开始播放队列",
		logger.Uint64("epoch", epoch),
		logger.Int("size", len(tracks)),
		logger.String("first", first.ID))

	url, err := e.resolver.Resolve(ctx, first)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch {
		logger.Debug("[Engine] 播放请求已被取代", logger.Uint64("epoch", epoch), logger.String("track", first.ID))
		return nil
	}

	if err != nil {
		logger.Error("[Engine] 首曲解析失败",
			logger.String("track", first.ID),
			logger.String("source", string(first.Source)),
			logger.ErrorField(err))
		e.clearQueue()
		return nil
	}

	rotated := rotate(tracks, startIndex)
	e.original = model.CloneTracks(rotated)
	if e.shuffle {
		e.tracks = shuffleKeepingCurrent(rotated, 0, e.rng)
	} else {
		e.tracks = model.CloneTracks(rotated)
	}
	e.currentIndex = 0

	if err := e.player.Add(NewItem(first, url)); err != nil {
		e.clearQueue()
		return fmt.Errorf("add first track: %w", err)
	}
	if err := e.player.Play(); err != nil {
		if rerr := e.player.Reset(); rerr != nil {
			logger.Warn("[Engine] 重置播放器失败", logger.ErrorField(rerr))
		}
		e.clearQueue()
		return fmt.Errorf("start playback: %w", err)
	}

	current := first
	queue := model.CloneTracks(e.tracks)
	shuffle := e.shuffle
	e.store.Update(func(s *model.PlaybackState) {
		s.IsLoading = false
		s.IsPlaying = true
		s.CurrentTrack = &current
		s.CurrentIndex = 0
		s.Queue = queue
		s.ShuffleEnabled = shuffle
		s.PositionMs = 0
		s.DurationMs = int64(current.DurationSeconds * 1000)
	})

	rest := e.tracks[1:]
	if len(rest) > 0 {
		loadCtx, cancel := context.WithCancel(e.ctx)
		e.loadCancel = cancel
		e.loaders.Add(1)
		go e.loadRemaining(loadCtx, epoch, model.CloneTracks(rest))
	}
	return nil
}

// loadRemaining 后台逐首解析剩余歌曲并追加到子系统队列
// 每次追加前都检查 epoch，保证过期的加载不会污染新队列
func (e *Engine) loadRemaining(ctx context.Context, epoch uint64, rest []model.Track) {
	defer e.loaders.Done()

	var failed []string
	for _, t := range rest {
		if !e.isCurrent(epoch) {
			return
		}

		url, err := e.resolver.Resolve(ctx, t)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("[Engine] 后台解析失败，跳过",
				logger.String("track", t.ID),
				logger.String("title", t.Title),
				logger.ErrorField(err))
			failed = append(failed, t.ID)
			continue
		}

		e.mu.Lock()
		if e.epoch != epoch {
			e.mu.Unlock()
			return
		}
		err = e.player.Add(NewItem(t, url))
		e.mu.Unlock()
		if err != nil {
			logger.Warn("[Engine] 追加到播放器失败", logger.String("track", t.ID), logger.ErrorField(err))
			failed = append(failed, t.ID)
		}
	}

	if len(failed) > 0 {
		e.prune(epoch, failed)
	}
}

// prune 从内部队列和还原快照中移除解析失败的歌曲
func (e *Engine) prune(epoch uint64, ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch {
		return
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := make([]model.Track, 0, len(e.tracks))
	newIndex := -1
	for i, t := range e.tracks {
		if i == e.currentIndex {
			newIndex = len(kept)
			kept = append(kept, t)
			continue
		}
		if _, ok := drop[t.ID]; ok {
			continue
		}
		kept = append(kept, t)
	}
	e.tracks = kept
	e.currentIndex = newIndex

	currentID := ""
	if newIndex >= 0 {
		currentID = kept[newIndex].ID
	}
	original := make([]model.Track, 0, len(e.original))
	for _, t := range e.original {
		if _, ok := drop[t.ID]; ok && t.ID != currentID {
			continue
		}
		original = append(original, t)
	}
	e.original = original

	logger.Warn("[Engine] 队列部分歌曲不可用，已移除",
		logger.Strings("tracks", ids),
		logger.Int("remaining", len(kept)))

	queue := model.CloneTracks(kept)
	e.store.Update(func(s *model.PlaybackState) {
		s.Queue = queue
		s.CurrentIndex = newIndex
	})
}

// clearQueue 播放器已被重置但新队列未能开始时调用，使内部队列与播放器保持一致
// 随机与循环设置保留，调用方需持有 mu
func (e *Engine) clearQueue() {
	e.tracks = nil
	e.original = nil
	e.currentIndex = -1
	e.store.Update(func(s *model.PlaybackState) {
		s.IsLoading = false
		s.IsPlaying = false
		s.CurrentTrack = nil
		s.CurrentIndex = -1
		s.Queue = []model.Track{}
		s.PositionMs = 0
		s.DurationMs = 0
	})
}

// advance 使之前的所有操作失效，调用方需持有 mu
func (e *Engine) advance() uint64 {
	e.epoch++
	if e.loadCancel != nil {
		e.loadCancel()
		e.loadCancel = nil
	}
	return e.epoch
}

func (e *Engine) isCurrent(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch == epoch
}

// TogglePlayPause 播放/暂停切换
func (e *Engine) TogglePlayPause() error {
	if e.store.Snapshot().IsPlaying {
		return e.Pause()
	}
	return e.Resume()
}

// Pause 暂停
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.player.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	e.store.Update(func(s *model.PlaybackState) {
		s.IsPlaying = false
	})
	return nil
}

// Resume 继续播放，队列为空时不做任何事
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tracks) == 0 {
		return nil
	}
	if err := e.player.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	e.store.Update(func(s *model.PlaybackState) {
		s.IsPlaying = true
	})
	return nil
}

// SeekTo 跳转到指定位置
func (e *Engine) SeekTo(position time.Duration) error {
	if position < 0 {
		position = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.player.SeekTo(position); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	e.store.Update(func(s *model.PlaybackState) {
		s.PositionMs = position.Milliseconds()
	})
	return nil
}

// SkipNext 下一首；在队尾时仅在列表循环下回到开头
func (e *Engine) SkipNext() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, n := e.player.ActiveIndex(), e.player.Len()
	switch {
	case n == 0:
		return nil
	case idx >= 0 && idx < n-1:
		return e.player.SkipToNext()
	case e.repeat == model.RepeatAll:
		return e.restartAt(0)
	default:
		return nil
	}
}

// SkipPrevious 上一首；在队首时仅在列表循环下跳到末尾
func (e *Engine) SkipPrevious() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, n := e.player.ActiveIndex(), e.player.Len()
	switch {
	case n == 0:
		return nil
	case idx > 0:
		return e.player.SkipToPrevious()
	case e.repeat == model.RepeatAll:
		return e.restartAt(n - 1)
	default:
		return nil
	}
}

// restartAt 调用方需持有 mu
func (e *Engine) restartAt(index int) error {
	if err := e.player.SkipTo(index); err != nil {
		return fmt.Errorf("skip to %d: %w", index, err)
	}
	if err := e.player.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	e.store.Update(func(s *model.PlaybackState) {
		s.IsPlaying = true
	})
	return nil
}

// SetShuffle 开启时保留当前歌曲在首位并打乱其余部分；
// 关闭时还原为最近一次 PlayQueue 的顺序。
// 只影响内部队列，不重建子系统队列。
func (e *Engine) SetShuffle(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enabled == e.shuffle {
		return
	}

	if len(e.tracks) > 0 {
		current := e.tracks[0]
		if e.currentIndex >= 0 && e.currentIndex < len(e.tracks) {
			current = e.tracks[e.currentIndex]
		}

		if enabled {
			e.tracks = shuffleKeepingCurrent(e.tracks, e.currentIndex, e.rng)
			e.currentIndex = 0
		} else {
			e.tracks = model.CloneTracks(e.original)
			e.currentIndex = indexOf(e.tracks, current.ID)
			if e.currentIndex < 0 {
				e.currentIndex = 0
			}
		}
	}
	e.shuffle = enabled

	queue := model.CloneTracks(e.tracks)
	index := e.currentIndex
	e.store.Update(func(s *model.PlaybackState) {
		s.ShuffleEnabled = enabled
		if len(queue) > 0 {
			s.Queue = queue
			s.CurrentIndex = index
		}
	})
	logger.Debug("[Engine] 随机播放切换", logger.Bool("enabled", enabled))
}

// SetRepeatMode 设置循环模式并同步到子系统
func (e *Engine) SetRepeatMode(mode model.RepeatMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.player.SetRepeatMode(PrimitiveFor(mode)); err != nil {
		return fmt.Errorf("set repeat mode: %w", err)
	}
	e.repeat = mode
	e.store.Update(func(s *model.PlaybackState) {
		s.RepeatMode = mode
	})
	return nil
}

// Stop 停止播放并清空队列，循环模式保留，随机播放关闭
// 同时使所有进行中的 PlayQueue 与后台加载失效
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.advance()
	err := e.player.Reset()

	e.tracks = nil
	e.original = nil
	e.currentIndex = -1
	e.shuffle = false

	next := model.InitialPlaybackState()
	next.RepeatMode = e.repeat
	e.store.Replace(next)

	if err != nil {
		return fmt.Errorf("reset player: %w", err)
	}
	return nil
}

// HandleEvent 处理子系统事件
func (e *Engine) HandleEvent(ev Event) {
	switch ev.Type {
	case EventActiveTrackChanged:
		e.onActiveTrackChanged(ev)
	case EventStateChanged:
		e.onStateChanged(ev)
	case EventProgress:
		e.onProgress(ev)
	case EventQueueEnded:
		e.onQueueEnded()
	default:
		logger.Debug("[Engine] 忽略未知事件", logger.String("type", string(ev.Type)))
	}
}

func (e *Engine) onActiveTrackChanged(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tracks) == 0 || (ev.Item == nil && ev.Index < 0) {
		return
	}

	track, strategy, ok := reconcile(ev, e.tracks)
	if !ok {
		var id, title string
		if ev.Item != nil {
			id, title = ev.Item.ID, ev.Item.Title
		}
		logger.Warn("[Engine] 无法匹配子系统当前歌曲",
			logger.Int("index", ev.Index),
			logger.String("id", id),
			logger.String("title", title))
		return
	}

	index := indexOf(e.tracks, track.ID)
	if index >= 0 {
		e.currentIndex = index
	} else {
		logger.Debug("[Engine] 当前歌曲不在内部队列中", logger.String("track", track.ID))
		index = e.currentIndex
	}

	logger.Debug("[Engine] 切换歌曲",
		logger.String("track", track.ID),
		logger.String("strategy", strategy),
		logger.Int("index", index))

	e.store.Update(func(s *model.PlaybackState) {
		s.CurrentTrack = &track
		s.CurrentIndex = index
		s.PositionMs = 0
		s.DurationMs = int64(track.DurationSeconds * 1000)
	})
}

func (e *Engine) onStateChanged(ev Event) {
	playing := ev.Status == StatusPlaying
	loading := ev.Status == StatusBuffering || ev.Status == StatusLoading

	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Update(func(s *model.PlaybackState) {
		s.IsPlaying = playing
		s.IsLoading = loading
	})
}

func (e *Engine) onProgress(ev Event) {
	e.store.Update(func(s *model.PlaybackState) {
		s.PositionMs = ev.Position.Milliseconds()
		if ev.Duration > 0 {
			s.DurationMs = ev.Duration.Milliseconds()
		}
	})
}

func (e *Engine) onQueueEnded() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.repeat == model.RepeatAll && len(e.tracks) > 0 && e.player.Len() > 0 {
		if err := e.restartAt(0); err != nil {
			logger.Error("[Engine] 列表循环重新开始失败", logger.ErrorField(err))
		}
		return
	}

	e.store.Update(func(s *model.PlaybackState) {
		s.IsPlaying = false
	})
}
