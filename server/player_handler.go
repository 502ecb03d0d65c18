package server

import (
	"errors"
	"net/http"
	"time"

	"Bt1QPlayer/core/player"
	"Bt1QPlayer/core/resolver"
	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"

	"github.com/gorilla/mux"
)

type playQueueRequest struct {
	Tracks     []model.Track `json:"tracks"`
	StartIndex int           `json:"startIndex"`
}

type seekRequest struct {
	PositionMs int64 `json:"positionMs"`
}

type shuffleRequest struct {
	Enabled bool `json:"enabled"`
}

type repeatRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.playback.Snapshot())
}

// handlePlayQueue 首曲解析完成后返回，其余歌曲在后台加载
func (s *Server) handlePlayQueue(w http.ResponseWriter, r *http.Request) {
	var req playQueueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := s.playback.PlayQueue(r.Context(), req.Tracks, req.StartIndex)
	if errors.Is(err, player.ErrEmptyQueue) || errors.Is(err, player.ErrIndexOutOfRange) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Error("[Server] 播放队列失败", logger.ErrorField(err))
		http.Error(w, "Failed to start playback", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.playback.Snapshot())
}

func (s *Server) handlePlaySong(w http.ResponseWriter, r *http.Request) {
	var track model.Track
	if err := decodeJSON(w, r, &track); err != nil || track.ID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.playback.PlaySong(r.Context(), track); err != nil {
		logger.Error("[Server] 播放歌曲失败", logger.String("track", track.ID), logger.ErrorField(err))
		http.Error(w, "Failed to start playback", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.playback.Snapshot())
}

// command 包装无参数的播放命令
func (s *Server) command(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			logger.Error("[Server] 播放命令失败", logger.String("path", r.URL.Path), logger.ErrorField(err))
			http.Error(w, "Player command failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, s.playback.Snapshot())
	}
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeJSON(w, r, &req); err != nil || req.PositionMs < 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.command(func() error {
		return s.playback.SeekTo(time.Duration(req.PositionMs) * time.Millisecond)
	})(w, r)
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	var req shuffleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.playback.SetShuffle(req.Enabled)
	writeJSON(w, http.StatusOK, s.playback.Snapshot())
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	var req repeatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	mode, err := model.ParseRepeatMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.command(func() error {
		return s.playback.SetRepeatMode(mode)
	})(w, r)
}

// handleResolve 解析单曲播放地址，不影响播放队列
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	src, err := model.ParseSource(vars["source"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	track := model.Track{ID: vars["id"], Source: src}
	url, err := s.resolver.Resolve(r.Context(), track)
	if errors.Is(err, resolver.ErrUnresolvable) {
		http.Error(w, "No playable URL found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     track.ID,
		"source": string(src),
		"url":    url,
	})
}
