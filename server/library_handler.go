package server

import (
	"net/http"
	"strconv"

	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"

	"github.com/gorilla/mux"
)

type preferenceRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleListLiked(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	liked, err := s.library.ListLiked(r.Context(), limit, offset)
	if err != nil {
		logger.Error("[Server] 获取收藏列表失败", logger.ErrorField(err))
		http.Error(w, "Failed to list liked tracks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, liked)
}

// handleLike 收藏歌曲，请求体可携带完整的歌曲信息
func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	src, err := model.ParseSource(vars["source"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var track model.Track
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &track); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	track.ID = vars["id"]
	track.Source = src

	if err := s.library.Like(r.Context(), &track); err != nil {
		logger.Error("[Server] 收藏失败", logger.String("track", track.ID), logger.ErrorField(err))
		http.Error(w, "Failed to like track", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": track.ID, "source": src, "liked": true})
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	src, err := model.ParseSource(vars["source"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.library.Unlike(r.Context(), vars["id"], src); err != nil {
		logger.Error("[Server] 取消收藏失败", logger.String("track", vars["id"]), logger.ErrorField(err))
		http.Error(w, "Failed to unlike track", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": vars["id"], "source": src, "liked": false})
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	src, err := s.library.GetMusicSourcePreference(r.Context())
	if err != nil {
		logger.Warn("[Server] 读取音源偏好失败", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, preferenceRequest{Source: string(src)})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	src, err := model.ParseSource(req.Source)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.library.SetMusicSourcePreference(r.Context(), src); err != nil {
		logger.Error("[Server] 保存音源偏好失败", logger.ErrorField(err))
		http.Error(w, "Failed to save preference", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
