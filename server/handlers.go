package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"SyncFM/core/playback"
	"SyncFM/display"
	"SyncFM/logger"

	"github.com/gorilla/mux"
)

type statusResponse struct {
	Engine  playback.Snapshot `json:"engine"`
	Display *display.Status   `json:"display,omitempty"`
}

type offsetRequest struct {
	Offset *float64 `json:"offset"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("编码响应失败", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

// commandStatus maps an engine error to an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, playback.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrDisconnected):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// run executes fn on the playback loop and writes the outcome.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, fn func() error) {
	var cmdErr error
	if err := h.loop.Call(r.Context(), func() { cmdErr = fn() }); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if cmdErr != nil {
		writeError(w, commandStatus(cmdErr), cmdErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// StatusHandler 返回当前播放状态
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if err := h.loop.Call(r.Context(), func() { resp.Engine = h.engine.Snapshot() }); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if h.status != nil {
		s := h.status.Status()
		resp.Display = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResumeHandler is the play button.
func (h *Handler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.engine.RequestResume)
}

// PendingHandler 请求重播(1)或跳过(-1)
func (h *Handler) PendingHandler(w http.ResponseWriter, r *http.Request) {
	value, err := strconv.Atoi(mux.Vars(r)["value"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.run(w, r, func() error { return h.engine.SendPending(value) })
}

// ScoreHandler 为当前歌曲评分
func (h *Handler) ScoreHandler(w http.ResponseWriter, r *http.Request) {
	value, err := strconv.Atoi(mux.Vars(r)["value"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.run(w, r, func() error { return h.engine.SendScore(value) })
}

// LyricOffsetHandler 调整歌词偏移
func (h *Handler) LyricOffsetHandler(w http.ResponseWriter, r *http.Request) {
	var req offsetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Offset == nil {
		writeError(w, http.StatusBadRequest, errors.New("offset is required"))
		return
	}
	offset := *req.Offset
	h.run(w, r, func() error {
		h.engine.SetLyricOffset(offset)
		return nil
	})
}
