// backend/src/handlers/refresh_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/engine"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/utils"
)

type RefreshHandler struct {
	engine *engine.Engine
}

func NewRefreshHandler(e *engine.Engine) *RefreshHandler {
	return &RefreshHandler{engine: e}
}

// HandleStartRefresh starts a price refresh for the current view. An empty
// body or ticker list refreshes every held ticker.
func (h *RefreshHandler) HandleStartRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tickers []string `json:"tickers"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status, err := h.engine.StartRefresh(r.Context(), req.Tickers)
	if err != nil {
		sendError(w, r, err, "Failed to start price refresh")
		return
	}
	utils.SendJSON(w, status, http.StatusAccepted)
}

func (h *RefreshHandler) HandleGetRefresh(w http.ResponseWriter, r *http.Request) {
	status, ok := h.engine.RefreshStatus()
	if !ok {
		utils.SendJSONError(w, "No price refresh for the current view", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, status, http.StatusOK)
}

func (h *RefreshHandler) HandleCancelRefresh(w http.ResponseWriter, r *http.Request) {
	if !h.engine.CancelRefresh() {
		utils.SendJSONError(w, "No running price refresh", http.StatusNotFound)
		return
	}
	status, _ := h.engine.RefreshStatus()
	utils.SendJSON(w, status, http.StatusOK)
}
