// backend/src/handlers/tags_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/engine"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/utils"
)

type TagsHandler struct {
	engine *engine.Engine
}

func NewTagsHandler(e *engine.Engine) *TagsHandler {
	return &TagsHandler{engine: e}
}

func (h *TagsHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.engine.Tags(), http.StatusOK)
}

func (h *TagsHandler) HandleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	name, err := h.engine.CreateTag(r.Context(), req.Name)
	if err != nil {
		sendError(w, r, err, "Failed to create tag")
		return
	}
	utils.SendJSON(w, map[string]string{"name": string(name)}, http.StatusCreated)
}

func (h *TagsHandler) HandleDeleteTag(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		utils.SendJSONError(w, "Invalid tag name", http.StatusBadRequest)
		return
	}
	if err := h.engine.DeleteTag(r.Context(), name); err != nil {
		sendError(w, r, err, "Failed to delete tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
