// backend/src/handlers/holdings_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/engine"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/security/validation"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/utils"
)

const maxBodyBytes = 1 << 20

type HoldingsHandler struct {
	engine *engine.Engine
}

func NewHoldingsHandler(e *engine.Engine) *HoldingsHandler {
	return &HoldingsHandler{engine: e}
}

// viewFromQuery reads a ViewState from the query string. Without a
// portfolio_id the overall view is selected.
func viewFromQuery(r *http.Request) (models.ViewState, error) {
	q := r.URL.Query()
	v := models.ViewState{
		Mode: models.ViewOverall,
		Filters: models.Filters{
			Category:    validation.StripUnprintable(strings.TrimSpace(q.Get("category"))),
			Institution: validation.StripUnprintable(strings.TrimSpace(q.Get("institution"))),
			TickerQuery: validation.StripUnprintable(strings.TrimSpace(q.Get("q"))),
			Tag:         models.TagName(strings.TrimSpace(q.Get("tag"))),
		},
		SortKey:        q.Get("sort"),
		SortDirection:  models.SortDirection(q.Get("direction")),
		GroupDimension: models.GroupDimension(q.Get("group")),
		Metric:         models.Metric(q.Get("metric")),
	}

	if pidStr := q.Get("portfolio_id"); pidStr != "" {
		pid, err := strconv.ParseInt(pidStr, 10, 64)
		if err != nil || pid <= 0 {
			return v, fmt.Errorf("%w: portfolio_id must be a positive integer", validation.ErrValidationFailed)
		}
		v.Mode = models.ViewPerPortfolio
		v.PortfolioID = pid
	}
	for field, value := range map[string]string{
		"category":    v.Filters.Category,
		"institution": v.Filters.Institution,
		"q":           v.Filters.TickerQuery,
		"tag":         string(v.Filters.Tag),
	} {
		if err := validation.ValidateStringMaxLength(value, validation.DefaultMaxStringLength, field); err != nil {
			return v, err
		}
	}
	return v, nil
}

// applyView switches the engine to the requested view. A load superseded by
// a newer request still answers with whatever view is current.
func (h *HoldingsHandler) applyView(w http.ResponseWriter, r *http.Request) bool {
	view, err := viewFromQuery(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	applied, err := h.engine.SetView(r.Context(), view)
	if err != nil {
		sendError(w, r, err, "Failed to load holdings")
		return false
	}
	if !applied {
		logger.FromContext(r.Context()).Debug("View request superseded by a newer one")
	}
	return true
}

func (h *HoldingsHandler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	if !h.applyView(w, r) {
		return
	}
	utils.SendJSON(w, h.engine.ViewModel(), http.StatusOK)
}

func (h *HoldingsHandler) HandleGetOperations(w http.ResponseWriter, r *http.Request) {
	if !h.applyView(w, r) {
		return
	}
	utils.SendJSON(w, h.engine.ViewModel().Operations, http.StatusOK)
}

// metadataRequest edits a holding. Tags, when present, is the complete new
// tag set.
type metadataRequest struct {
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags"`
}

func (h *HoldingsHandler) HandleSaveMetadata(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := strconv.ParseInt(chi.URLParam(r, "portfolioID"), 10, 64)
	if err != nil || portfolioID < 0 {
		utils.SendJSONError(w, "Invalid portfolio ID", http.StatusBadRequest)
		return
	}
	ticker := strings.TrimSpace(chi.URLParam(r, "ticker"))

	var req metadataRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	draft, err := h.engine.BeginEdit(ticker, portfolioID)
	if err != nil {
		sendError(w, r, err, "Failed to edit holding")
		return
	}
	for field, value := range req.Fields {
		if err := draft.SetField(field, value); err != nil {
			sendError(w, r, err, "Failed to edit holding")
			return
		}
	}
	if req.Tags != nil {
		draft.ClearTags()
		for _, name := range req.Tags {
			if err := draft.Attach(name); err != nil {
				sendError(w, r, err, "Failed to edit holding")
				return
			}
		}
	}

	if err := h.engine.SaveMetadata(r.Context(), draft); err != nil {
		sendError(w, r, err, "Failed to save holding metadata")
		return
	}
	utils.SendJSON(w, h.engine.ViewModel(), http.StatusOK)
}
