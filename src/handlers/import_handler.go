// backend/src/handlers/import_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/store"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/utils"
)

// LocalStore is the write side of the SQLite store. It is only available
// when no remote holdings API is configured.
type LocalStore interface {
	UpsertHolding(ctx context.Context, h models.RawHolding) error
	InsertOperation(ctx context.Context, op models.RawOperation) (string, error)
	SavePrice(ctx context.Context, p store.DailyPrice) error
}

type ImportHandler struct {
	store LocalStore
}

func NewImportHandler(s LocalStore) *ImportHandler {
	return &ImportHandler{store: s}
}

func decodeList[T any](w http.ResponseWriter, r *http.Request) ([]T, bool) {
	var items []T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		utils.SendJSONError(w, "Invalid request body: expected a JSON array", http.StatusBadRequest)
		return nil, false
	}
	return items, true
}

func (h *ImportHandler) HandleImportHoldings(w http.ResponseWriter, r *http.Request) {
	items, ok := decodeList[models.RawHolding](w, r)
	if !ok {
		return
	}
	for _, item := range items {
		if err := h.store.UpsertHolding(r.Context(), item); err != nil {
			sendError(w, r, err, "Failed to store holding")
			return
		}
	}
	logger.FromContext(r.Context()).Info("Holdings imported", "count", len(items))
	utils.SendJSON(w, map[string]int{"imported": len(items)}, http.StatusOK)
}

func (h *ImportHandler) HandleImportOperations(w http.ResponseWriter, r *http.Request) {
	items, ok := decodeList[models.RawOperation](w, r)
	if !ok {
		return
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id, err := h.store.InsertOperation(r.Context(), item)
		if err != nil {
			sendError(w, r, err, "Failed to store operation")
			return
		}
		ids = append(ids, id)
	}
	utils.SendJSON(w, map[string][]string{"ids": ids}, http.StatusOK)
}

// HandleSavePrices feeds the daily price cache the refresh workflow reads.
func (h *ImportHandler) HandleSavePrices(w http.ResponseWriter, r *http.Request) {
	items, ok := decodeList[store.DailyPrice](w, r)
	if !ok {
		return
	}
	for _, p := range items {
		if p.TickerSymbol == "" {
			utils.SendJSONError(w, "ticker is required", http.StatusBadRequest)
			return
		}
		if err := h.store.SavePrice(r.Context(), p); err != nil {
			sendError(w, r, err, "Failed to store price")
			return
		}
	}
	utils.SendJSON(w, map[string]int{"saved": len(items)}, http.StatusOK)
}
