package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/engine"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/utils"
)

// NotFound answers unknown API paths with a JSON error.
func NotFound(w http.ResponseWriter, r *http.Request) {
	utils.SendJSONError(w, "Not found", http.StatusNotFound)
}

// Routes builds the /api subtree. local may be nil, in which case the
// import routes are not registered.
func Routes(eng *engine.Engine, local LocalStore) chi.Router {
	holdingsHandler := NewHoldingsHandler(eng)
	tagsHandler := NewTagsHandler(eng)
	refreshHandler := NewRefreshHandler(eng)

	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.Get("/view", holdingsHandler.HandleGetView)
	r.Get("/operations", holdingsHandler.HandleGetOperations)
	r.Put("/holdings/{portfolioID}/{ticker}/metadata", holdingsHandler.HandleSaveMetadata)

	r.Get("/tags", tagsHandler.HandleListTags)
	r.Post("/tags", tagsHandler.HandleCreateTag)
	r.Delete("/tags/{name}", tagsHandler.HandleDeleteTag)

	r.Post("/refresh", refreshHandler.HandleStartRefresh)
	r.Get("/refresh", refreshHandler.HandleGetRefresh)
	r.Delete("/refresh", refreshHandler.HandleCancelRefresh)

	if local != nil {
		importHandler := NewImportHandler(local)
		r.Post("/holdings", importHandler.HandleImportHoldings)
		r.Post("/operations", importHandler.HandleImportOperations)
		r.Post("/prices", importHandler.HandleSavePrices)
	}
	return r
}
