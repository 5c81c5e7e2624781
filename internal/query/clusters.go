package query

import (
	"context"
	"net/http"

	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/httputil"
	"github.com/go-sod/weld/pkg/geom"
)

type clustersResponse struct {
	EntityID string               `json:"entity"`
	BBox     geom.Box             `json:"bbox"`
	Clusters []dispatcher.Cluster `json:"clusters"`
}

// NewClustersHandler serves GET /clusters?entity=<id>.
func NewClustersHandler(cfg *Config, querier dispatcher.Querier) (http.Handler, error) {
	return &clustersHandler{
		cfg:     cfg,
		querier: querier,
	}, nil
}

type clustersHandler struct {
	querier dispatcher.Querier
	cfg     *Config
}

func (h *clustersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	if r.Method != http.MethodGet {
		httputil.RespError(ctx, w, http.StatusMethodNotAllowed, `{"error": "method %v is not allowed"}`, r.Method)
		return
	}
	entityID := r.URL.Query().Get("entity")
	if entityID == "" {
		httputil.RespBadRequest(ctx, w, `{"error": "entity must not be empty"}`)
		return
	}

	clusters, err := h.querier.Clusters(ctx, entityID)
	if err != nil {
		respQueryErr(ctx, w, err)
		return
	}
	box, err := h.querier.BBox(entityID)
	if err != nil {
		respQueryErr(ctx, w, err)
		return
	}

	httputil.RespJSON(ctx, w, http.StatusOK, clustersResponse{
		EntityID: entityID,
		BBox:     box,
		Clusters: clusters,
	})
}
