// Package query serves range searches and cluster snapshots of entity indexes.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/httputil"
	"github.com/go-sod/weld/pkg/geom"
)

const maxBodyBytes = 1024 * 1024

type request struct {
	EntityID string     `json:"entity"`
	Boxes    []geom.Box `json:"boxes"`
	// scales every box about its center, values <= 0 mean 1
	Scale float64 `json:"scale"`
}

type result struct {
	Box    geom.Box    `json:"box"`
	Points []geom.Vec3 `json:"points"`
}

type response struct {
	EntityID string   `json:"entity"`
	Results  []result `json:"results"`
}

func NewHandler(cfg *Config, querier dispatcher.Querier) (http.Handler, error) {
	return &handler{
		cfg:     cfg,
		querier: querier,
	}, nil
}

type handler struct {
	querier dispatcher.Querier
	cfg     *Config
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	if !httputil.CheckJSONRequest(ctx, w, r, http.MethodPost) {
		return
	}

	defer r.Body.Close()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	d := json.NewDecoder(r.Body)
	if err := d.Decode(&req); err != nil {
		httputil.DecodeErr(ctx, w, err)
		return
	}

	if len(req.Boxes) == 0 {
		httputil.RespBadRequest(ctx, w, `{"error": "boxes must not be empty"}`)
		return
	}
	if len(req.Boxes) > h.cfg.MaxBoxes {
		httputil.RespBadRequest(ctx, w, `{"error": "boxes is too large, max allowed len is %d"}`, h.cfg.MaxBoxes)
		return
	}

	results := make([]result, len(req.Boxes))
	errGrp, grpCtx := errgroup.WithContext(ctx)
	for i, box := range req.Boxes {
		i, box := i, box
		errGrp.Go(func() error {
			points, err := h.querier.Query(grpCtx, req.EntityID, box, req.Scale)
			if err != nil {
				return fmt.Errorf("query box %d: %w", i, err)
			}
			if points == nil {
				points = []geom.Vec3{}
			}
			results[i] = result{Box: box, Points: points}
			return nil
		})
	}
	if err := errGrp.Wait(); err != nil {
		respQueryErr(ctx, w, err)
		return
	}

	httputil.RespJSON(ctx, w, http.StatusOK, response{EntityID: req.EntityID, Results: results})
}

func respQueryErr(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, dispatcher.ErrEntityNotFound) {
		httputil.RespErrorJSON(ctx, w, http.StatusNotFound, err)
		return
	}
	httputil.RespInternalError(ctx, w, `{"error": "query processing error, %v"}`, err)
}
