package collect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/httputil"
	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/internal/point/model"
	"github.com/go-sod/weld/pkg/geom"
)

const maxBodyBytes = 64 * 1024 * 1024

type request struct {
	EntityID string      `json:"entity"`
	Points   []geom.Vec3 `json:"points"`
	// optional, the time of receipt when zero
	CreatedAt time.Time `json:"createdAt"`
}

func NewHandler(cfg *Config, collector dispatcher.Collector) (http.Handler, error) {
	s := &handler{
		collector: collector,
		cfg:       cfg,
	}
	return s, nil
}

type handler struct {
	collector dispatcher.Collector
	cfg       *Config
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()
	logger := logging.FromContext(ctx)

	if !httputil.CheckJSONRequest(ctx, w, r, http.MethodPost) {
		return
	}

	defer r.Body.Close()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	d := json.NewDecoder(r.Body)
	d.DisallowUnknownFields()
	if err := d.Decode(&req); err != nil {
		httputil.DecodeErr(ctx, w, err)
		return
	}

	if req.EntityID == "" {
		httputil.RespBadRequest(ctx, w, `{"error": "entity must not be empty"}`)
		return
	}
	if len(req.Points) > h.cfg.MaxPoints {
		httputil.RespBadRequest(ctx, w, `{"error": "too many points, max allowed len is %d"}`, h.cfg.MaxPoints)
		return
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	points := make([]model.Point, len(req.Points))
	for i, vec := range req.Points {
		if !vec.IsFinite() {
			httputil.RespBadRequest(ctx, w, `{"error": "point %d has a non finite coordinate"}`, i)
			return
		}
		points[i] = model.NewPoint(req.EntityID, vec, createdAt)
	}

	if err := h.collector.Collect(points...); err != nil {
		if errors.Is(err, dispatcher.ErrShuttingDown) {
			httputil.RespErrorJSON(ctx, w, http.StatusServiceUnavailable, err)
			return
		}
		httputil.RespInternalError(ctx, w, `{"error": "collect: %v"}`, err)
		return
	}

	logger.Debugf("collected %d points for entity %s", len(points), req.EntityID)
	httputil.RespJSON(ctx, w, http.StatusOK, map[string]interface{}{"status": "ok", "accepted": len(points)})
}
