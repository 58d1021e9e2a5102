package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/exporter"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/middleware"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// MaxHistoryLimit caps ?limit on the history endpoint.
const MaxHistoryLimit = 5000

// SubscriptionServiceInterface is what the handler needs from the
// subscription service.
type SubscriptionServiceInterface interface {
	Offerings(ctx context.Context) ([]domain.TrackedOffering, error)
	Latest(ctx context.Context, offeringID string) (domain.SubscriptionSnapshot, error)
	History(ctx context.Context, offeringID string, limit int) ([]domain.SubscriptionSnapshot, error)
	Normalize(ctx context.Context, o domain.Offering, rows []domain.RawRow) (dataprocessing.Result, error)
}

// SubscriptionHandler serves offerings and their snapshots.
type SubscriptionHandler struct {
	service      SubscriptionServiceInterface
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	writeExport  func(io.Writer, exporter.Format, []domain.SubscriptionSnapshot) error
}

// NewSubscriptionHandler creates a subscription handler
func NewSubscriptionHandler(service SubscriptionServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:      service,
		validation:   middleware.NewValidationMiddleware(logger, errorHandler),
		query:        middleware.NewQueryParamValidator(errorHandler),
		logger:       logger.With(slog.String("component", "subscription_handler")),
		errorHandler: errorHandler,
		writeExport:  exporter.Write,
	}
}

// Routes returns the offering routes.
func (h *SubscriptionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListOfferings)
	r.Route("/{offeringID}", func(r chi.Router) {
		r.Use(h.OfferingCtx)
		r.Get("/latest", h.GetLatest)
		r.Get("/history", h.GetHistory)
		r.Get("/export.{format}", h.Export)
	})

	return r
}

// OfferingCtx rejects malformed offering ids before any lookup.
func (h *SubscriptionHandler) OfferingCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "offeringID")
		if !middleware.ValidOfferingID(id) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("offering_id",
				"offering_id must be a lower-case slug such as acme_infra_ltd"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListOfferings handles GET /api/offerings
func (h *SubscriptionHandler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	offerings, err := h.service.Offerings(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list offerings",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if offerings == nil {
		offerings = []domain.TrackedOffering{}
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   offerings,
		"count":  len(offerings),
	})
}

// GetLatest handles GET /api/offerings/{offeringID}/latest
func (h *SubscriptionHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "offeringID")

	snap, err := h.service.Latest(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   snap,
	})
}

// GetHistory handles GET /api/offerings/{offeringID}/history
func (h *SubscriptionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "offeringID")
	limit, ok := h.query.ValidateInt(w, r, "limit", 0, MaxHistoryLimit, 0)
	if !ok {
		return
	}

	snaps, err := h.service.History(r.Context(), id, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if snaps == nil {
		snaps = []domain.SubscriptionSnapshot{}
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   snaps,
		"count":  len(snaps),
	})
}

// Export handles GET /api/offerings/{offeringID}/export.{csv|xlsx}
func (h *SubscriptionHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "offeringID")
	format, err := exporter.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", "format must be csv or xlsx"))
		return
	}

	snaps, err := h.service.History(r.Context(), id, 0)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(snaps) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrSnapshotNotFound.WithDetails(map[string]string{"offering_id": id}))
		return
	}

	// Buffer so a failed export still gets a problem response.
	var buf bytes.Buffer
	if err := h.writeExport(&buf, format, snaps); err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("offering_id", id),
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.ErrExportFailed.WithDetails(map[string]string{
			"offering_id": id,
			"format":      string(format),
		}))
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", id, time.Now().In(storage.IST).Format("20060102"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// NormalizeRequest is the body of POST /api/normalize. Exactly one of
// Rows (HTML-table cells) or Records (JSON-API records) is expected.
type NormalizeRequest struct {
	Offering NormalizeOffering  `json:"offering"`
	Rows     [][]string         `json:"rows" validate:"required_without=Records"`
	Records  []domain.APIRecord `json:"records" validate:"required_without=Rows"`
}

// NormalizeOffering identifies the offering the rows belong to. ID
// defaults to the slug of Name and Board to mainboard.
type NormalizeOffering struct {
	ID       string          `json:"id" validate:"omitempty,offeringid"`
	Name     string          `json:"name" validate:"required,max=200"`
	Exchange domain.Exchange `json:"exchange" validate:"required,oneof=BSE NSE"`
	Board    domain.Board    `json:"board" validate:"omitempty,oneof=mainboard SME"`
}

// NormalizeResponse carries the snapshot and per-row diagnostics.
type NormalizeResponse struct {
	Snapshot    domain.SubscriptionSnapshot `json:"snapshot"`
	Diagnostics dataprocessing.Diagnostics  `json:"diagnostics"`
}

// Normalize handles POST /api/normalize
func (h *SubscriptionHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if !h.validation.DecodeAndValidate(w, r, &req) {
		return
	}

	o := domain.Offering{
		ID:       req.Offering.ID,
		Name:     req.Offering.Name,
		Exchange: req.Offering.Exchange,
		Board:    req.Offering.Board,
	}
	if o.ID == "" {
		o.ID = domain.Slug(o.Name)
	}
	if o.Board == "" {
		o.Board = domain.BoardMainboard
	}

	rows := dataprocessing.RowsFromCells(req.Rows)
	if len(req.Records) > 0 {
		rows = dataprocessing.RowsFromRecords(req.Records)
	}

	res, err := h.service.Normalize(r.Context(), o, rows)
	if err != nil {
		h.logger.InfoContext(r.Context(), "normalize produced no snapshot",
			slog.String("offering_id", o.ID),
			slog.Int("rows", res.Diagnostics.Rows),
			slog.Int("unclassified", len(res.Diagnostics.Unclassified)))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, NormalizeResponse{Snapshot: res.Snapshot, Diagnostics: res.Diagnostics})
}
