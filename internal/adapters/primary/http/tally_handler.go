package http

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/ticket-tally/internal/adapters/primary/http/middleware"
	"github.com/lorrc/ticket-tally/internal/adapters/primary/validation"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/ports"
	"github.com/lorrc/ticket-tally/internal/core/services"
	"github.com/lorrc/ticket-tally/internal/export"
)

// TallyHandler serves the JSON API for the daily tally.
type TallyHandler struct {
	tallyService ports.TallyService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTallyHandler creates a new tally handler
func NewTallyHandler(
	tallyService ports.TallyService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TallyHandler {
	return &TallyHandler{
		tallyService: tallyService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "tally"),
	}
}

// RegisterRoutes sets up the tally endpoints. writeGuards wrap only the
// routes that change the store.
func (h *TallyHandler) RegisterRoutes(r chi.Router, writeGuards ...func(http.Handler) http.Handler) {
	r.Get("/", h.HandleListRecords)
	r.Get("/defaults", h.HandleGetDefaults)
	r.Get("/export", h.HandleExport)
	r.Get("/summary", h.HandleSummary)

	r.Group(func(r chi.Router) {
		r.Use(writeGuards...)
		r.Put("/", h.HandleSubmit)
	})
}

// --- Request/Response DTOs ---

// SubmitRequest defines the expected JSON body for a daily submission.
type SubmitRequest struct {
	Date   string         `json:"date"`
	Counts map[string]any `json:"counts"`
}

// Validate checks the request shape. Count values are validated by the service.
func (r *SubmitRequest) Validate() error {
	v := validation.NewValidator()

	v.Date("date", r.Date)
	v.Custom("counts", r.Counts != nil, "This field is required")

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// RecordsDTO is the JSON form of a RecordSet.
type RecordsDTO struct {
	Columns        []string   `json:"columns"`
	Rows           [][]string `json:"rows"`
	Count          int        `json:"count"`
	DuplicateDates []string   `json:"duplicateDates"`
}

func toRecordsDTO(records *domain.RecordSet) RecordsDTO {
	dups := records.DuplicateDates()
	if dups == nil {
		dups = []string{}
	}
	return RecordsDTO{
		Columns:        records.Columns,
		Rows:           records.Table(),
		Count:          records.Len(),
		DuplicateDates: dups,
	}
}

// DefaultsDTO is the JSON form of the values the entry form starts with.
type DefaultsDTO struct {
	Date     string         `json:"date"`
	Counts   map[string]int `json:"counts"`
	Exists   bool           `json:"exists"`
	Position int            `json:"position,omitempty"`
}

// SubmitResponseDTO describes the write a submission performed.
type SubmitResponseDTO struct {
	Action   string            `json:"action"`
	Position int               `json:"position"`
	Date     string            `json:"date"`
	Row      map[string]string `json:"row"`
	Records  RecordsDTO        `json:"records"`
}

// --- Handlers ---

// HandleListRecords handles GET /tally
func (h *TallyHandler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.tallyService.Records(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, toRecordsDTO(records))
}

// HandleGetDefaults handles GET /tally/defaults?date=
func (h *TallyHandler) HandleGetDefaults(w http.ResponseWriter, r *http.Request) {
	date := validation.ParseStringQueryParam(r, "date")

	v := validation.NewValidator()
	v.Date("date", date)
	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	view, _, err := h.tallyService.Defaults(r.Context(), date)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, DefaultsDTO{
		Date:     view.Date,
		Counts:   view.Counts,
		Exists:   view.Exists,
		Position: view.Position,
	})
}

// HandleSubmit handles PUT /tally
func (h *TallyHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[SubmitRequest](r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.tallyService.Submit(r.Context(), ports.SubmitParams{
		Date:        req.Date,
		Values:      req.Counts,
		SubmittedBy: mw.Operator(r.Context()),
	})
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	status := http.StatusOK
	if result.Action == services.ActionAppend {
		status = http.StatusCreated
	}
	WriteJSON(w, status, SubmitResponseDTO{
		Action:   result.Action,
		Position: result.Position,
		Date:     result.Date,
		Row:      result.Row,
		Records:  toRecordsDTO(result.Records),
	})
}

// HandleExport handles GET /tally/export
func (h *TallyHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	records, err := h.tallyService.Records(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	// Render fully before sending headers so a failure still gets a JSON error.
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, records); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(h.tallyService.Today())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleSummary handles GET /tally/summary
func (h *TallyHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tallyService.Summary(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteSuccess(w, summary)
}
