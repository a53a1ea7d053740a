package http

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/ticket-tally/internal/adapters/primary/http/middleware"
	"github.com/lorrc/ticket-tally/internal/adapters/primary/validation"
	"github.com/lorrc/ticket-tally/internal/auth"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
	"github.com/lorrc/ticket-tally/internal/core/services"
)

// DisplayCellLimit caps cell text in the HTML table. Export and the JSON API
// are never truncated.
const DisplayCellLimit = 100

const pageTitle = "Ticket Tracking"

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

var flashMessages = map[string]string{
	services.ActionUpdate: "Existing entry updated.",
	services.ActionAppend: "New entry added.",
}

// PageHandler serves the HTML entry form and history table.
type PageHandler struct {
	tallyService  ports.TallyService
	authenticator *auth.Authenticator
	tokenManager  *auth.TokenManager
	secureCookies bool
	logger        *slog.Logger
}

// PageAuth enables sign-in on the page. Leave it nil to allow anonymous writes.
type PageAuth struct {
	Authenticator *auth.Authenticator
	TokenManager  *auth.TokenManager
	SecureCookies bool
}

// NewPageHandler creates a new page handler
func NewPageHandler(tallyService ports.TallyService, pageAuth *PageAuth, logger *slog.Logger) *PageHandler {
	h := &PageHandler{
		tallyService: tallyService,
		logger:       logger.With("handler", "page"),
	}
	if pageAuth != nil {
		h.authenticator = pageAuth.Authenticator
		h.tokenManager = pageAuth.TokenManager
		h.secureCookies = pageAuth.SecureCookies
	}
	return h
}

// RegisterRoutes sets up the page routes.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandlePage)
	r.Post("/", h.HandleSubmit)
	if h.authEnabled() {
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
	}
}

// --- View model ---

type formField struct {
	ID    string
	Name  string
	Label string
	Value string
	Error string
}

type pageView struct {
	Title       string
	Today       string
	Date        string
	DateError   string
	Fields      []formField
	Columns     []string
	Rows        [][]string
	RowCount    int
	Duplicates  []string
	Flash       string
	StoreError  string
	AuthEnabled bool
	Operator    string
	LoginError  string
}

func (h *PageHandler) newView(r *http.Request) *pageView {
	return &pageView{
		Title:       pageTitle,
		Today:       h.tallyService.Today(),
		Columns:     domain.Columns(),
		AuthEnabled: h.authEnabled(),
		Operator:    mw.Operator(r.Context()),
	}
}

func (v *pageView) setRecords(records *domain.RecordSet) {
	v.Columns = records.Columns
	v.Rows = truncateTable(records.Table(), DisplayCellLimit)
	v.RowCount = records.Len()
	v.Duplicates = records.DuplicateDates()
}

func (v *pageView) setCounts(counts domain.Counts) {
	v.Fields = make([]formField, len(domain.Categories))
	for i, cat := range domain.Categories {
		v.Fields[i] = formField{
			ID:    fmt.Sprintf("category-%d", i),
			Name:  cat,
			Label: domain.CategoryLabels[cat],
			Value: fmt.Sprint(counts[cat]),
		}
	}
}

// --- Handlers ---

// HandlePage handles GET /. The form is seeded from the row for ?date=
// (today when absent), so the values shown always belong to the date the
// form will submit.
func (h *PageHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	view := h.newView(r)
	view.Flash = flashMessages[r.URL.Query().Get("saved")]

	status := http.StatusOK
	day, records, err := h.tallyService.Defaults(r.Context(), r.URL.Query().Get("date"))
	var verrs *apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		status = http.StatusUnprocessableEntity
		view.DateError = verrs.First("date")
		day, records, err = h.tallyService.Defaults(r.Context(), "")
	}
	if err != nil {
		h.renderStoreError(w, r, view, err)
		return
	}

	view.Date = day.Date
	view.setCounts(day.Counts)
	view.setRecords(records)
	h.render(w, r, status, view)
}

// HandleSubmit handles POST /
func (h *PageHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	if h.authEnabled() && mw.Operator(r.Context()) == "" {
		view := h.newView(r)
		view.LoginError = "Sign in to record today's counts."
		h.renderWithDefaults(w, r, http.StatusUnauthorized, view)
		return
	}

	date := r.PostForm.Get("date")
	values := make(map[string]any, len(domain.Categories))
	for _, cat := range domain.Categories {
		if _, ok := r.PostForm[cat]; ok {
			values[cat] = r.PostForm.Get(cat)
		}
	}

	result, err := h.tallyService.Submit(r.Context(), ports.SubmitParams{
		Date:        date,
		Values:      values,
		SubmittedBy: mw.Operator(r.Context()),
	})
	if err != nil {
		var verrs *apperrors.ValidationErrors
		if errors.As(err, &verrs) {
			h.renderValidationErrors(w, r, date, values, verrs)
			return
		}
		h.renderStoreError(w, r, h.newView(r), err)
		return
	}

	back := url.Values{"date": {result.Date}, "saved": {result.Action}}
	http.Redirect(w, r, "/?"+back.Encode(), http.StatusSeeOther)
}

// HandleLogin handles POST /login
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	operator := r.PostForm.Get("operator")
	token, err := h.authenticator.Login(operator, r.PostForm.Get("password"))
	if err != nil {
		h.logger.WarnContext(r.Context(), "page sign-in rejected", "operator", operator)
		view := h.newView(r)
		view.LoginError = "Invalid operator or password."
		h.renderWithDefaults(w, r, http.StatusUnauthorized, view)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     mw.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenManager.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout handles POST /logout
func (h *PageHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     mw.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// --- Rendering ---

func (h *PageHandler) renderWithDefaults(w http.ResponseWriter, r *http.Request, status int, view *pageView) {
	day, records, err := h.tallyService.Defaults(r.Context(), "")
	if err != nil {
		h.renderStoreError(w, r, view, err)
		return
	}
	view.Date = day.Date
	view.setCounts(day.Counts)
	view.setRecords(records)
	h.render(w, r, status, view)
}

// renderValidationErrors re-renders the form with what the operator typed so
// nothing has to be entered twice.
func (h *PageHandler) renderValidationErrors(
	w http.ResponseWriter,
	r *http.Request,
	date string,
	values map[string]any,
	verrs *apperrors.ValidationErrors,
) {
	view := h.newView(r)
	view.Date = date
	view.DateError = verrs.First("date")

	if records, err := h.tallyService.Records(r.Context()); err == nil {
		view.setRecords(records)
	} else {
		h.logger.WarnContext(r.Context(), "failed to read records for form re-render", "error", err)
	}

	view.setCounts(domain.ZeroCounts())
	for i := range view.Fields {
		f := &view.Fields[i]
		if raw, ok := values[f.Name]; ok {
			f.Value = fmt.Sprint(raw)
		}
		f.Error = verrs.First(f.Name)
	}
	h.render(w, r, http.StatusUnprocessableEntity, view)
}

func (h *PageHandler) renderStoreError(w http.ResponseWriter, r *http.Request, view *pageView, err error) {
	status := http.StatusInternalServerError
	view.StoreError = "Something went wrong. Please try again."
	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
		view.StoreError = "The tally store is unavailable. Please try again later."
	}

	h.logger.ErrorContext(r.Context(), "page request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"error", err,
	)

	if view.Fields == nil {
		view.setCounts(domain.ZeroCounts())
	}
	if view.Date == "" {
		view.Date = view.Today
	}
	h.render(w, r, status, view)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, view *pageView) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "page.html", view); err != nil {
		h.logger.ErrorContext(r.Context(), "template error", "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (h *PageHandler) authEnabled() bool {
	return h.authenticator != nil && h.tokenManager != nil
}

// truncateTable shortens every cell to at most limit characters.
func truncateTable(rows [][]string, limit int) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = truncate(cell, limit)
		}
		out[i] = cells
	}
	return out
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
