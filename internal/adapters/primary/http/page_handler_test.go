package http

import (
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/lorrc/ticket-tally/internal/adapters/primary/http/middleware"
	"github.com/lorrc/ticket-tally/internal/auth"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/mocks"
	"github.com/lorrc/ticket-tally/internal/core/services"
)

const testPassword = "correct-horse-battery"

func newPageRouter(t *testing.T, svc *services.TallyService, withAuth bool) stdhttp.Handler {
	t.Helper()

	r := chi.NewRouter()
	var pageAuth *PageAuth
	if withAuth {
		hash, err := auth.HashPassword(testPassword)
		require.NoError(t, err)
		tm := auth.NewTokenManager("test-secret", time.Hour)
		pageAuth = &PageAuth{
			Authenticator: auth.NewAuthenticator(hash, tm),
			TokenManager:  tm,
		}
		r.Use(mw.OptionalJWT(tm))
	}
	NewPageHandler(svc, pageAuth, testLogger()).RegisterRoutes(r)
	return r
}

func postForm(h stdhttp.Handler, target string, form url.Values, cookies ...*stdhttp.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(stdhttp.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPageHandler_RendersDefaultsAndTable(t *testing.T) {
	today := dayRow("2024-01-01", 7)
	today["Other"] = strings.Repeat("y", 150)
	store := mocks.NewMemoryStore(dayRow("2023-12-31", 2), today)
	router := newPageRouter(t, newTestService(store), false)

	rec := doRequest(router, stdhttp.MethodGet, "/", "")

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, `value="2024-01-01"`)
	assert.Contains(t, body, `name="Bank" type="number" min="0" step="1" value="7"`)
	assert.Contains(t, body, domain.CategoryLabels[domain.CategoryMobileNumber])
	assert.Contains(t, body, "Recorded days (2)")
	assert.Contains(t, body, "<td>"+strings.Repeat("y", DisplayCellLimit)+"</td>")
	assert.NotContains(t, body, strings.Repeat("y", DisplayCellLimit+1))
	assert.Contains(t, body, `href="/api/v1/tally/export"`)
}

func TestPageHandler_EmptyStore(t *testing.T) {
	router := newPageRouter(t, newTestService(mocks.NewMemoryStore()), false)

	rec := doRequest(router, stdhttp.MethodGet, "/", "")

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Recorded days (0)")
	assert.Contains(t, body, `name="Complaints" type="number" min="0" step="1" value="0"`)
}

func TestPageHandler_SubmitRedirects(t *testing.T) {
	store := mocks.NewMemoryStore()
	router := newPageRouter(t, newTestService(store), false)

	form := url.Values{}
	form.Set("Bank", "3")
	form.Set("Complaints", "1")
	rec := postForm(router, "/", form)

	require.Equal(t, stdhttp.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/?date=2024-01-01&saved=append", rec.Header().Get("Location"))
	assert.Equal(t, 1, store.Appends)

	rows, err := store.ReadAll(t.Context())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-01", rows[0].Date())
	assert.Equal(t, "3", rows[0]["Bank"])
	assert.Equal(t, "0", rows[0]["Email"])

	rec = doRequest(router, stdhttp.MethodGet, "/?saved=append", "")
	assert.Contains(t, rec.Body.String(), "New entry added.")
}

func TestPageHandler_SeedsFormFromRequestedDate(t *testing.T) {
	store := mocks.NewMemoryStore(dayRow("2023-12-31", 5), dayRow("2024-01-01", 1))
	router := newPageRouter(t, newTestService(store), false)

	rec := doRequest(router, stdhttp.MethodGet, "/?date=2023-12-31", "")

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<input type="hidden" name="date" value="2023-12-31">`)
	assert.Contains(t, body, `name="Bank" type="number" min="0" step="1" value="5"`)
	assert.NotContains(t, body, `name="Bank" type="number" min="0" step="1" value="1"`)

	// Resubmitting the seeded form with one change keeps that day's other counts.
	form := url.Values{"date": {"2023-12-31"}}
	for _, cat := range domain.Categories {
		form.Set(cat, "5")
	}
	form.Set("Bank", "6")
	rec = postForm(router, "/", form)
	require.Equal(t, stdhttp.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/?date=2023-12-31&saved=update", rec.Header().Get("Location"))

	rows, err := store.ReadAll(t.Context())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "6", rows[0]["Bank"])
	assert.Equal(t, "5", rows[0]["Email"])
	assert.Equal(t, "1", rows[1]["Bank"], "today's row is untouched")
}

func TestPageHandler_RejectsBadRequestedDate(t *testing.T) {
	store := mocks.NewMemoryStore(dayRow("2024-01-01", 1))
	router := newPageRouter(t, newTestService(store), false)

	for _, date := range []string{"2024-13-40", "2024-01-02"} {
		t.Run(date, func(t *testing.T) {
			rec := doRequest(router, stdhttp.MethodGet, "/?date="+date, "")

			require.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, `class="error"`)
			assert.Contains(t, body, `<input type="hidden" name="date" value="2024-01-01">`, "falls back to today")
			assert.Contains(t, body, `name="Bank" type="number" min="0" step="1" value="1"`)
		})
	}
}

func TestPageHandler_SubmitValidationError(t *testing.T) {
	store := mocks.NewMemoryStore(dayRow("2024-01-01", 1))
	router := newPageRouter(t, newTestService(store), false)

	form := url.Values{}
	form.Set("Bank", "-1")
	form.Set("Email", "abc")
	form.Set("Other", "4")
	rec := postForm(router, "/", form)

	require.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Must be a non-negative integer")
	assert.Contains(t, body, `name="Other" type="number" min="0" step="1" value="4"`, "typed values are kept")
	assert.Contains(t, body, "Recorded days (1)")
	assert.Zero(t, store.Mutations())
}

func TestPageHandler_StoreUnavailable(t *testing.T) {
	store := mocks.NewMemoryStore()
	store.FailWith = errors.New("quota exceeded")
	router := newPageRouter(t, newTestService(store), false)

	rec := doRequest(router, stdhttp.MethodGet, "/", "")
	require.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "store is unavailable")

	form := url.Values{}
	form.Set("Bank", "1")
	rec = postForm(router, "/", form)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
}

func TestPageHandler_AuthRequiredForSubmit(t *testing.T) {
	store := mocks.NewMemoryStore()
	router := newPageRouter(t, newTestService(store), true)

	form := url.Values{}
	form.Set("Bank", "2")

	// Anonymous submissions are refused.
	rec := postForm(router, "/", form)
	require.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="login"`)
	assert.Zero(t, store.Mutations())

	// Wrong password.
	rec = postForm(router, "/login", url.Values{"operator": {"asha"}, "password": {"wrong-password"}})
	require.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid operator or password.")

	// Sign in and retry with the cookie.
	rec = postForm(router, "/login", url.Values{"operator": {"asha"}, "password": {testPassword}})
	require.Equal(t, stdhttp.StatusSeeOther, rec.Code)

	var session *stdhttp.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == mw.TokenCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	rec = postForm(router, "/", form, session)
	require.Equal(t, stdhttp.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, 1, store.Appends)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "éé", truncate("ééé", 2))
}
