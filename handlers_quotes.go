package main

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/quotesapi/internal/quotes"
)

type quoteRequest struct {
	Quote  string `json:"quote" validate:"required,max=1000"`
	Author string `json:"author" validate:"required,max=200"`
}

func (a *App) HandleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var in quoteRequest
	if !a.decode(w, r, &in) {
		return
	}
	q, err := a.quotes.Create(r.Context(), subject(r), in.Quote, in.Author)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, q)
}

func (a *App) HandleListQuotes(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "currentPage", 1)
	if !ok {
		return
	}
	perPage, ok := queryInt(w, r, "perPage", quotes.DefaultPerPage)
	if !ok {
		return
	}
	result, err := a.quotes.List(r.Context(), page, perPage)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (a *App) HandleRandomQuote(w http.ResponseWriter, r *http.Request) {
	q, err := a.quotes.Random(r.Context())
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, q)
}

func (a *App) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := a.quotes.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, q)
}

func (a *App) HandleUpdateQuote(w http.ResponseWriter, r *http.Request) {
	var in quoteRequest
	if !a.decode(w, r, &in) {
		return
	}
	q, err := a.quotes.Update(r.Context(), mux.Vars(r)["id"], subject(r), in.Quote, in.Author)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, q)
}

func (a *App) HandleDeleteQuote(w http.ResponseWriter, r *http.Request) {
	if err := a.quotes.Delete(r.Context(), mux.Vars(r)["id"], subject(r)); err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt reads a positive integer query parameter, falling back to def
// when it is absent.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a positive integer")
		return 0, false
	}
	return n, true
}
