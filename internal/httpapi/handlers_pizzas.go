package httpapi

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/service"
)

type logPizzaRequest struct {
	EatenAt     *time.Time `json:"eaten_at"`
	Ingredients []string   `json:"ingredients"`
	Note        string     `json:"note"`
}

// handlePizzasCreate takes either a JSON body or a multipart form whose
// optional "photo" part is uploaded to the blob store.
func (a *api) handlePizzasCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		params service.LogPizzaParams
		err    error
	)
	if mediaType == "multipart/form-data" {
		params, err = parsePizzaForm(w, r)
		if r.MultipartForm != nil {
			defer func() { _ = r.MultipartForm.RemoveAll() }()
		}
	} else {
		var req logPizzaRequest
		if derr := decodeJSON(w, r, &req); derr != nil {
			writeBadJSON(w)
			return
		}
		params = service.LogPizzaParams{Ingredients: req.Ingredients, Note: req.Note}
		if req.EatenAt != nil {
			params.EatenAt = *req.EatenAt
		}
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	p, err := a.pizzasSvc.LogPizza(r.Context(), u.ID, params)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

func parsePizzaForm(w http.ResponseWriter, r *http.Request) (service.LogPizzaParams, error) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxPhotoBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return service.LogPizzaParams{}, domain.NewValidationError(map[string]string{"photo": "must be 8 MiB or less"})
		}
		return service.LogPizzaParams{}, domain.NewValidationError(map[string]string{"body": "invalid multipart form"})
	}

	var params service.LogPizzaParams
	if raw := strings.TrimSpace(r.FormValue("eaten_at")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return service.LogPizzaParams{}, domain.NewValidationError(map[string]string{"eaten_at": "must be RFC3339"})
		}
		params.EatenAt = t
	}
	for _, v := range r.MultipartForm.Value["ingredients"] {
		params.Ingredients = append(params.Ingredients, strings.Split(v, ",")...)
	}
	params.Note = r.FormValue("note")

	file, header, err := r.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return params, nil
	case err != nil:
		return service.LogPizzaParams{}, domain.NewValidationError(map[string]string{"photo": "unreadable"})
	}

	// The declared part type is not trusted; sniff the leading bytes.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return service.LogPizzaParams{}, domain.NewValidationError(map[string]string{"photo": "unreadable"})
	}
	head = head[:n]
	params.Photo = &service.Photo{
		ContentType: http.DetectContentType(head),
		Size:        header.Size,
		Body:        io.MultiReader(bytes.NewReader(head), file),
	}
	return params, nil
}

func (a *api) handlePizzasDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if err := a.pizzasSvc.DeletePizza(r.Context(), u.ID, id); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleUserPizzas(w http.ResponseWriter, r *http.Request) {
	ints, err := queryInts(r, "year")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	pizzas, err := a.pizzasSvc.ListPizzas(r.Context(), viewerID(r.Context()), r.PathValue("username"), ints["year"])
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"pizzas": pizzas})
}

func (a *api) handleUserIngredients(w http.ResponseWriter, r *http.Request) {
	ints, err := queryInts(r, "year")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	stats, err := a.pizzasSvc.IngredientStats(r.Context(), viewerID(r.Context()), r.PathValue("username"), ints["year"])
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ingredients": stats})
}

type setCounterRequest struct {
	StartCount int `json:"start_count"`
}

func (a *api) handleCounterSet(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	year, err := pathID(r, "year")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	var req setCounterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	c, err := a.pizzasSvc.SetYearlyCounter(r.Context(), u.ID, int(year), req.StartCount)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}
