package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/podari/internal/donation"
	"github.com/erazemk/podari/internal/model"
	"github.com/erazemk/podari/internal/uploads"
)

// maxFormMemory bounds the multipart form kept in memory; larger parts
// spill to temporary files.
const maxFormMemory = 32 << 20

// ProductsHandler exposes the donation lifecycle over HTTP.
type ProductsHandler struct {
	Products *donation.Service
	Uploads  *uploads.Store
}

type productRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	State       string   `json:"state"`
	PurchasedAt string   `json:"purchased_at"`
	Images      []string `json:"images"`
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input
// yields the zero time so the service reports the missing field.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Create handles POST /api/products. The body is a multipart form with the
// product fields and one or more "images" files.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			jsonError(w, http.StatusBadRequest, "expected multipart form")
			return
		}
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	purchasedAt, err := parseDate(r.FormValue("purchased_at"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchased_at")
		return
	}

	images, err := h.Uploads.SaveAll(r.MultipartForm.File["images"])
	if err != nil {
		slog.Warn("failed to store upload", "error", err)
		jsonError(w, http.StatusBadRequest, "failed to store images")
		return
	}

	product, err := h.Products.Create(r.Context(), callerID(r), model.ProductInput{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		State:       strings.TrimSpace(r.FormValue("state")),
		PurchasedAt: purchasedAt,
		Images:      images,
	})
	if err != nil {
		h.Uploads.Remove(images)
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusCreated, product)
}

// List handles GET /api/products?page=&limit=.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid page")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	products, err := h.Products.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, products)
}

// Mine handles GET /api/products/mine.
func (h *ProductsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.ListByOwner(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, products)
}

// Received handles GET /api/products/received.
func (h *ProductsHandler) Received(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.ListByReceiver(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, products)
}

// Get handles GET /api/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.Products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, product)
}

// Update handles PUT /api/products/{id}. All five fields are replaced.
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	purchasedAt, err := parseDate(req.PurchasedAt)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchased_at")
		return
	}

	product, err := h.Products.Update(r.Context(), r.PathValue("id"), model.ProductInput{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		State:       strings.TrimSpace(req.State),
		PurchasedAt: purchasedAt,
		Images:      req.Images,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, product)
}

// Delete handles DELETE /api/products/{id}.
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Products.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// Schedule handles PATCH /api/products/{id}/schedule.
func (h *ProductsHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	msg, err := h.Products.Schedule(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": msg})
}

// Conclude handles PATCH /api/products/{id}/conclude.
func (h *ProductsHandler) Conclude(w http.ResponseWriter, r *http.Request) {
	msg, err := h.Products.ConcludeDonation(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": msg})
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
