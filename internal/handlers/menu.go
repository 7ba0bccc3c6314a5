package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/alextreichler/qrmenu/internal/images"
	"github.com/alextreichler/qrmenu/internal/menu"
	"github.com/alextreichler/qrmenu/internal/models"
)

const maxImageSize = 5 << 20 // 5MB

type MenuHandler struct {
	Menu *menu.Service
}

// menuPayload is the JSON form of a create or update request. Nil fields
// were absent from the body.
type menuPayload struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	IsAvailable *bool    `json:"isAvailable"`
}

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Menu.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *MenuHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Menu.Categories(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Menu.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "Menu item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, img, err := h.parseRequest(w, r)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	defer closeImage(img)
	item, err := h.Menu.Create(r.Context(), fields, img)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	fields, img, err := h.parseRequest(w, r)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	defer closeImage(img)
	item, err := h.Menu.Update(r.Context(), r.PathValue("id"), fields, img)
	if err != nil {
		writeServiceError(w, r, err, "Menu item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Menu.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err, "Menu item not found")
		return
	}
	writeJSON(w, http.StatusOK, errorBody{Message: "Menu item removed"})
}

// parseRequest reads menu fields from a multipart form (with an optional
// "image" file) or from a JSON body.
func (h *MenuHandler) parseRequest(w http.ResponseWriter, r *http.Request) (menu.Fields, *menu.Image, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var p menuPayload
		if err := decodeJSON(w, r, &p); err != nil {
			return menu.Fields{}, nil, err
		}
		return menu.Fields(p), nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxJSONBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return menu.Fields{}, nil, models.Invalid("Image must be 5MB or smaller")
		}
		return menu.Fields{}, nil, models.Invalid("Malformed form data")
	}

	var f menu.Fields
	values := r.MultipartForm.Value
	f.Name = formValue(values, "name")
	f.Description = formValue(values, "description")
	f.Category = formValue(values, "category")
	if raw := formValue(values, "price"); raw != nil {
		price, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		if err != nil {
			return f, nil, models.Invalid("Price must be a number")
		}
		f.Price = &price
	}
	if raw := formValue(values, "isAvailable"); raw != nil {
		avail, err := strconv.ParseBool(strings.TrimSpace(*raw))
		if err != nil {
			return f, nil, models.Invalid("isAvailable must be true or false")
		}
		f.IsAvailable = &avail
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return f, nil, nil
	}
	if err != nil {
		return f, nil, models.Invalid("Invalid image upload")
	}
	if header.Size > maxImageSize {
		file.Close()
		return f, nil, models.Invalid("Image must be 5MB or smaller")
	}
	if !images.Supported(header.Filename) {
		file.Close()
		return f, nil, models.Invalid("Only PNG, JPEG and WebP images are allowed")
	}
	return f, &menu.Image{Filename: header.Filename, Body: file}, nil
}

func closeImage(img *menu.Image) {
	if img == nil {
		return
	}
	if c, ok := img.Body.(io.Closer); ok {
		c.Close()
	}
}

// formValue returns nil when key was not submitted at all.
func formValue(values map[string][]string, key string) *string {
	v, ok := values[key]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}
