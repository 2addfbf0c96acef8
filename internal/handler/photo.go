package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/photo"
	"github.com/nuturetable/nuturetable/internal/store"
)

// PhotoStorage uploads photos and signs download URLs.
type PhotoStorage interface {
	Upload(ctx context.Context, userID int64, mealID *string, contentType string, size int64, body io.Reader) (*model.Photo, error)
	URL(ctx context.Context, key string) (string, error)
}

type PhotoHandler struct {
	storage    PhotoStorage
	photoStore *store.PhotoStore
	mealStore  *store.MealStore
	logger     *slog.Logger
}

func NewPhotoHandler(storage PhotoStorage, ps *store.PhotoStore, ms *store.MealStore, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{storage: storage, photoStore: ps, mealStore: ms, logger: logger}
}

// Upload accepts a multipart form with a "photo" file and an optional
// "meal_id".
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, photo.MaxSize+maxBodySize)
	if err := r.ParseMultipartForm(maxBodySize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo must be at most 10MB")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer file.Close()

	var mealID *string
	if id := r.FormValue("meal_id"); id != "" {
		m, err := h.mealStore.GetByID(r.Context(), userID, id)
		if err != nil {
			h.logger.Error("get meal for photo", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to upload photo")
			return
		}
		if m == nil {
			writeError(w, http.StatusNotFound, "meal not found")
			return
		}
		mealID = &id
	}

	contentType, err := detectContentType(header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	p, err := h.storage.Upload(r.Context(), userID, mealID, contentType, header.Size, file)
	switch {
	case errors.Is(err, photo.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, "photo must be JPEG, PNG, WebP or HEIC")
		return
	case errors.Is(err, photo.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "photo must be at most 10MB")
		return
	case err != nil:
		h.logger.Error("upload photo", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to upload photo")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// detectContentType trusts a declared image type and sniffs anything else.
func detectContentType(declared string, file io.ReadSeeker) (string, error) {
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// List returns the photos attached to ?meal_id= with fresh download URLs.
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	mealID := r.URL.Query().Get("meal_id")
	if mealID == "" {
		writeError(w, http.StatusBadRequest, "meal_id is required")
		return
	}

	photos, err := h.photoStore.ListByMeal(userID, mealID)
	if err != nil {
		h.logger.Error("list photos", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	if photos == nil {
		photos = []model.Photo{}
	}
	for i := range photos {
		photos[i].URL, err = h.storage.URL(r.Context(), photos[i].ObjectKey)
		if err != nil {
			h.logger.Error("sign photo url", "photo_id", photos[i].ID, "error", err)
			writeError(w, http.StatusBadGateway, "failed to list photos")
			return
		}
	}
	writeJSON(w, http.StatusOK, photos)
}
