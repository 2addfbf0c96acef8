package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/model"
	"github.com/nuturetable/nuturetable/internal/store"
)

const (
	maxInquiryTitle   = 100
	maxInquiryContent = 2000
	mailTimeout       = 10 * time.Second
)

// Mailer forwards inquiries to the support team.
type Mailer interface {
	Configured() bool
	SendInquiry(ctx context.Context, q model.Inquiry) error
	SendInquiryReceipt(ctx context.Context, q model.Inquiry) error
}

type InquiryHandler struct {
	inquiryStore *store.InquiryStore
	userStore    *store.UserStore
	mailer       Mailer
	logger       *slog.Logger
}

func NewInquiryHandler(is *store.InquiryStore, us *store.UserStore, mailer Mailer, logger *slog.Logger) *InquiryHandler {
	return &InquiryHandler{inquiryStore: is, userStore: us, mailer: mailer, logger: logger}
}

type inquiryRequest struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Email    string `json:"email"`
}

func (req *inquiryRequest) validate() map[string]string {
	errs := map[string]string{}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	req.Email = strings.TrimSpace(req.Email)

	if !slices.Contains(store.InquiryCategories, req.Category) {
		errs["category"] = "choose a category"
	}
	switch {
	case req.Title == "":
		errs["title"] = "title is required"
	case utf8.RuneCountInString(req.Title) > maxInquiryTitle:
		errs["title"] = "title must be at most 100 characters"
	}
	switch {
	case req.Content == "":
		errs["content"] = "content is required"
	case utf8.RuneCountInString(req.Content) > maxInquiryContent:
		errs["content"] = "content must be at most 2000 characters"
	}
	if req.Email != "" {
		if msg := validateEmail(req.Email); msg != "" {
			errs["email"] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Create stores an inquiry and, when mail is configured, forwards it to
// support. The reply address defaults to the account email.
func (h *InquiryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req inquiryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if errs := req.validate(); errs != nil {
		writeFieldErrors(w, errs)
		return
	}

	if req.Email == "" {
		user, err := h.userStore.GetByID(userID)
		if err != nil || user == nil {
			h.logger.Error("get user for inquiry", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to submit inquiry")
			return
		}
		req.Email = user.Email
	}

	q, err := h.inquiryStore.Create(model.Inquiry{
		UserID:   userID,
		Category: req.Category,
		Title:    req.Title,
		Content:  req.Content,
		Email:    req.Email,
	})
	if err != nil {
		h.logger.Error("create inquiry", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit inquiry")
		return
	}

	if h.mailer != nil && h.mailer.Configured() {
		h.forward(r.Context(), *q)
	}
	writeJSON(w, http.StatusCreated, q)
}

// forward sends the inquiry and a receipt. Mail failures are logged only;
// the inquiry is already stored.
func (h *InquiryHandler) forward(ctx context.Context, q model.Inquiry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	defer cancel()

	if err := h.mailer.SendInquiry(ctx, q); err != nil {
		h.logger.Error("forward inquiry", "inquiry_id", q.ID, "error", err)
		return
	}
	if err := h.mailer.SendInquiryReceipt(ctx, q); err != nil {
		h.logger.Warn("inquiry receipt", "inquiry_id", q.ID, "error", err)
	}
}

func (h *InquiryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	inquiries, err := h.inquiryStore.ListByUser(userID)
	if err != nil {
		h.logger.Error("list inquiries", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list inquiries")
		return
	}
	if inquiries == nil {
		inquiries = []model.Inquiry{}
	}
	writeJSON(w, http.StatusOK, inquiries)
}
