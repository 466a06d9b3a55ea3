package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/auth"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/httpx"
)

type Handler struct {
	svc *auth.Service
	log logrus.FieldLogger
}

func NewHandler(svc *auth.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.login)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  userResponse{ID: u.ID, Email: u.Email, Role: u.Role},
	})
}
