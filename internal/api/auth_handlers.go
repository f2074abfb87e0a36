package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/shop-fulfillment/internal/api/middleware"
	"github.com/example/shop-fulfillment/internal/auth"
	"github.com/example/shop-fulfillment/internal/infrastructure/store"
	"github.com/example/shop-fulfillment/internal/model"
)

type AuthHandlers struct {
	docStore   store.DocStore
	jwtService *auth.JWTService
}

func NewAuthHandlers(docStore store.DocStore, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		docStore:   docStore,
		jwtService: jwtService,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	OperatorID  string `json:"operator_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	op, err := h.findByEmail(r, req.Email)
	if err != nil {
		log.Printf("[Auth] login lookup failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if op == nil || !auth.CheckPassword(req.Password, op.PasswordHash) {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(op.ID, op.Email, op.Role)
	if err != nil {
		log.Printf("[Auth] token generation failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respondJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		OperatorID:  op.ID,
		Email:       op.Email,
		Role:        op.Role,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Role == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "email and role are required"})
		return
	}

	existing, err := h.findByEmail(r, req.Email)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if existing != nil {
		respondJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	op := &model.Operator{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := h.docStore.Set(r.Context(), store.CollectionOperators, op.ID, op); err != nil {
		log.Printf("[Auth] register failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"operator_id": op.ID})
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetOperatorFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"operator_id": claims.OperatorID,
		"email":       claims.Email,
		"role":        claims.Role,
	})
}

func (h *AuthHandlers) findByEmail(r *http.Request, email string) (*model.Operator, error) {
	items, err := h.docStore.GetAll(r.Context(), store.CollectionOperators)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		op, ok := item.(*model.Operator)
		if !ok {
			continue
		}
		if op.Email == email {
			return op, nil
		}
	}
	return nil, nil
}
