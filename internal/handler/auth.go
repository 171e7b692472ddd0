package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/auth"
	appmw "github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/middleware"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/model"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/store"
)

var dniPattern = regexp.MustCompile(`^\d{5,12}$`)

type userStore interface {
	Create(ctx context.Context, u *model.User, passwordHash string) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByLogin(ctx context.Context, emailOrUser string) (*model.User, string, error)
}

type tokenIssuer interface {
	Issue(u *model.User) (string, error)
}

// AuthHandler handles account registration and login.
type AuthHandler struct {
	BaseHandler
	users  userStore
	tokens tokenIssuer
}

func NewAuthHandler(logger *slog.Logger, users userStore, tokens tokenIssuer) *AuthHandler {
	return &AuthHandler{BaseHandler: BaseHandler{Logger: logger}, users: users, tokens: tokens}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	DNI      string `json:"dni"`
}

func (req *registerRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	req.DNI = strings.TrimSpace(req.DNI)

	switch {
	case req.Email == "" || req.Username == "" || req.Password == "" || req.Role == "":
		return "Completa los campos requeridos."
	case !model.Role(req.Role).Valid():
		return "Rol inválido"
	case req.DNI != "" && !dniPattern.MatchString(req.DNI):
		return "El documento debe tener entre 5 y 12 dígitos"
	case len(req.Password) < auth.MinPasswordLength:
		return "La contraseña debe tener al menos 6 caracteres"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "Correo inválido"
	}
	return ""
}

// Register creates an account and returns a token for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		h.errorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	hash, err := auth.Hash(req.Password)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	name := req.Name
	if name == "" {
		name = req.Username
	}
	user := &model.User{
		ID:       auth.NewID(),
		Username: req.Username,
		Name:     name,
		Email:    req.Email,
		DNI:      req.DNI,
		Role:     model.Role(req.Role),
	}
	if err := h.users.Create(r.Context(), user, hash); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			msg := "El usuario ya existe"
			if strings.Contains(err.Error(), "email") {
				msg = "El correo ya está registrado"
			}
			h.errorResponse(w, r, http.StatusConflict, msg)
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user)
	h.Logger.Info("auth: user registered", "username", user.Username, "role", user.Role)
}

type loginRequest struct {
	EmailOrUser string `json:"emailOrUser"`
	Password    string `json:"password"`
}

// Login exchanges credentials for a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.EmailOrUser) == "" || req.Password == "" {
		h.errorResponse(w, r, http.StatusBadRequest, "Usuario y contraseña son obligatorios")
		return
	}

	user, hash, err := h.users.GetByLogin(r.Context(), req.EmailOrUser)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.serverErrorResponse(w, r, err)
		return
	}
	if err != nil || !auth.Verify(hash, req.Password) {
		h.errorResponse(w, r, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

// Me returns the account behind the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := appmw.ClaimsFromContext(r.Context())
	if claims == nil {
		h.errorResponse(w, r, http.StatusUnauthorized, "Se requiere iniciar sesión")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		h.errorResponse(w, r, http.StatusUnauthorized, "La cuenta ya no existe")
		return
	}
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	if err := h.writeJSON(w, http.StatusOK, envelope{"ok": true, "user": user}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	if err := h.writeJSON(w, status, envelope{"ok": true, "token": token, "user": user}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
