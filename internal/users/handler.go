package users

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"campus/internal/auth"
	"campus/internal/httpapi"
)

// Accounts is the surface the handler needs; *Service satisfies it.
type Accounts interface {
	Create(ctx context.Context, name, email, userType string) (*User, *Verification, error)
	Verify(ctx context.Context, token, password string) (*User, error)
	Login(ctx context.Context, email, password string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context) ([]User, error)
}

// Handler exposes auth and user administration endpoints.
type Handler struct {
	accounts Accounts
}

// NewHandler creates the handler.
func NewHandler(accounts Accounts) *Handler {
	return &Handler{accounts: accounts}
}

// Register mounts the open auth routes on authGroup, the authenticated /me
// route on meGroup and the admin routes on usersGroup.
func (h *Handler) Register(authGroup, meGroup, usersGroup *gin.RouterGroup) {
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.Refresh)
	authGroup.POST("/verify", h.Verify)

	meGroup.GET("/me", h.Me)

	usersGroup.POST("", h.CreateUser)
	usersGroup.GET("", h.ListUsers)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	pair, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExp.Unix(),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	pair, err := h.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExp.Unix(),
	})
}

type verifyRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	user, err := h.accounts.Verify(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusOK, "Account activated.", user)
}

// Me returns the account behind the bearer token.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		return
	}
	user, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, user)
}

type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Type  string `json:"type" binding:"required"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	user, verification, err := h.accounts.Create(c.Request.Context(), req.Name, req.Email, req.Type)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	// no mail delivery: the verification token is handed back to the admin
	httpapi.Message(c, http.StatusCreated, "User created.", gin.H{
		"user":               user,
		"verification_token": verification.Token,
		"expires_at":         verification.ExpiresAt,
	})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.accounts.List(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, users)
}
