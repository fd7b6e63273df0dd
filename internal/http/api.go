package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ballot-auth/internal/domain"
	"ballot-auth/internal/service"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth        service.AuthService
	diagnostics service.DiagnosticsService
	logger      logrus.FieldLogger
}

func NewHandler(auth service.AuthService, diagnostics service.DiagnosticsService, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		auth:        auth,
		diagnostics: diagnostics,
		logger:      logger,
	}
}

// RegisterRoutes mounts the endpoints under /api and under the legacy
// /.netlify/functions prefix that existing clients call.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware())

	for _, prefix := range []string{"/api", "/.netlify/functions"} {
		group := router.Group(prefix)
		group.Any("/login", h.login)
		group.Any("/test-db", h.testDB)
	}

	router.GET("/api/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Next()
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	StudentID string `json:"studentId"`
}

type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    UserResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) login(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
		return
	case http.MethodPost:
	default:
		c.JSON(http.StatusMethodNotAllowed, messageResponse{Message: "Method not allowed"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}

	res, err := h.auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status, msg := loginFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("login failed")
		}
		c.JSON(status, messageResponse{Message: msg})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   res.Token,
		User:    profileToResponse(res.User),
	})
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "Email and password are required"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrAccountDeactivated):
		return http.StatusUnauthorized, "Account is deactivated"
	default:
		return http.StatusInternalServerError, "Server error during login"
	}
}

func profileToResponse(p domain.PublicProfile) UserResponse {
	return UserResponse{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      string(p.Role),
		StudentID: p.StudentID,
	}
}

type EnvironmentResponse struct {
	DatastoreDescriptor string `json:"datastoreDescriptor"`
	SigningSecret       string `json:"signingSecret"`
	ExecutionEnv        string `json:"executionEnv"`
}

type AdminDetailsResponse struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsActive   bool   `json:"isActive"`
	IsVerified bool   `json:"isVerified"`
}

type DatabaseResponse struct {
	Status       string                `json:"status"`
	UserCount    int64                 `json:"userCount"`
	AdminExists  string                `json:"adminExists"`
	AdminDetails *AdminDetailsResponse `json:"adminDetails"`
}

type DiagnosticsResponse struct {
	Message     string              `json:"message"`
	Environment EnvironmentResponse `json:"environment"`
	Database    DatabaseResponse    `json:"database"`
	Timestamp   string              `json:"timestamp"`
}

type DiagnosticsFailureResponse struct {
	Message     string              `json:"message"`
	Error       string              `json:"error"`
	Environment EnvironmentResponse `json:"environment"`
	Timestamp   string              `json:"timestamp"`
}

func (h *Handler) testDB(c *gin.Context) {
	report := h.diagnostics.Probe(c.Request.Context())

	env := EnvironmentResponse{
		DatastoreDescriptor: report.Environment.DatastoreDescriptor,
		SigningSecret:       report.Environment.SigningSecret,
		ExecutionEnv:        report.Environment.ExecutionEnv,
	}
	ts := report.Timestamp.UTC().Format(timestampLayout)

	if !report.OK() {
		c.JSON(http.StatusInternalServerError, DiagnosticsFailureResponse{
			Message:     "Test failed",
			Error:       report.Error,
			Environment: env,
			Timestamp:   ts,
		})
		return
	}

	db := DatabaseResponse{
		Status:      report.Database.Status,
		UserCount:   report.Database.UserCount,
		AdminExists: "No",
	}
	if report.Database.AdminExists {
		db.AdminExists = "Yes"
	}
	if d := report.Database.AdminDetails; d != nil {
		db.AdminDetails = &AdminDetailsResponse{
			Email:      d.Email,
			Role:       string(d.Role),
			IsActive:   d.IsActive,
			IsVerified: d.IsVerified,
		}
	}

	c.JSON(http.StatusOK, DiagnosticsResponse{
		Message:     "Database connection test",
		Environment: env,
		Database:    db,
		Timestamp:   ts,
	})
}
