// Package backendtest runs an in-process fake of the console backend for
// tests: real HS256 tokens, a refresh endpoint with call counting and
// switchable failure/rotation, and in-memory resource endpoints.
package backendtest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gradcert/console-client/api"
	"github.com/gradcert/console-client/credstore"
)

// DefaultPassword is accepted for the seeded user.
const DefaultPassword = "password123"

// DefaultUser is the account every Server starts with.
var DefaultUser = credstore.User{
	ID:           1,
	Username:     "jdoe",
	Email:        "jdoe@example.com",
	Name:         "John Doe",
	PhoneNumber:  "+15550100",
	ProfileImage: "https://cdn.example.com/jdoe.png",
}

// Server is the fake backend. URL points at the running httptest server.
type Server struct {
	URL string

	httpServer *httptest.Server
	signingKey []byte
	accessTTL  time.Duration

	mu              sync.Mutex
	refreshCalls    int
	refreshDelay    time.Duration
	failRefresh     bool
	rotateRefresh   bool
	failProtected   bool
	validRefresh    map[string]bool
	user            credstore.User
	templates       map[int64]api.Template
	graduants       map[int64]api.Graduant
	certificates    map[int64]api.Certificate
	emailsSent      int
	nextTemplateID  int64
	nextGraduantID  int64
	nextCertID      int64
	registeredUsers []string
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of minted access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithRefreshFailure makes the refresh endpoint reject every exchange.
func WithRefreshFailure() Option {
	return func(s *Server) {
		s.failRefresh = true
	}
}

// WithRefreshDelay makes the refresh endpoint sleep before answering,
// widening the window in which concurrent callers can pile up.
func WithRefreshDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.refreshDelay = delay
	}
}

// WithRotation makes every refresh exchange rotate the refresh token:
// the old token is invalidated and a new one is returned.
func WithRotation() Option {
	return func(s *Server) {
		s.rotateRefresh = true
	}
}

// WithProtectedFailure makes every authenticated endpoint answer 401 even
// for valid tokens.
func WithProtectedFailure() Option {
	return func(s *Server) {
		s.failProtected = true
	}
}

// New starts a fake backend and registers its shutdown with t.
func New(t *testing.T, options ...Option) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		signingKey:     []byte("backendtest-signing-key"),
		accessTTL:      15 * time.Minute,
		validRefresh:   make(map[string]bool),
		user:           DefaultUser,
		templates:      make(map[int64]api.Template),
		graduants:      make(map[int64]api.Graduant),
		certificates:   make(map[int64]api.Certificate),
		nextTemplateID: 1,
		nextGraduantID: 1,
		nextCertID:     1,
	}
	for _, opt := range options {
		opt(s)
	}

	router := gin.New()
	s.installRoutes(router)
	s.httpServer = httptest.NewServer(router)
	s.URL = s.httpServer.URL
	t.Cleanup(s.httpServer.Close)
	return s
}

// RefreshCalls returns how many refresh exchanges reached the backend.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// EmailsSent returns how many certificate emails were dispatched.
func (s *Server) EmailsSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emailsSent
}

// RegisteredUsernames returns the usernames passed to the register endpoint.
func (s *Server) RegisteredUsernames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.registeredUsers...)
}

// MintAccess creates a signed access token for the seeded user that expires
// after ttl (negative ttl yields an already-expired token).
func (s *Server) MintAccess(ttl time.Duration) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(s.user.ID, 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		panic(fmt.Sprintf("backendtest: mint access token: %v", err))
	}
	return signed
}

// IssueRefresh creates a refresh token the backend will accept.
func (s *Server) IssueRefresh() string {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		panic(fmt.Sprintf("backendtest: issue refresh token: %v", err))
	}
	tokenStr := hex.EncodeToString(tokenBytes)
	s.mu.Lock()
	s.validRefresh[tokenStr] = true
	s.mu.Unlock()
	return tokenStr
}

// SeededRecord returns a ready-to-store session record whose access token
// expires after accessTTL.
func (s *Server) SeededRecord(accessTTL time.Duration) credstore.Record {
	return credstore.Record{
		AccessToken:  s.MintAccess(accessTTL),
		RefreshToken: s.IssueRefresh(),
		User:         s.user,
	}
}

func (s *Server) installRoutes(router *gin.Engine) {
	router.POST("/api/auth/login/", s.handleLogin)
	router.POST("/api/auth/register/", s.handleRegister)
	router.POST("/api/auth/token/refresh/", s.handleRefresh)
	router.POST("/api/auth/password-reset/", s.handlePasswordReset)
	router.POST("/api/auth/password-reset/confirm/", s.handlePasswordReset)

	protected := router.Group("/api", s.requireAuth)
	protected.PATCH("/auth/profile/", s.handleProfile)
	protected.POST("/auth/change-password/", s.handleChangePassword)
	protected.GET("/templates/", s.handleListTemplates)
	protected.POST("/templates/", s.handleCreateTemplate)
	protected.GET("/templates/:id/", s.handleGetTemplate)
	protected.PUT("/templates/:id/", s.handleUpdateTemplate)
	protected.DELETE("/templates/:id/", s.handleDeleteTemplate)
	protected.GET("/graduants/", s.handleListGraduants)
	protected.POST("/graduants/", s.handleAddGraduant)
	protected.DELETE("/graduants/:id/", s.handleDeleteGraduant)
	protected.POST("/certificates/generate/", s.handleGenerate)
	protected.POST("/certificates/send-email/", s.handleSendEmails)
	protected.GET("/dashboard/stats/", s.handleDashboardStats)
}

func (s *Server) requireAuth(c *gin.Context) {
	s.mu.Lock()
	failProtected := s.failProtected
	s.mu.Unlock()
	if failProtected {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "token_not_valid", "detail": "Token is invalid or expired"})
		return
	}

	header := c.GetHeader("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "token_not_valid", "detail": "Authorization header missing"})
		return
	}
	_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "token_not_valid", "detail": "Token is invalid or expired"})
		return
	}
	c.Next()
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		UsernameOrEmail string `json:"username_or_email"`
		Password        string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
		return
	}

	s.mu.Lock()
	user := s.user
	s.mu.Unlock()

	matches := req.UsernameOrEmail == user.Username || req.UsernameOrEmail == user.Email
	if !matches || req.Password != DefaultPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access":  s.MintAccess(s.accessTTL),
		"refresh": s.IssueRefresh(),
		"user":    user,
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var username string
	if strings.Contains(c.GetHeader("Content-Type"), "multipart/form-data") {
		username = c.PostForm("username")
		if _, err := c.FormFile("profile_image"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "profile_image is required for multipart registration"})
			return
		}
	} else {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
			return
		}
		username = req.Username
	}
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username is required"})
		return
	}

	s.mu.Lock()
	s.registeredUsers = append(s.registeredUsers, username)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{"detail": "Registered. Please verify your email."})
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.mu.Lock()
	s.refreshCalls++
	delay := s.refreshDelay
	fail := s.failRefresh
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Refresh token is invalid"})
		return
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
		return
	}

	s.mu.Lock()
	valid := s.validRefresh[req.Refresh]
	rotate := s.rotateRefresh
	if valid && rotate {
		delete(s.validRefresh, req.Refresh)
	}
	s.mu.Unlock()

	if !valid {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Refresh token is invalid"})
		return
	}

	response := gin.H{"access": s.MintAccess(s.accessTTL)}
	if rotate {
		response["refresh"] = s.IssueRefresh()
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handlePasswordReset(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"detail": "OK"})
}

func (s *Server) handleProfile(c *gin.Context) {
	var update struct {
		Username    *string `json:"username"`
		Email       *string `json:"email"`
		Name        *string `json:"name"`
		PhoneNumber *string `json:"phone_number"`
	}
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
		return
	}

	s.mu.Lock()
	if update.Username != nil {
		s.user.Username = *update.Username
	}
	if update.Email != nil {
		s.user.Email = *update.Email
	}
	if update.Name != nil {
		s.user.Name = *update.Name
	}
	if update.PhoneNumber != nil {
		s.user.PhoneNumber = *update.PhoneNumber
	}
	user := s.user
	s.mu.Unlock()
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OldPassword != DefaultPassword {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Old password is incorrect"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Password changed"})
}

func (s *Server) handleListTemplates(c *gin.Context) {
	s.mu.Lock()
	templates := make([]api.Template, 0, len(s.templates))
	for _, template := range s.templates {
		templates = append(templates, template)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(c *gin.Context) {
	var input api.TemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
		return
	}
	s.mu.Lock()
	template := api.Template{
		ID:           s.nextTemplateID,
		Title:        input.Title,
		Description:  input.Description,
		Organization: input.Organization,
		Validity:     input.Validity,
		Content:      input.Content,
		CreatedAt:    time.Now().UTC(),
	}
	s.nextTemplateID++
	s.templates[template.ID] = template
	s.mu.Unlock()
	c.JSON(http.StatusCreated, template)
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	id := paramID(c)
	s.mu.Lock()
	template, ok := s.templates[id]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Template not found"})
		return
	}
	c.JSON(http.StatusOK, template)
}

func (s *Server) handleUpdateTemplate(c *gin.Context) {
	id := paramID(c)
	var input api.TemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
		return
	}
	s.mu.Lock()
	template, ok := s.templates[id]
	if ok {
		template.Title = input.Title
		template.Description = input.Description
		template.Organization = input.Organization
		template.Validity = input.Validity
		template.Content = input.Content
		s.templates[id] = template
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Template not found"})
		return
	}
	c.JSON(http.StatusOK, template)
}

func (s *Server) handleDeleteTemplate(c *gin.Context) {
	id := paramID(c)
	s.mu.Lock()
	delete(s.templates, id)
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

const graduantPageSize = 10

func (s *Server) handleListGraduants(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	all := make([]api.Graduant, 0, len(s.graduants))
	for _, graduant := range s.graduants {
		all = append(all, graduant)
	}
	s.mu.Unlock()

	start := (page - 1) * graduantPageSize
	end := start + graduantPageSize
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	c.JSON(http.StatusOK, api.GraduantPage{
		Count:   len(all),
		Results: all[start:end],
	})
}

func (s *Server) handleAddGraduant(c *gin.Context) {
	var input api.GraduantInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
		return
	}
	s.mu.Lock()
	graduant := api.Graduant{
		ID:        s.nextGraduantID,
		Name:      input.Name,
		Email:     input.Email,
		Course:    input.Course,
		CreatedAt: time.Now().UTC(),
	}
	s.nextGraduantID++
	s.graduants[graduant.ID] = graduant
	s.mu.Unlock()
	c.JSON(http.StatusCreated, graduant)
}

func (s *Server) handleDeleteGraduant(c *gin.Context) {
	id := paramID(c)
	s.mu.Lock()
	delete(s.graduants, id)
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
		return
	}

	s.mu.Lock()
	if _, ok := s.templates[req.TemplateID]; !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"detail": "Template not found"})
		return
	}
	ids := make([]int64, 0, len(req.GraduantIDs))
	for _, graduantID := range req.GraduantIDs {
		if _, ok := s.graduants[graduantID]; !ok {
			continue
		}
		cert := api.Certificate{
			ID:         s.nextCertID,
			TemplateID: req.TemplateID,
			GraduantID: graduantID,
			Status:     "generated",
			IssuedAt:   time.Now().UTC(),
		}
		s.nextCertID++
		s.certificates[cert.ID] = cert
		ids = append(ids, cert.ID)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, api.GenerateResult{Generated: len(ids), CertificateIDs: ids})
}

func (s *Server) handleSendEmails(c *gin.Context) {
	var req api.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request"})
		return
	}

	s.mu.Lock()
	sent := 0
	for _, certID := range req.CertificateIDs {
		cert, ok := s.certificates[certID]
		if !ok {
			continue
		}
		cert.Status = "sent"
		s.certificates[certID] = cert
		sent++
	}
	s.emailsSent += sent
	s.mu.Unlock()

	c.JSON(http.StatusOK, api.SendEmailResult{Sent: sent})
}

func (s *Server) handleDashboardStats(c *gin.Context) {
	s.mu.Lock()
	stats := api.DashboardStats{
		Templates:    len(s.templates),
		Graduants:    len(s.graduants),
		Certificates: len(s.certificates),
		EmailsSent:   s.emailsSent,
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, stats)
}

func paramID(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return id
}
