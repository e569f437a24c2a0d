package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/go-task-board/internal/db"
	"github.com/chepyr/go-task-board/shared"
	"github.com/chepyr/go-task-board/shared/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 4

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(ip) {
		h.log().WithFields(logrus.Fields{"event_id": "RATE_LIMITED", "ip": ip}).Warn("register rate limit exceeded")
		shared.SendError(w, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		shared.SendError(w, "Name is required", http.StatusBadRequest)
		return
	}
	if msg := validateCredentials(input); msg != "" {
		shared.SendError(w, msg, http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log().WithError(err).Error("hash password")
		shared.SendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	if err := h.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			shared.SendError(w, "Email already registered", http.StatusConflict)
			return
		}
		h.log().WithError(err).Error("create user")
		shared.SendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}

	h.log().WithFields(logrus.Fields{"event_id": "USER_REGISTERED", "user_id": user.ID}).Info("user registered")
	shared.SendJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(ip) {
		h.log().WithFields(logrus.Fields{"event_id": "RATE_LIMITED", "ip": ip}).Warn("login rate limit exceeded")
		shared.SendError(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	if msg := validateCredentials(input); msg != "" {
		shared.SendError(w, msg, http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	user, err := h.UserRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.log().WithError(err).Error("load user for login")
		}
		shared.SendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		shared.SendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := h.generateJWTToken(user.ID, user.Name)
	if err != nil {
		h.log().WithError(err).Error("generate token")
		shared.SendError(w, "Cannot create token", http.StatusInternalServerError)
		return
	}

	h.log().WithFields(logrus.Fields{"event_id": "USER_LOGGED_IN", "user_id": user.ID}).Info("user logged in")
	shared.SendJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

// validateCredentials returns a client-facing message, or "" when valid.
func validateCredentials(input credentials) string {
	if !emailPattern.MatchString(input.Email) {
		return "Invalid email"
	}
	if len(input.Password) < minPasswordLength {
		return "Password must be at least 4 characters long"
	}
	return ""
}
