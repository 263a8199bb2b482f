package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Handler struct {
	mailer    Mailer
	limiter   Limiter
	inbox     string
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandler serves internal notification delivery and the public contact
// form. Contact and quote requests are delivered to inbox.
func NewHandler(mailer Mailer, limiter Limiter, inbox string, logger *slog.Logger) *Handler {
	return &Handler{
		mailer:    mailer,
		limiter:   limiter,
		inbox:     inbox,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

type sendRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "to, subject and body are required")
		return
	}

	if err := h.mailer.Send(r.Context(), Message{To: req.To, Subject: req.Subject, Body: req.Body}); err != nil {
		h.logger.Error("failed to send email", "error", err, "to", req.To)
		h.writeError(w, http.StatusBadGateway, "email delivery failed")
		return
	}

	h.logger.Info("email sent", "to", req.To, "subject", req.Subject)
	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

type contactRequest struct {
	Type    string `json:"type" validate:"required,oneof=contact quote"`
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,min=10,max=20"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Message = strings.TrimSpace(req.Message)

	if err := h.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			h.writeError(w, http.StatusBadRequest, "invalid field: "+strings.ToLower(verrs[0].Field()))
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ip := clientIP(r)
	allowed, err := h.limiter.Allow(r.Context(), "contact:"+ip)
	if err != nil {
		h.logger.Error("contact rate limiter unavailable, allowing request", "error", err, "client_ip", ip)
		allowed = true
	}
	if !allowed {
		h.logger.Warn("contact request rate limited", "client_ip", ip)
		h.writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
		return
	}

	msg := Message{
		To:      h.inbox,
		ReplyTo: req.Email,
		Subject: contactSubject(req.Type),
		Body:    contactBody(req),
		HTML:    true,
	}
	if err := h.mailer.Send(r.Context(), msg); err != nil {
		h.logger.Error("failed to deliver contact request", "error", err, "type", req.Type)
		h.writeError(w, http.StatusBadGateway, "email delivery failed")
		return
	}

	h.logger.Info("contact request delivered", "type", req.Type, "client_ip", ip)
	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func contactSubject(kind string) string {
	if kind == "quote" {
		return "New quote request via website"
	}
	return "New contact message via website"
}

func contactBody(req contactRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>\n", contactSubject(req.Type))
	fmt.Fprintf(&b, "<p><strong>Name:</strong> %s</p>\n", html.EscapeString(req.Name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>\n", html.EscapeString(req.Email))
	if req.Phone != "" {
		fmt.Fprintf(&b, "<p><strong>Phone:</strong> %s</p>\n", html.EscapeString(req.Phone))
	}
	message := strings.ReplaceAll(html.EscapeString(req.Message), "\n", "<br>")
	fmt.Fprintf(&b, "<p><strong>Message:</strong></p>\n<p>%s</p>\n", message)
	return b.String()
}

// clientIP prefers the first X-Forwarded-For hop set by the edge gateway.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
