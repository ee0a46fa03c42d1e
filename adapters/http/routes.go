package http

import (
	"github.com/labstack/echo/v4"
)

// Register mounts every API route on e. ws serves the authenticated
// websocket endpoint.
func (h *Handler) Register(e *echo.Echo, ws echo.HandlerFunc) {
	// Public endpoints
	e.GET("/api/v1/health", h.HealthCheck)
	e.POST("/signup", h.Signup)
	e.POST("/login", h.Login)
	e.POST("/verify-token", h.VerifyToken)
	e.POST("/verify-otp", h.VerifyOTP)
	e.POST("/resend-otp", h.ResendOTP)
	e.POST("/chat-ai", h.ChatAI)

	// JWT auth required
	jwt := h.JWTMiddleware
	e.POST("/chat", h.SaveChat, jwt)
	e.GET("/history", h.History, jwt)
	e.DELETE("/history/:id", h.DeleteChat, jwt)
	e.PUT("/history/:id/rename", h.RenameChat, jwt)
	e.POST("/chats/:id/ask", h.Ask, jwt)
	e.POST("/upload-pdf-to-chat/", h.UploadPDF, jwt)
	e.POST("/upload-image-to-chat/", h.UploadImage, jwt)
	e.GET("/ws", ws, jwt)

	if h.VoiceEnabled() {
		e.POST("/api/v1/audio/transcribe", h.Transcribe, jwt)
		e.GET("/api/v1/chats/:id/speech", h.Speech, jwt)
	}
}
