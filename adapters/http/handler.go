package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/usecase"
	"github.com/satriahrh/white-fusion/utils/log"
)

const (
	MaxUploadSize = 10 * 1024 * 1024
	MaxAudioSize  = 10 * 1024 * 1024
)

type Handler struct {
	auth        *usecase.AuthService
	chats       *usecase.ChatService
	documents   *usecase.DocumentService
	transcriber domain.Transcriber
	synthesizer domain.Synthesizer
}

// NewHandler builds the API handler. transcriber and synthesizer may be nil
// when voice is disabled.
func NewHandler(auth *usecase.AuthService, chats *usecase.ChatService, documents *usecase.DocumentService, transcriber domain.Transcriber, synthesizer domain.Synthesizer) *Handler {
	return &Handler{
		auth:        auth,
		chats:       chats,
		documents:   documents,
		transcriber: transcriber,
		synthesizer: synthesizer,
	}
}

// VoiceEnabled reports whether the voice routes should be mounted.
func (h *Handler) VoiceEnabled() bool {
	return h.transcriber != nil && h.synthesizer != nil
}

// JWTMiddleware authenticates "Authorization: Bearer <token>" and stores the
// user under domain.CurrentUserKey.
func (h *Handler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		user, err := h.auth.Authenticate(c.Request().Context(), tokenString)
		if err != nil {
			return h.fail(c, err)
		}

		c.Set(domain.CurrentUserKey, user)
		ctx := log.ContextWith(c.Request().Context(), log.UserIDKey, user.ID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// LogContext copies the request id into the request context for log.WithCtx.
func LogContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id == "" {
			id = c.Request().Header.Get(echo.HeaderXRequestID)
		}
		if id != "" {
			ctx := log.ContextWith(c.Request().Context(), log.RequestIDKey, id)
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *domain.User {
	user, _ := c.Get(domain.CurrentUserKey).(*domain.User)
	return user
}

// fail renders err as {"detail": ...} with a status matching its kind.
func (h *Handler) fail(c echo.Context, err error) error {
	var reqErr *domain.RequestError
	if !errors.As(err, &reqErr) {
		log.WithCtx(c.Request().Context()).Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	return c.JSON(status, map[string]string{"detail": reqErr.Message})
}

func (h *Handler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "white-fusion",
	})
}

// Signup takes the form fields "username" (an email) and "password".
func (h *Handler) Signup(c echo.Context) error {
	if err := h.auth.Signup(c.Request().Context(), c.FormValue("username"), c.FormValue("password")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "OTP sent to your email."})
}

func (h *Handler) Login(c echo.Context) error {
	token, err := h.auth.Login(c.Request().Context(), c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (h *Handler) VerifyToken(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	return c.JSON(http.StatusOK, map[string]bool{"valid": h.auth.VerifyToken(req.Token)})
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	msg, err := h.auth.VerifyOTP(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}

func (h *Handler) ResendOTP(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := h.auth.ResendOTP(c.Request().Context(), req.Email); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "New OTP sent to your email."})
}

// ChatRequest is the body of POST /chat-ai. Messages stay untyped so that
// malformed elements are reported by the normalizer.
type ChatRequest struct {
	ModelName     string          `json:"model_name"`
	ModelProvider domain.Provider `json:"model_provider"`
	SystemPrompt  string          `json:"system_prompt"`
	Messages      []any           `json:"messages"`
	AllowSearch   bool            `json:"allow_search"`
}

// ChatAI answers a stateless conversation. Invalid requests get
// {"error": ...}.
func (h *Handler) ChatAI(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	resp, err := h.chats.Answer(c.Request().Context(), usecase.AskInput{
		Model:        req.ModelName,
		Provider:     req.ModelProvider,
		AllowSearch:  req.AllowSearch,
		SystemPrompt: req.SystemPrompt,
	}, req.Messages)
	if err != nil {
		var reqErr *domain.RequestError
		if errors.As(err, &reqErr) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": reqErr.Message})
		}
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SaveChat(c echo.Context) error {
	var req struct {
		Message string `json:"message"`
		ChatID  *int64 `json:"chat_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	res, err := h.chats.SaveMessage(c.Request().Context(), currentUser(c), req.ChatID, req.Message)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) History(c echo.Context) error {
	history, err := h.chats.History(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) DeleteChat(c echo.Context) error {
	chatID, err := chatIDParam(c)
	if err != nil {
		return err
	}
	if err := h.chats.Delete(c.Request().Context(), currentUser(c), chatID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"msg": "Chat deleted"})
}

func (h *Handler) RenameChat(c echo.Context) error {
	chatID, err := chatIDParam(c)
	if err != nil {
		return err
	}
	title, err := h.chats.Rename(c.Request().Context(), currentUser(c), chatID, c.QueryParam("new_title"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"msg": "Chat renamed", "new_title": title})
}

// Ask answers a prompt inside a stored chat. The answer is also pushed to
// the user's websocket connections.
func (h *Handler) Ask(c echo.Context) error {
	chatID, err := chatIDParam(c)
	if err != nil {
		return err
	}
	var in usecase.AskInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	res, err := h.chats.Ask(c.Request().Context(), currentUser(c), chatID, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) UploadPDF(c echo.Context) error {
	name, _, data, err := readUpload(c, MaxUploadSize)
	if err != nil {
		return err
	}
	res, err := h.documents.UploadPDF(c.Request().Context(), currentUser(c), name, data)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) UploadImage(c echo.Context) error {
	name, mimeType, data, err := readUpload(c, MaxUploadSize)
	if err != nil {
		return err
	}
	res, err := h.documents.UploadImage(c.Request().Context(), currentUser(c), name, mimeType, data)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Transcribe accepts a multipart "file" or a raw audio body.
func (h *Handler) Transcribe(c echo.Context) error {
	var audio []byte
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		_, _, data, err := readUpload(c, MaxAudioSize)
		if err != nil {
			return err
		}
		audio = data
	} else {
		data, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxAudioSize+1))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to read audio")
		}
		if len(data) > MaxAudioSize {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Audio too large")
		}
		audio = data
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Empty audio")
	}

	text, err := h.transcriber.Transcribe(c.Request().Context(), audio)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Transcription failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to transcribe audio")
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

// Speech reads out the latest answer of a chat as MP3.
func (h *Handler) Speech(c echo.Context) error {
	chatID, err := chatIDParam(c)
	if err != nil {
		return err
	}
	text, err := h.chats.LastAnswer(c.Request().Context(), currentUser(c), chatID)
	if err != nil {
		return h.fail(c, err)
	}
	audio, err := h.synthesizer.Synthesize(c.Request().Context(), text)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Speech synthesis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to synthesize speech")
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

func chatIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid chat id")
	}
	return id, nil
}

func readUpload(c echo.Context, limit int64) (name, mimeType string, data []byte, err error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusBadRequest, "Missing file")
	}
	if fh.Size > limit {
		return "", "", nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusBadRequest, "Failed to read file")
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusBadRequest, "Failed to read file")
	}
	return fh.Filename, fh.Header.Get(echo.HeaderContentType), data, nil
}
