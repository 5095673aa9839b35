package httphandler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/wecomkit/internal/application"
	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

// maxCallbackBody caps the size of an inbound callback body.
const maxCallbackBody = 1 << 20

// Handler is the HTTP driving adapter that serves the callback URL and the
// JS-SDK helper API.
type Handler struct {
	callbacks *application.CallbackService
	sink      application.NotificationSink
	jssdk     *application.JSSDKService
	logger    *slog.Logger
}

// NewHandler creates a Handler. callbacks may be nil when no callback token
// and AES key are configured, in which case the callback routes answer 503.
func NewHandler(
	callbacks *application.CallbackService,
	sink application.NotificationSink,
	jssdk *application.JSSDKService,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = application.LogSink{Logger: logger}
	}
	return &Handler{
		callbacks: callbacks,
		sink:      sink,
		jssdk:     jssdk,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. metricsHandler is mounted at /metrics
// when non-nil.
func NewServeMux(h *Handler, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /callback", h.VerifyURL)
	mux.HandleFunc("POST /callback", h.Callback)
	mux.HandleFunc("GET /api/v1/jssdk/config", h.JSSDKConfig)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

func callbackQuery(r *http.Request) model.CallbackQuery {
	q := r.URL.Query()
	return model.CallbackQuery{
		MsgSignature: q.Get("msg_signature"),
		Timestamp:    q.Get("timestamp"),
		Nonce:        q.Get("nonce"),
	}
}

// VerifyURL answers the callback URL verification handshake with the
// decrypted echostr.
func (h *Handler) VerifyURL(w http.ResponseWriter, r *http.Request) {
	if h.callbacks == nil {
		writeError(w, http.StatusServiceUnavailable, "callback not configured")
		return
	}

	plain, err := h.callbacks.VerifyURL(callbackQuery(r), r.URL.Query().Get("echostr"))
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}

	writeText(w, http.StatusOK, "text/plain; charset=utf-8", plain)
}

// Callback authenticates and decrypts a notification and hands it to the sink.
// A reply from the sink is returned encrypted; otherwise the body is "success".
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.callbacks == nil {
		writeError(w, http.StatusServiceUnavailable, "callback not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	n, err := h.callbacks.Receive(callbackQuery(r), string(body))
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}

	reply, err := h.sink.Handle(r.Context(), n)
	if err != nil {
		h.logger.Error("notification sink failed",
			"msg_type", n.MsgType,
			"event", n.Event,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if reply == "" {
		writeText(w, http.StatusOK, "text/plain; charset=utf-8", "success")
		return
	}

	envelope, err := h.callbacks.BuildReply(reply, "", "")
	if err != nil {
		h.logger.Error("failed to build reply", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeText(w, http.StatusOK, "application/xml; charset=utf-8", envelope)
}

// JSSDKConfig returns signed JS-SDK parameters for the page in ?url=.
// ?scope=agent (default) signs with the agent ticket, ?scope=corp with the
// corp ticket.
func (h *Handler) JSSDKConfig(w http.ResponseWriter, r *http.Request) {
	if h.jssdk == nil {
		writeError(w, http.StatusServiceUnavailable, "jssdk not configured")
		return
	}

	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}

	var (
		cfg model.JSSDKConfig
		err error
	)
	switch r.URL.Query().Get("scope") {
	case "", "agent":
		cfg, err = h.jssdk.AgentConfig(r.Context(), pageURL)
	case "corp":
		cfg, err = h.jssdk.CorpConfig(r.Context(), pageURL)
	default:
		writeError(w, http.StatusBadRequest, "scope must be agent or corp")
		return
	}
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("jssdk config failed", "error", err)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
