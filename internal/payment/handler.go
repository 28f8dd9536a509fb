package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healink-eventcore/pkg/logger"
	"healink-eventcore/pkg/metrics"
	"healink-eventcore/pkg/xerrors"
)

// CallbackHandler is the HTTP listener gateways deliver asynchronous
// callbacks (IPN/webhooks) to.
type CallbackHandler struct {
	reconciler *Reconciler
	log        *logger.Logger
}

func NewCallbackHandler(reconciler *Reconciler, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{reconciler: reconciler, log: log}
}

func (h *CallbackHandler) Register(r *gin.Engine) {
	r.POST("/callbacks/:gateway", h.handle)
}

func (h *CallbackHandler) handle(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	signature := c.GetHeader("X-Signature")

	err = h.reconciler.HandleCallback(c.Request.Context(), payload, signature)
	switch {
	case err == nil:
		metrics.PaymentCallbacks.WithLabelValues("ok").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, xerrors.ErrUnknownTransaction):
		metrics.PaymentCallbacks.WithLabelValues("unknown_transaction").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown transaction"})
	case errors.Is(err, xerrors.ErrTransport), errors.Is(err, xerrors.ErrSerialization):
		metrics.PaymentCallbacks.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid callback"})
	default:
		metrics.PaymentCallbacks.WithLabelValues("error").Inc()
		h.log.Error("handle gateway callback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
