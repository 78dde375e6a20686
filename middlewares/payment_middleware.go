package middlewares

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

const (
	SignatureHeader = "X-Gateway-Signature"
	maxWebhookBody  = 64 << 10
)

// WebhookSignature rejects gateway callbacks whose body does not match the signature
// header. The body is restored for the handler.
func WebhookSignature(validate func(body []byte, signature string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("unreadable request body"))
			c.Abort()
			return
		}
		if len(body) > maxWebhookBody {
			utils.RespondError(c, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
			c.Abort()
			return
		}

		if !validate(body, c.GetHeader(SignatureHeader)) {
			utils.InfoLogger.WithField("client_ip", c.ClientIP()).Warn("Rejected webhook with invalid signature")
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid signature"))
			c.Abort()
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// LogPaymentRequest logs payment calls with the order and status they ended with.
func LogPaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		utils.InfoLogger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"order_id": c.Param("order_id"),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("Payment request")
	}
}
