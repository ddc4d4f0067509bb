// Package gin adapts the payment gate to Gin. It is a thin layer over the
// middleware package: protocol decisions live in the Gatekeeper, this
// package only translates them to gin.Context calls and buffers the handler
// response so settlement still runs before the first byte leaves.
package gin

import (
	"bytes"

	"github.com/gin-gonic/gin"

	"github.com/clearroute/paygate/middleware"
	"github.com/clearroute/paygate/types"
)

// VerificationContextKey is the gin context key holding the facilitator's
// verification result for gated requests.
const VerificationContextKey = "paygate_verification"

// Payment returns a Gin middleware gating the given operation. Attach it to
// the route serving that operation:
//
//	r.GET("/forecast", ginpay.Payment(gatekeeper, "get_weather_forecast"), forecastHandler)
func Payment(g *middleware.Gatekeeper, operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		adm, denial := g.Admit(c.Request.Context(), operation, c.GetHeader(middleware.PaymentHeader))
		if denial != nil {
			c.AbortWithStatusJSON(denial.Status, denial.Body)
			return
		}
		if adm == nil {
			c.Next()
			return
		}

		c.Set(VerificationContextKey, adm.Verification)
		c.Request = c.Request.WithContext(
			middleware.WithVerification(c.Request.Context(), adm.Verification))

		buffered := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = buffered
		c.Next()

		if receipt := g.Settle(c.Request.Context(), adm); receipt != nil {
			if encoded, err := middleware.EncodeReceipt(*receipt); err == nil {
				buffered.Header().Set(middleware.PaymentResponseHeader, encoded)
			}
		}
		buffered.flush()
		c.Writer = buffered.ResponseWriter
	}
}

// GetVerification returns the verification result stored by Payment, or nil
// for ungated requests.
func GetVerification(c *gin.Context) *types.VerificationResult {
	value, ok := c.Get(VerificationContextKey)
	if !ok {
		return nil
	}
	result, _ := value.(*types.VerificationResult)
	return result
}

// bufferedWriter holds back status and body until flush so the receipt
// header can be attached after the handler has run.
type bufferedWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.status == 0 && code > 0 {
		w.status = code
	}
}

// WriteHeaderNow is suppressed; nothing is committed until flush.
func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = 200
	}
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	if w.status == 0 {
		w.status = 200
	}
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	if w.status == 0 {
		return 200
	}
	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.status != 0 || w.body.Len() > 0
}

func (w *bufferedWriter) flush() {
	w.ResponseWriter.WriteHeader(w.Status())
	_, _ = w.ResponseWriter.Write(w.body.Bytes())
}
