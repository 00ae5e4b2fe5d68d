package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drewrad8/strategos/pkg/apierr"
)

// errorBody is the wire shape of every non-2xx response (spec.md §7).
type errorBody struct {
	Kind    apierr.Kind `json:"kind"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	RetryMs int64       `json:"retryMs,omitempty"`
}

// abortWithError records aerr on the gin context and aborts the chain.
// ErrorMiddleware performs the actual translation to JSON once
// c.Next() unwinds, keeping response shaping in one place regardless
// of which handler produced the error.
func abortWithError(c *gin.Context, aerr *apierr.Error) {
	_ = c.Error(aerr)
	c.Abort()
}

// ErrorMiddleware translates the *apierr.Error left behind by a
// handler into the {error:{kind,message,field?}} envelope and the
// Kind's mapped HTTP status. Mirrors the teacher's practice of
// centralizing wire-error shaping in one middleware rather than
// repeating json.Encode calls in every handler.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		aerr, ok := apierr.As(err)
		if !ok {
			aerr = apierr.Internal(err.Error())
		}

		c.JSON(aerr.Kind.HTTPStatus(), gin.H{"error": errorBody{
			Kind:    aerr.Kind,
			Message: aerr.Message,
			Field:   aerr.Field,
			RetryMs: aerr.RetryMs,
		}})
	}
}

func badRequest(c *gin.Context, field, message string) {
	abortWithError(c, apierr.Validation(field, message))
}

func jsonOK(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}
