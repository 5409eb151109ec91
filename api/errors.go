package api

import (
	"net/http"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/gin-gonic/gin"
)

var statusByKind = map[domain.ErrorKind]int{
	domain.KindValidation:    http.StatusBadRequest,
	domain.KindAuthorization: http.StatusForbidden,
	domain.KindNotFound:      http.StatusNotFound,
	domain.KindConflict:      http.StatusConflict,
	domain.KindCapacity:      http.StatusConflict,
	domain.KindPersistence:   http.StatusServiceUnavailable,
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
		_ = c.Error(err)
		return
	}
	body := gin.H{"error": err.Error(), "code": kind}
	if kind == domain.KindPersistence {
		body["retryable"] = true
	}
	c.JSON(status, body)
}
