package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ContextMessageID - ключ id записи гостевой книги из пути
const ContextMessageID = "message_id"

// ExtractUintParam разбирает положительный числовой параметр пути и кладет его в контекст как uint.
// Ноль и нечисловые значения дают 400 до проверки прав.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":      "Invalid " + paramName,
				"error_type": "validation_error",
			})
			return
		}
		c.Set(contextKey, uint(id))
		c.Next()
	}
}
