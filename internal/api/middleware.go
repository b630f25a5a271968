package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxelload/internal/auth"
)

const claimsKey = "claims"

// jwtMiddleware проверяет JWT токен в заголовке Authorization
func (s *Server) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Отсутствует токен авторизации",
			})
			return
		}

		// Проверяем формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Неверный формат токена",
			})
			return
		}

		claims, err := s.tokens.Validate(parts[1])
		if err != nil {
			s.logger.Debug("🔒 Отклонён токен: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Недействительный токен",
			})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// writeMiddleware запрещает изменяющие запросы для токенов только на чтение
func (s *Server) writeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get(claimsKey)
		if !exists {
			// аутентификация отключена
			c.Next()
			return
		}

		claims, ok := raw.(*auth.Claims)
		if !ok || claims.ReadOnly {
			c.AbortWithStatusJSON(http.StatusForbidden, GenericResponse{
				Success: false,
				Message: "Недостаточно прав доступа",
			})
			return
		}
		c.Next()
	}
}

func operatorOf(c *gin.Context) string {
	if raw, ok := c.Get(claimsKey); ok {
		if claims, ok := raw.(*auth.Claims); ok {
			return claims.Operator
		}
	}
	return "anonymous"
}
