package middleware

import (
	"campus_edu_backend/internal/repository"
	"campus_edu_backend/internal/util"
	"campus_edu_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActivityMiddleware 记录用户最近活跃时间，失败不影响请求
func ActivityMiddleware(users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		claims := util.GetUserFromContext(c)
		if claims == nil {
			return
		}
		if err := users.UpdateLastSeen(claims.UserID); err != nil {
			logger.Log.Debug("failed to update last seen",
				zap.Uint("userId", claims.UserID), zap.Error(err))
		}
	}
}
