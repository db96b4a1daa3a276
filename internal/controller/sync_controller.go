package controller

import (
	"campus_edu_backend/internal/service"
	"campus_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SyncController struct {
	Service *service.ScoreSyncService
}

func NewSyncController(svc *service.ScoreSyncService) *SyncController {
	return &SyncController{Service: svc}
}

// @Summary 手动触发单次作答的成绩同步
// @Tags 成绩同步
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/admin/attempts/{id}/sync [post]
func (c *SyncController) SyncAttempt(ctx *gin.Context) {
	attemptID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	if err := c.Service.SyncAttemptScore(ctx.Request.Context(), attemptID); err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
