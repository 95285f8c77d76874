package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/middleware"
	"collaborative-canvas/internal/service"
)

// CanvasHandler 封装了画布元数据管理的 HTTP 处理逻辑。
// 画布内容本身通过同步连接读写，这里只管元数据的增删查。
type CanvasHandler struct {
	canvasService *service.CanvasService
}

// NewCanvasHandler 创建 CanvasHandler 实例
func NewCanvasHandler(canvasService *service.CanvasService) *CanvasHandler {
	return &CanvasHandler{canvasService: canvasService}
}

// currentUserID 从 Gin 上下文中取出认证中间件写入的用户 ID。
// 中间件缺失或类型不符时返回 false，调用方应拒绝请求。
func currentUserID(c *gin.Context) (string, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		logrus.Warn("Handler: User ID not found in context, middleware missing or failed?")
		return "", false
	}
	userID, ok := userIDAny.(string)
	if !ok || userID == "" {
		logrus.Error("Handler: User ID in context is not a non-empty string")
		return "", false
	}
	return userID, true
}

// CreateCanvasRequest 定义创建画布请求的结构体
type CreateCanvasRequest struct {
	Name string `json:"name" binding:"omitempty,max=191"` // 名称可选，缺省按画布 ID 生成
}

// CreateCanvasResponse 定义创建画布成功的响应结构体
type CreateCanvasResponse struct {
	Message  string `json:"message"`
	CanvasID string `json:"canvas_id"`
	Name     string `json:"name"`
}

// CreateCanvas 处理创建新画布的请求
func (h *CanvasHandler) CreateCanvas(c *gin.Context) {
	// 1. 获取认证用户 ID
	userID, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	// 2. 绑定请求体（允许空 body，此时用缺省名称）
	var req CreateCanvasRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logCtx.WithError(err).Warn("Handler.CreateCanvas: Invalid input format")
			ErrorResponse(c, http.StatusBadRequest, "Invalid input")
			return
		}
	}

	// 3. 调用 Service 层创建画布
	canvas, err := h.canvasService.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.CreateCanvas: Failed to create canvas via service")
		HandleServiceError(c, err)
		return
	}

	// 4. 成功响应
	logCtx.WithField("canvas_id", canvas.ID).Info("Handler.CreateCanvas: Canvas created successfully")
	SuccessResponse(c, http.StatusOK, CreateCanvasResponse{
		Message:  "Canvas created successfully",
		CanvasID: canvas.ID,
		Name:     canvas.Name,
	})
}

// ListCanvases 返回当前用户拥有的全部画布
func (h *CanvasHandler) ListCanvases(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	canvases, err := h.canvasService.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Handler.ListCanvases: Failed to list canvases")
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"canvases": canvases})
}

// GetCanvas 返回单块画布的元数据（不含画布内容）
func (h *CanvasHandler) GetCanvas(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	canvasID := c.Param("id")

	canvas, err := h.canvasService.Get(c.Request.Context(), canvasID)
	if err != nil {
		logrus.WithError(err).WithField("canvas_id", canvasID).Warn("Handler.GetCanvas: Failed to load canvas")
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, canvas)
}

// DeleteCanvas 删除画布，仅画布所有者可以执行
func (h *CanvasHandler) DeleteCanvas(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	canvasID := c.Param("id")
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "canvas_id": canvasID})

	if err := h.canvasService.Delete(c.Request.Context(), canvasID, userID); err != nil {
		logCtx.WithError(err).Warn("Handler.DeleteCanvas: Failed to delete canvas")
		HandleServiceError(c, err)
		return
	}

	logCtx.Info("Handler.DeleteCanvas: Canvas deleted successfully")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Canvas deleted successfully"})
}
