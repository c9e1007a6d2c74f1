package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	platformerrors "github.com/xiangmingya/DownloadMusic/internal/platform/errors"
)

// APIResponse 定义统一的接口返回结构体
type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RespondSuccess 返回成功响应
func RespondSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    0,
		Message: "Success",
		Data:    data,
	})
}

// RespondError 返回失败响应
func RespondError(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    -1,
		Message: message,
	})
}

// RespondUnauthorized 返回未登录响应
func RespondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, APIResponse{
		Code:    http.StatusUnauthorized,
		Message: "Unauthorized",
	})
}

// RespondAppError 按错误类别映射状态码，正文只放收敛后的文案，
// 上游原始错误不出网关。
func RespondAppError(c *gin.Context, err error) {
	RespondError(c, platformerrors.HTTPStatus(err), platformerrors.ClientMessage(err))
}
