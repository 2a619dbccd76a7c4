package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

func init() {
	RegisterService(ServiceCommon, "common")
	RegisterService(ServiceInfraStorage, "storage")
	RegisterService(ServiceInfraCache, "cache")
}

// OK is the zero-code success value.
var OK = &Errno{Code: 0, HTTP: http.StatusOK, GRPCCode: codes.OK, MessageEN: "success", MessageZH: "成功"}

// Common errors (service 00).
var (
	ErrBadRequest       = NewRequestErr(ServiceCommon, 1, "Bad request", "请求错误")
	ErrInvalidParam     = NewRequestErr(ServiceCommon, 2, "Invalid parameter", "参数无效")
	ErrValidationFailed = NewRequestErr(ServiceCommon, 3, "Validation failed", "校验失败")

	ErrUnauthorized = NewAuthErr(ServiceCommon, 1, "Unauthorized", "未认证")
	ErrInvalidToken = NewAuthErr(ServiceCommon, 2, "Invalid token", "令牌无效")

	ErrNotFound      = NewNotFoundErr(ServiceCommon, 1, "Resource not found", "资源不存在")
	ErrRouteNotFound = NewNotFoundErr(ServiceCommon, 2, "Route not found", "路由不存在")

	ErrTooManyRequests = NewRateLimitErr(ServiceCommon, 1, "Too many requests", "请求过于频繁")

	ErrInternal           = NewInternalErr(ServiceCommon, 1, "Internal server error", "服务器内部错误")
	ErrServiceUnavailable = NewError(ServiceCommon, CategoryInternal, 2, http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用")
)

// Infrastructure errors.
var (
	ErrStorage = NewDatabaseErr(ServiceInfraStorage, 1, "Storage operation failed", "存储操作失败")
	ErrCache   = NewCacheErr(ServiceInfraCache, 1, "Cache operation failed", "缓存操作失败")
)
