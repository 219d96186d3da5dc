package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// Module + Code 决定错误类别，errors.Is 按这两个字段比较；
// Err 保存底层原因（可选），可以通过 errors.Unwrap 取出。
//
// 使用场景：
//   - 画像：INSUFFICIENT_PROFILE（调用方返回 404）
//   - 上游（向量库、地理库、编码服务）：UNAVAILABLE
//   - 请求参数：INVALID_INPUT
//   - 模型：NOT_TRAINED（仅内部使用，打分时按冷启动处理）
//   - 缓存：UNAVAILABLE（只记日志，不向外传播）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "vector", "profile"）
	Err     error  // 底层错误
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrXXX) 在包装后依然成立。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误链上是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链上的第一个 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// Wrap 以同样的 Module/Code 包装一个底层错误。
func (e *DomainError) Wrap(err error) *DomainError {
	return &DomainError{
		Module:  e.Module,
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound            = "NOT_FOUND"            // 资源不存在
	ErrorCodeNotSupported        = "NOT_SUPPORTED"        // 操作不支持
	ErrorCodeUnavailable         = "UNAVAILABLE"          // 服务不可用
	ErrorCodeInvalidInput        = "INVALID_INPUT"        // 输入无效
	ErrorCodeInternalError       = "INTERNAL_ERROR"       // 内部错误
	ErrorCodeInsufficientProfile = "INSUFFICIENT_PROFILE" // 画像数据不足
	ErrorCodeNotTrained          = "NOT_TRAINED"          // 模型尚未训练
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleVector    = "vector"    // 向量模块
	ModuleService   = "service"   // 服务模块
	ModuleProfile   = "profile"   // 画像模块
	ModuleModel     = "model"     // 模型模块
	ModuleGeo       = "geo"       // 地理模块
	ModuleCache     = "cache"     // 结果缓存
	ModuleRecommend = "recommend" // 推荐入口
)

var (
	// ErrInsufficientProfile 所有画像文本来源都为空
	ErrInsufficientProfile = NewDomainError(ModuleProfile, ErrorCodeInsufficientProfile, "profile: insufficient profile data")

	// ErrModelNotTrained 尚未发布任何模型代
	ErrModelNotTrained = NewDomainError(ModuleModel, ErrorCodeNotTrained, "model: not trained")

	// ErrInvalidInput 请求参数无效
	ErrInvalidInput = NewDomainError(ModuleRecommend, ErrorCodeInvalidInput, "recommend: invalid input")

	// ErrCacheUnavailable 缓存读写失败
	ErrCacheUnavailable = NewDomainError(ModuleCache, ErrorCodeUnavailable, "cache: unavailable")
)

// Unavailable 将上游失败包装为 UNAVAILABLE 错误。
func Unavailable(module string, err error) error {
	return &DomainError{
		Module:  module,
		Code:    ErrorCodeUnavailable,
		Message: module + ": upstream unavailable",
		Err:     err,
	}
}

// InvalidInput 返回带说明的 INVALID_INPUT 错误。
func InvalidInput(format string, args ...any) error {
	return ErrInvalidInput.Wrap(fmt.Errorf(format, args...))
}

// 通用错误检查函数

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsInsufficientProfile 检查错误是否为 INSUFFICIENT_PROFILE
func IsInsufficientProfile(err error) bool {
	return hasCode(err, ErrorCodeInsufficientProfile)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
