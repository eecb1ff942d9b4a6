package itemstore

import (
	"errors"
	"fmt"
)

// 业务错误，由 API 层映射为 HTTP 状态码。
// 任何失败都不会修改本地缓存（无部分写入）。
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("item not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PersistenceError 表示远端存储调用失败（网络、约束冲突或服务端错误）。
type PersistenceError struct {
	Op  string // 失败的操作，如 "insert"、"update_status"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError 判断 err 是否为远端存储错误。
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
