package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ErrForbidden 当前用户无权操作该记录
var ErrForbidden = errors.New("operation not permitted")

// ErrNotDraft 记录已提交，不能再修改
var ErrNotDraft = errors.New("only draft records can be changed")

// ErrSessionNotFound 上传会话不存在或已过期
var ErrSessionNotFound = errors.New("upload session not found")

// ValidationError 单条校验失败
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationErrors carries every violated rule, never just the first.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	return strings.Join(e.Messages(), "; ")
}

// Messages returns the human readable message of each violation.
func (e ValidationErrors) Messages() []string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// DocumentError 文档无法解析
type DocumentError struct {
	Op  string
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("invalid document: %s: %v", e.Op, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// ExtractionError 字段提取服务调用失败
type ExtractionError struct {
	Cause      string
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extraction failed: %s (status %d)", e.Cause, e.StatusCode)
	}
	return fmt.Sprintf("extraction failed: %s", e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError 数据库写入或查询失败
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
