package browse

import "errors"

var (
	// ErrBrowserExists 已存在浏览会话
	ErrBrowserExists = errors.New("browse: a browser is already running")

	// ErrInvalidBrowse 浏览参数无效
	ErrInvalidBrowse = errors.New("browse: invalid browse request")

	// ErrSendFailed 发送查询失败
	ErrSendFailed = errors.New("browse: send failed")
)
