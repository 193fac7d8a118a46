package publish

import "errors"

var (
	// ErrAlreadyPublished 已存在发布中的服务
	ErrAlreadyPublished = errors.New("publish: a service is already published")

	// ErrInvalidService 服务参数无效
	ErrInvalidService = errors.New("publish: invalid service")

	// ErrNameConflict 服务名已被其他主机使用
	ErrNameConflict = errors.New("publish: service name conflict")

	// ErrSendFailed 发送报文失败
	ErrSendFailed = errors.New("publish: send failed")
)
