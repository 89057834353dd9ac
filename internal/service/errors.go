package service

import (
	"errors"

	"messenger/internal/ws"
)

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrRecipientNotFound = ws.ErrRecipientNotFound
	ErrAlreadyActive     = ws.ErrAlreadyActive
	ErrDeliveryFailed    = ws.ErrDeliveryFailed
	ErrPersistenceFailed = errors.New("message store unavailable")
	ErrInvalidMessage    = errors.New("invalid message")
)
