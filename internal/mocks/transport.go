// Package mocks 提供测试用的接口模拟实现
package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// Transport 模拟 interfaces.Transport 实现
//
// 未设置的 XxxFunc 使用默认行为：Listen/Send/Close 成功，
// Interfaces 返回 IfacesValue。
type Transport struct {
	// 可覆盖的方法
	ListenFunc     func(h interfaces.PacketHandler) error
	SendFunc       func(ctx context.Context, data []byte, dst interfaces.Destination) error
	InterfacesFunc func() ([]types.Interface, error)
	CloseFunc      func() error

	// IfacesValue Interfaces 的默认返回值
	IfacesValue []types.Interface

	mu      sync.Mutex
	handler interfaces.PacketHandler

	// 调用记录
	SendCalls  []SendCall
	CloseCalls int
}

// SendCall 记录 Send 调用
type SendCall struct {
	Data []byte
	Dst  interfaces.Destination
}

// 确保实现接口
var _ interfaces.Transport = (*Transport)(nil)

// NewTransport 创建带有默认值的 Transport
func NewTransport() *Transport {
	return &Transport{}
}

// Listen 保存处理器
func (m *Transport) Listen(h interfaces.PacketHandler) error {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
	if m.ListenFunc != nil {
		return m.ListenFunc(h)
	}
	return nil
}

// Send 记录调用
func (m *Transport) Send(ctx context.Context, data []byte, dst interfaces.Destination) error {
	m.mu.Lock()
	m.SendCalls = append(m.SendCalls, SendCall{Data: append([]byte(nil), data...), Dst: dst})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, data, dst)
	}
	return nil
}

// Interfaces 返回接口列表
func (m *Transport) Interfaces() ([]types.Interface, error) {
	if m.InterfacesFunc != nil {
		return m.InterfacesFunc()
	}
	return m.IfacesValue, nil
}

// Close 关闭传输
func (m *Transport) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Handler 返回 Listen 注册的处理器
func (m *Transport) Handler() interfaces.PacketHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler
}

// Sent 返回 Send 调用记录的副本
func (m *Transport) Sent() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SendCall(nil), m.SendCalls...)
}
