// Package iosvcmock provides a hand-written gomock-style double for
// ioservice.Sink, for asserting PRINT dispatch without spinning up a real
// I/O manager thread; no test in this repository imports it. It is written by hand
// rather than run through mockgen, but follows the same generated-mock
// shape (NewMockX, EXPECT(), typed call recorders) so it drops in wherever
// a go.uber.org/mock double would.
package iosvcmock

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/JoaquimCruz/Multicore-simulator/internal/ioservice"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
)

// MockSink is a mock of the ioservice.Sink interface.
type MockSink struct {
	ctrl     *gomock.Controller
	recorder *MockSinkMockRecorder
}

// MockSinkMockRecorder records expected calls on a MockSink.
type MockSinkMockRecorder struct {
	mock *MockSink
}

// NewMockSink returns a MockSink that registers its expectations with ctrl.
func NewMockSink(ctrl *gomock.Controller) *MockSink {
	m := &MockSink{ctrl: ctrl}
	m.recorder = &MockSinkMockRecorder{mock: m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSink) EXPECT() *MockSinkMockRecorder {
	return m.recorder
}

// RegisterWaiting mocks ioservice.Sink.RegisterWaiting.
func (m *MockSink) RegisterWaiting(p *pcb.PCB) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "RegisterWaiting", p)
}

// RegisterWaiting indicates an expected call of RegisterWaiting.
func (mr *MockSinkMockRecorder) RegisterWaiting(p interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(
		mr.mock, "RegisterWaiting",
		reflect.TypeOf((*MockSink)(nil).RegisterWaiting), p,
	)
}

// EnqueueRequest mocks ioservice.Sink.EnqueueRequest.
func (m *MockSink) EnqueueRequest(req ioservice.Request) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "EnqueueRequest", req)
}

// EnqueueRequest indicates an expected call of EnqueueRequest.
func (mr *MockSinkMockRecorder) EnqueueRequest(req interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(
		mr.mock, "EnqueueRequest",
		reflect.TypeOf((*MockSink)(nil).EnqueueRequest), req,
	)
}

var _ ioservice.Sink = (*MockSink)(nil)
