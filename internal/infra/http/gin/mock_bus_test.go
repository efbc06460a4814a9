package ginserver

// GoMock doubles of commands.Bus and queries.Bus in mockgen's layout.

import (
	context "context"
	reflect "reflect"

	commands "convo/internal/app/commands"
	queries "convo/internal/app/queries"
	gomock "github.com/golang/mock/gomock"
)

// MockCommandBus is a mock of Bus interface.
type MockCommandBus struct {
	ctrl     *gomock.Controller
	recorder *MockCommandBusMockRecorder
}

// MockCommandBusMockRecorder is the mock recorder for MockCommandBus.
type MockCommandBusMockRecorder struct {
	mock *MockCommandBus
}

// NewMockCommandBus creates a new mock instance.
func NewMockCommandBus(ctrl *gomock.Controller) *MockCommandBus {
	mock := &MockCommandBus{ctrl: ctrl}
	mock.recorder = &MockCommandBusMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCommandBus) EXPECT() *MockCommandBusMockRecorder {
	return m.recorder
}

// Dispatch mocks base method.
func (m *MockCommandBus) Dispatch(arg0 context.Context, arg1 commands.Command) (any, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Dispatch", arg0, arg1)
	ret0, _ := ret[0].(any)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Dispatch indicates an expected call of Dispatch.
func (mr *MockCommandBusMockRecorder) Dispatch(arg0, arg1 interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Dispatch", reflect.TypeOf((*MockCommandBus)(nil).Dispatch), arg0, arg1)
}

// MockQueryBus is a mock of Bus interface.
type MockQueryBus struct {
	ctrl     *gomock.Controller
	recorder *MockQueryBusMockRecorder
}

// MockQueryBusMockRecorder is the mock recorder for MockQueryBus.
type MockQueryBusMockRecorder struct {
	mock *MockQueryBus
}

// NewMockQueryBus creates a new mock instance.
func NewMockQueryBus(ctrl *gomock.Controller) *MockQueryBus {
	mock := &MockQueryBus{ctrl: ctrl}
	mock.recorder = &MockQueryBusMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockQueryBus) EXPECT() *MockQueryBusMockRecorder {
	return m.recorder
}

// Ask mocks base method.
func (m *MockQueryBus) Ask(arg0 context.Context, arg1 queries.Query) (any, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Ask", arg0, arg1)
	ret0, _ := ret[0].(any)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Ask indicates an expected call of Ask.
func (mr *MockQueryBusMockRecorder) Ask(arg0, arg1 interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ask", reflect.TypeOf((*MockQueryBus)(nil).Ask), arg0, arg1)
}
