package chatsync

// GoMock double of API in mockgen's layout.

import (
	context "context"
	reflect "reflect"
	time "time"

	dto "convo/internal/app/dto"
	gomock "github.com/golang/mock/gomock"
)

// MockAPI is a mock of API interface.
type MockAPI struct {
	ctrl     *gomock.Controller
	recorder *MockAPIMockRecorder
}

// MockAPIMockRecorder is the mock recorder for MockAPI.
type MockAPIMockRecorder struct {
	mock *MockAPI
}

// NewMockAPI creates a new mock instance.
func NewMockAPI(ctrl *gomock.Controller) *MockAPI {
	mock := &MockAPI{ctrl: ctrl}
	mock.recorder = &MockAPIMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAPI) EXPECT() *MockAPIMockRecorder {
	return m.recorder
}

// ListConversations mocks base method.
func (m *MockAPI) ListConversations(arg0 context.Context) (dto.ConversationList, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListConversations", arg0)
	ret0, _ := ret[0].(dto.ConversationList)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListConversations indicates an expected call of ListConversations.
func (mr *MockAPIMockRecorder) ListConversations(arg0 interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListConversations", reflect.TypeOf((*MockAPI)(nil).ListConversations), arg0)
}

// ListMessages mocks base method.
func (m *MockAPI) ListMessages(arg0 context.Context, arg1 Target, arg2 time.Time) (dto.MessagePage, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListMessages", arg0, arg1, arg2)
	ret0, _ := ret[0].(dto.MessagePage)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListMessages indicates an expected call of ListMessages.
func (mr *MockAPIMockRecorder) ListMessages(arg0, arg1, arg2 interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListMessages", reflect.TypeOf((*MockAPI)(nil).ListMessages), arg0, arg1, arg2)
}

// SendMessage mocks base method.
func (m *MockAPI) SendMessage(arg0 context.Context, arg1 SendRequest, arg2 string) (dto.SendResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendMessage", arg0, arg1, arg2)
	ret0, _ := ret[0].(dto.SendResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SendMessage indicates an expected call of SendMessage.
func (mr *MockAPIMockRecorder) SendMessage(arg0, arg1, arg2 interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendMessage", reflect.TypeOf((*MockAPI)(nil).SendMessage), arg0, arg1, arg2)
}
