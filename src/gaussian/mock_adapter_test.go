package gaussian

import (
	"reflect"

	"github.com/golang/mock/gomock"

	"SplatSphere/src/library/entity"
)

type MockStateAdapter struct {
	ctrl     *gomock.Controller
	recorder *MockStateAdapterMockRecorder
}

type MockStateAdapterMockRecorder struct {
	mock *MockStateAdapter
}

func NewMockStateAdapter(ctrl *gomock.Controller) *MockStateAdapter {
	mock := &MockStateAdapter{ctrl: ctrl}
	mock.recorder = &MockStateAdapterMockRecorder{mock}
	return mock
}

func (m *MockStateAdapter) EXPECT() *MockStateAdapterMockRecorder {
	return m.recorder
}

func (m *MockStateAdapter) Extend(field entity.Field, rows int) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Extend", field, rows)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockStateAdapterMockRecorder) Extend(field, rows interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Extend", reflect.TypeOf((*MockStateAdapter)(nil).Extend), field, rows)
}

func (m *MockStateAdapter) Compact(field entity.Field, removed []bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Compact", field, removed)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockStateAdapterMockRecorder) Compact(field, removed interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Compact", reflect.TypeOf((*MockStateAdapter)(nil).Compact), field, removed)
}

func (m *MockStateAdapter) Reset(field entity.Field, rows int) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Reset", field, rows)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockStateAdapterMockRecorder) Reset(field, rows interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Reset", reflect.TypeOf((*MockStateAdapter)(nil).Reset), field, rows)
}
