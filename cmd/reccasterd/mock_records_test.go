// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"
)

// mockRecordSource is a hand-authored gomock mock of RecordSource, in the
// shape mockgen would generate for resultstore's upload_client_test.go
// collaborators: a controller-backed recorder wrapping one method per
// interface method.
type mockRecordSource struct {
	ctrl     *gomock.Controller
	recorder *mockRecordSourceRecorder
}

type mockRecordSourceRecorder struct {
	mock *mockRecordSource
}

func newMockRecordSource(ctrl *gomock.Controller) *mockRecordSource {
	m := &mockRecordSource{ctrl: ctrl}
	m.recorder = &mockRecordSourceRecorder{mock: m}
	return m
}

func (m *mockRecordSource) EXPECT() *mockRecordSourceRecorder {
	return m.recorder
}

func (m *mockRecordSource) Records(ctx context.Context) ([]Record, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Records", ctx)
	records, _ := ret[0].([]Record)
	err, _ := ret[1].(error)
	return records, err
}

func (r *mockRecordSourceRecorder) Records(ctx interface{}) *gomock.Call {
	r.mock.ctrl.T.Helper()
	return r.mock.ctrl.RecordCallWithMethodType(r.mock, "Records", reflect.TypeOf((*mockRecordSource)(nil).Records), ctx)
}
