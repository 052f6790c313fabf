// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sockio

import "errors"

var (
	// ErrTimeout is returned by every blocking primitive in this package
	// when its deadline elapses or the associated Waker fires. Callers
	// must not be able to tell the two apart (§I4, §9).
	ErrTimeout = errors.New("sockio: timed out")

	// ErrClosed is returned when the peer closes the connection cleanly at
	// a point where a caller was expecting to read or write a nonzero
	// number of bytes as the very first byte of the operation.
	ErrClosed = errors.New("sockio: connection closed")

	// ErrMidFrameClose is returned when the peer closes the connection
	// after delivering some, but not all, of the bytes a recv/send
	// primitive required. This must never be reported the same way as
	// ErrClosed: a partial frame is a protocol violation, not a clean
	// disconnect.
	ErrMidFrameClose = errors.New("sockio: connection closed mid-frame")
)
