// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reccaster

import "errors"

var (
	// errProtocol marks a framing or handshake violation: bad magic,
	// wrong message id where one was expected, a malformed body. Per
	// §7's error kind 2, these are treated the same as a transient I/O
	// failure, just logged with more detail.
	errProtocol = errors.New("reccaster: protocol violation")

	// errServerTimeout marks the maintenance loop's failure when a read
	// from the server gets no data for 4x the base timeout (§4.3.2,
	// scenario S3).
	errServerTimeout = errors.New("reccaster: server timeout")
)
