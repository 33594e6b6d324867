/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import "sync/atomic"

// Stats exposes the server façade's two atomic counters (§4.G, §5).
type Stats struct {
	activeHandlers    int64
	keepAliveHandlers int64
}

// ActiveHandlers is the count of connection workers between
// READING_REQUEST and the end of WRITING_RESPONSE.
func (s *Stats) ActiveHandlers() int64 { return atomic.LoadInt64(&s.activeHandlers) }

// KeepAliveHandlers is the count of connection workers currently IDLE,
// holding an open keep-alive socket.
func (s *Stats) KeepAliveHandlers() int64 { return atomic.LoadInt64(&s.keepAliveHandlers) }

func (s *Stats) enterActive()  { atomic.AddInt64(&s.activeHandlers, 1) }
func (s *Stats) leaveActive()  { atomic.AddInt64(&s.activeHandlers, -1) }
func (s *Stats) enterIdle()    { atomic.AddInt64(&s.keepAliveHandlers, 1) }
func (s *Stats) leaveIdle()    { atomic.AddInt64(&s.keepAliveHandlers, -1) }
