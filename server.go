/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/badu/hookhttp/hlog"
)

// Config is the server façade's flat option list (§6).
type Config struct {
	Port        int
	BindAddress string

	// StoreFileUploadInFileAtSize is the multipart spill threshold.
	StoreFileUploadInFileAtSize int64
	TempDir                     string

	ReadTimeout      time.Duration
	KeepAliveTimeout time.Duration
	MaxHeaderBytes   int64

	OutputExceptionInformation bool
	UseGzip                    GzipMode

	// TLSProvider is optional; nil means plaintext TCP only.
	TLSProvider TLSProvider

	// Logger defaults to hlog.Default() when nil.
	Logger hlog.Logger

	// Handler is optional and consulted only when no registered hook
	// matches a request's (protocol, host, port, path); with no Handler
	// such a request gets a 404. Most deployments instead register hooks
	// via AddHook.
	Handler HandlerFunc

	// ErrorHandler receives the request and the error caught from a
	// panicking handler or a non-skippable-hook bug (§4.G). A nil result,
	// or a panic inside ErrorHandler itself, falls back to the default
	// error page rendered with the original status.
	ErrorHandler func(*Request, error) *Response
}

func (c Config) withDefaults() Config {
	if c.StoreFileUploadInFileAtSize <= 0 {
		c.StoreFileUploadInFileAtSize = 16 << 20
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = 20 * time.Second
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = 64 << 10
	}
	return c
}

// Server is the façade described by §4.G: lifecycle, stats, the hook list,
// and the handler/error-handler slots.
type Server struct {
	config Config
	hooks  HookSet
	stats  Stats

	mu               sync.Mutex
	listener         *Listener
	stopping         bool
	stopOnce         sync.Once
	conns            sync.Map // net.Conn -> *connRecord
	wg               sync.WaitGroup
	shutdownComplete chan struct{}
}

type connRecord struct {
	nc   net.Conn
	idle atomic.Bool
}

// NewServer builds a Server from cfg, applying the defaults in §6.
func NewServer(cfg Config) *Server {
	return &Server{
		config:           cfg.withDefaults(),
		shutdownComplete: make(chan struct{}),
	}
}

// AddHook registers h in specificity order (§3, §5).
func (s *Server) AddHook(h Hook) error { return s.hooks.Insert(h) }

// RemoveHook deletes the first hook matching h's matcher fields.
func (s *Server) RemoveHook(h Hook) bool { return s.hooks.Remove(h) }

// Stats exposes the live atomic counters.
func (s *Server) Stats() *Stats { return &s.stats }

// ShutdownComplete fires once Stop has drained every connection worker.
func (s *Server) ShutdownComplete() <-chan struct{} { return s.shutdownComplete }

func (s *Server) logger() hlog.Logger {
	if s.config.Logger != nil {
		return s.config.Logger
	}
	return hlog.Default()
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// Start opens the listening socket and begins accepting connections in a
// background goroutine. It returns once the socket is bound.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	ln, err := Listen(addr)
	if err != nil {
		return err
	}
	if s.config.TLSProvider != nil {
		ln.SetTLSProvider(s.config.TLSProvider)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound listening address, valid only after Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln *Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopping() {
				return
			}
			s.logger().Warnf("hookhttp: accept error: %v", err)
			return
		}
		rec := &connRecord{nc: conn}
		s.conns.Store(conn, rec)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.conns.Delete(conn)
			s.serveConn(conn, rec)
		}()
	}
}

// Stop implements gentle (brutal=false) and brutal (brutal=true) shutdown
// (§4.A, §5). Gentle stop disables new accepts and closes only currently
// IDLE connections, letting in-flight requests finish; brutal stop closes
// every connection immediately. Either way ShutdownComplete fires once
// every worker has returned.
func (s *Server) Stop(brutal bool) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		ln := s.listener
		s.mu.Unlock()

		if ln != nil {
			ln.Close()
		}

		s.conns.Range(func(_, v interface{}) bool {
			rec := v.(*connRecord)
			if brutal || rec.idle.Load() {
				rec.nc.Close()
			}
			return true
		})

		go func() {
			s.wg.Wait()
			close(s.shutdownComplete)
		}()
	})
}
