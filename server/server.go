// Copyright 2020 - present Alex Dukhno
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package server ties the pieces together: it owns the catalog, the
// executor and the listeners, and runs one protocol goroutine per
// client connection.
package server

import (
	"context"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/omofolarin/isomorphicdb/sql"
	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/pgwire"
	"github.com/omofolarin/isomorphicdb/util/log"
	"github.com/omofolarin/isomorphicdb/util/metric"
)

// Config holds the server's startup settings.
type Config struct {
	// Addr is the address the SQL listener binds, e.g. ":5432".
	Addr string
	// MetricsAddr, when set, serves prometheus metrics over HTTP.
	MetricsAddr string
}

// Server is a running database instance.
type Server struct {
	cfg      Config
	registry *metric.Registry
	pgServer *pgwire.Server

	listener net.Listener
	group    *errgroup.Group
	cancel   context.CancelFunc
}

// New assembles a server with a fresh in-memory catalog.
func New(cfg Config) *Server {
	registry := metric.NewRegistry()
	executor := sql.NewExecutor(catalog.NewMem(), registry)
	return &Server{
		cfg:      cfg,
		registry: registry,
		pgServer: pgwire.NewServer(executor, registry),
	}
}

// Start binds the listeners and begins accepting connections. It does
// not block; use Wait to block until shutdown.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	log.Infof("listening for SQL connections on %s", listener.Addr())

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	s.group.Go(func() error {
		return s.acceptLoop(ctx)
	})
	if s.cfg.MetricsAddr != "" {
		s.group.Go(func() error {
			return s.serveMetrics(ctx)
		})
	}
	return nil
}

// Addr returns the bound SQL listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Wait blocks until the server stops.
func (s *Server) Wait() error {
	return s.group.Wait()
}

// Stop closes the listeners and waits for the connection goroutines to
// drain.
func (s *Server) Stop() {
	s.cancel()
	_ = s.listener.Close()
	_ = s.group.Wait()
	log.Flush()
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		s.group.Go(func() error {
			defer conn.Close()
			if err := s.pgServer.ServeConn(ctx, conn); err != nil {
				// A dropped connection is the client's business, not a
				// server failure.
				log.Warningf("connection %s: %v", conn.RemoteAddr(), err)
			}
			return nil
		})
	}
}

func (s *Server) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.registry.Handler())
	srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.Infof("serving metrics on %s/metrics", s.cfg.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
