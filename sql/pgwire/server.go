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

// Package pgwire serves the PostgreSQL version 3 wire protocol on top
// of the SQL executor.
package pgwire

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omofolarin/isomorphicdb/sql"
	"github.com/omofolarin/isomorphicdb/util/log"
	"github.com/omofolarin/isomorphicdb/util/metric"
)

const (
	version30     = 196608
	versionSSL    = 80877103
	versionCancel = 80877102
)

// Server speaks the protocol's startup phase and hands established
// connections to a v3Conn.
type Server struct {
	executor *sql.Executor

	connCount   prometheus.Counter
	activeConns prometheus.Gauge
}

// NewServer creates a protocol server on the executor.
func NewServer(executor *sql.Executor, reg *metric.Registry) *Server {
	return &Server{
		executor: executor,
		connCount: reg.Counter("connections_total",
			"Client connections accepted."),
		activeConns: reg.Gauge("connections_active",
			"Client connections currently established."),
	}
}

// ServeConn runs the protocol on one client connection until the
// client terminates or the connection fails.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	s.connCount.Inc()
	s.activeConns.Inc()
	defer s.activeConns.Dec()

	var buf readBuffer
	for {
		if err := buf.readUntypedMsg(conn); err != nil {
			return err
		}
		version, err := buf.getInt32()
		if err != nil {
			return err
		}
		switch version {
		case versionSSL:
			// TLS is not supported; the client falls back to cleartext.
			if _, err := conn.Write([]byte{'N'}); err != nil {
				return err
			}

		case versionCancel:
			// Query cancellation is not supported. The cancel connection
			// is simply closed, which the protocol permits.
			return nil

		case version30:
			v3conn, err := newV3Conn(conn, buf.msg, s.executor)
			if err != nil {
				return err
			}
			if log.V() {
				log.Verbosef("session %s: started for %s", v3conn.session.ID, conn.RemoteAddr())
			}
			err = v3conn.serve(ctx)
			if err != nil {
				return errors.Wrapf(err, "session %s", v3conn.session.ID)
			}
			return nil

		default:
			return errors.Newf("unknown protocol version %d", version)
		}
	}
}
