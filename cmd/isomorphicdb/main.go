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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/omofolarin/isomorphicdb/server"
	"github.com/omofolarin/isomorphicdb/util/log"
)

func main() {
	addr := flag.String("addr", ":5432", "address to listen for SQL connections on")
	metricsAddr := flag.String("metrics-addr", "", "address to serve prometheus metrics on; empty disables")
	flag.Parse()

	s := server.New(server.Config{
		Addr:        *addr,
		MetricsAddr: *metricsAddr,
	})
	if err := s.Start(context.Background()); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Infof("shutting down")
	s.Stop()
}
