// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/rootsim-go/ckptengine/cfg"
	"github.com/rootsim-go/ckptengine/clock"
	"github.com/rootsim-go/ckptengine/internal/ckerr"
	"github.com/rootsim-go/ckptengine/internal/engine"
	ilogger "github.com/rootsim-go/ckptengine/internal/logger"
	imemory "github.com/rootsim-go/ckptengine/internal/memory"
	"github.com/rootsim-go/ckptengine/internal/metrics"

	sdkotel "go.opentelemetry.io/otel"
)

func main() {
	Execute()
}

// shutdownFn joins one or more teardown steps into a single call,
// grounded on the teacher's common.JoinShutdownFunc.
type shutdownFn func(ctx context.Context) error

func joinShutdown(fns ...shutdownFn) shutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if e := fn(ctx); e != nil {
				err = e
			}
		}
		return err
	}
}

func buildMetricsHandle(c cfg.Config) (metrics.Handle, shutdownFn, error) {
	if err := ilogger.InitLogFile(ilogger.LoggingConfig{
		FilePath: c.Logging.FilePath,
		Severity: c.Logging.Severity,
		Format:   c.Logging.Format,
		Rotate: ilogger.RotateConfig{
			MaxFileSizeMB:   c.Logging.MaxFileSizeMB,
			BackupFileCount: c.Logging.BackupFileCount,
			Compress:        c.Logging.Compress,
		},
	}); err != nil {
		return nil, nil, err
	}
	ilogger.SetLogFormat(c.Logging.Format)

	switch c.Metrics.Exporter {
	case "otel", "prometheus":
		exporter, err := otelprom.New()
		if err != nil {
			return nil, nil, fmt.Errorf("building prometheus exporter: %w", err)
		}
		provider := metric.NewMeterProvider(metric.WithReader(exporter))
		sdkotel.SetMeterProvider(provider)

		h, err := metrics.NewOTelHandle()
		if err != nil {
			return nil, nil, fmt.Errorf("building otel metrics handle: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: ":9464", Handler: mux}
		go func() {
			ilogger.Infof("serving prometheus metrics on %s/metrics", srv.Addr)
			_ = srv.ListenAndServe()
		}()

		return h, joinShutdown(func(ctx context.Context) error { return srv.Shutdown(ctx) },
			func(ctx context.Context) error { return provider.Shutdown(ctx) }), nil
	default:
		return metrics.NewNoopHandle(), nil, nil
	}
}

// fatalIfAllocationFailed aborts the process when err is an
// AllocationFailed ckerr.Error: the engine has no backing memory for a
// checkpoint blob, and every other ckerr.Kind is left to propagate as a
// normal returned error instead.
func fatalIfAllocationFailed(err error) {
	ckErr, ok := err.(*ckerr.Error)
	if ok && ckErr.Kind == ckerr.AllocationFailed {
		ilogger.Fatal("lp=%s: %v", ckErr.LPID, ckErr)
	}
}

// run exercises the engine against numLPs synthetic logical processes
// for rounds allocate/write/checkpoint cycles each, fossil-collecting
// every cfg.Queue.FossilEvery rounds. It never restores an LP.
func run(c cfg.Config, numLPs, rounds int) error {
	h, shutdown, err := buildMetricsHandle(c)
	if err != nil {
		return err
	}
	if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	clk := clock.RealClock{}
	eng := engine.New(c, clk, h)
	ctx := context.Background()

	type lp struct {
		mem  *imemory.LPMemory
		refs []imemory.ChunkRef
	}

	lps := make([]*lp, numLPs)
	for i := range lps {
		mem := imemory.New(uuid.NewString())
		mem.AddArea(32, 64)
		lps[i] = &lp{mem: mem}
	}

	for round := 0; round < rounds; round++ {
		for _, l := range lps {
			if len(l.refs) < 16 {
				ref, err := engine.Allocate(l.mem, 64)
				if err == nil {
					l.refs = append(l.refs, ref)
				}
			}
			if len(l.refs) > 0 {
				ref := l.refs[rand.Intn(len(l.refs))]
				if err := engine.NotifyWrite(l.mem, ref); err != nil {
					return err
				}
				payload, err := l.mem.ChunkBytes(ref)
				if err != nil {
					return err
				}
				for i := range payload {
					payload[i] = byte(round)
				}
			}
			l.mem.Timestamp = uint64(round)

			forceFull := round == 0
			if _, err := eng.Checkpoint(ctx, l.mem, forceFull); err != nil {
				fatalIfAllocationFailed(err)
				return err
			}
		}

		if round > 0 && round%c.Queue.FossilEvery == 0 {
			gvt := uint64(round - c.Queue.FossilEvery)
			for _, l := range lps {
				eng.Collect(l.mem.LPID, gvt)
			}
			ilogger.Infof("fossil collection at gvt=%d", gvt)
		}
	}

	ilogger.Infof("ckptsim completed %d rounds across %d LPs", rounds, numLPs)
	return nil
}
