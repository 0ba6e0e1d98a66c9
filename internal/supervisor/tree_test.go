// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/ostium/internal/logging"
)

// countingService records how many times it was started.
type countingService struct {
	starts atomic.Int32
	failN  int32 // fail the first N starts
}

func (s *countingService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failN {
		return errors.New("transient failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return "counting-service" }

func newTestTree() *Tree {
	return NewTree(logging.NewSlogLogger(), TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
}

func TestTreeRunsServicesInAllLayers(t *testing.T) {
	tree := newTestTree()
	infra := &countingService{}
	core := &countingService{}
	edge := &countingService{}
	tree.AddInfraService(infra)
	tree.AddCoreService(core)
	tree.AddEdgeService(edge)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if infra.starts.Load() > 0 && core.starts.Load() > 0 && edge.starts.Load() > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if infra.starts.Load() == 0 || core.starts.Load() == 0 || edge.starts.Load() == 0 {
		t.Fatalf("starts = %d/%d/%d, want all layers running",
			infra.starts.Load(), core.starts.Load(), edge.starts.Load())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("tree exited with %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTreeRestartsFailedService(t *testing.T) {
	tree := newTestTree()
	svc := &countingService{failN: 2}
	tree.AddCoreService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.starts.Load() >= 3 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("starts = %d, want at least 3 (two failures then steady)", svc.starts.Load())
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 || cfg.FailureBackoff != 15*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}

	// Zero values fall back to defaults at construction.
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{})
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Fatalf("shutdown timeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}
