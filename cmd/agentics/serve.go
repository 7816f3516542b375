package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/tailored-agentic-units/agentics/pipeline"
	"github.com/tailored-agentic-units/agentics/provider"
	"github.com/tailored-agentic-units/agentics/server"
)

// synthesize answers Generate calls without a model, for dry runs against
// the remote provider kinds.
func synthesize(_ context.Context, call provider.Call) (provider.Response, error) {
	return provider.Synthesize(call.Request), nil
}

// runServer serves Transduce and Combine, plus a synthesizing Generate
// procedure, on addr until ctx is done. With grpcAddr set the Generate
// procedure is also served over plain gRPC.
func runServer(ctx context.Context, p *pipeline.Pipeline, addr, grpcAddr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(server.New(p.Engine(),
		server.WithCatalog(p.Catalog()),
		server.WithComposer(p.Composer()),
	).Handler())
	mux.Handle(provider.NewConnectHandler(synthesize))

	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("serving connect", "addr", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var grpcServer *grpc.Server
	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return err
		}
		grpcServer = grpc.NewServer()
		provider.RegisterGRPC(grpcServer, synthesize)

		g.Go(func() error {
			logger.Info("serving grpc", "addr", grpcAddr)
			return grpcServer.Serve(lis)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
