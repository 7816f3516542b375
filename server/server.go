// Package server exposes transduction and composition as Connect unary
// procedures. Messages are google.protobuf.Struct values shaped like the
// request and response types of this package, so any Connect, gRPC or
// gRPC-Web client can call them without generated code.
//
//	mux := http.NewServeMux()
//	mux.Handle(server.New(engine, server.WithCatalog(cat)).Handler())
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/agentics/catalog"
	"github.com/tailored-agentic-units/agentics/composition"
	"github.com/tailored-agentic-units/agentics/core/stage"
	"github.com/tailored-agentic-units/agentics/provider"
	"github.com/tailored-agentic-units/agentics/schema"
	"github.com/tailored-agentic-units/agentics/states"
	"github.com/tailored-agentic-units/agentics/transduction"
)

const (
	ServiceName        = "agentics.v1.TransductionService"
	TransduceProcedure = "/" + ServiceName + "/Transduce"
	CombineProcedure   = "/" + ServiceName + "/Combine"
	servicePathPrefix  = "/" + ServiceName + "/"
)

var ErrNoTarget = stage.NewError(stage.Schema, "request names no target type")

// Option configures a Server.
type Option func(*Server)

// WithCatalog lets requests name their target by catalog type.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithComposer overrides the event-free default composer.
func WithComposer(c *composition.Composer) Option {
	return func(s *Server) { s.composer = c }
}

// WithHandlerOptions passes options to both Connect handlers.
func WithHandlerOptions(opts ...connect.HandlerOption) Option {
	return func(s *Server) { s.handlerOpts = append(s.handlerOpts, opts...) }
}

// Server serves Transduce and Combine.
type Server struct {
	engine      *transduction.Engine
	catalog     *catalog.Catalog
	composer    *composition.Composer
	handlerOpts []connect.HandlerOption
}

// New creates a Server running transductions on engine.
func New(engine *transduction.Engine, opts ...Option) *Server {
	s := &Server{engine: engine}
	for _, opt := range opts {
		opt(s)
	}
	if s.composer == nil {
		s.composer, _ = composition.New("noop")
	}
	return s
}

// Handler returns the service path prefix and a handler serving both
// procedures, in the shape of generated Connect constructors.
func (s *Server) Handler() (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(TransduceProcedure, connect.NewUnaryHandler(TransduceProcedure, s.transduce, s.handlerOpts...))
	mux.Handle(CombineProcedure, connect.NewUnaryHandler(CombineProcedure, s.combine, s.handlerOpts...))
	return servicePathPrefix, mux
}

func (s *Server) transduce(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in TransduceRequest
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	out, err := s.Transduce(ctx, in)
	if err != nil {
		return nil, connect.NewError(code(err), err)
	}

	msg, err := toStruct(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func (s *Server) combine(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in CombineRequest
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	out, err := s.Combine(ctx, in)
	if err != nil {
		return nil, connect.NewError(code(err), err)
	}

	msg, err := toStruct(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Transduce runs one request on the engine.
func (s *Server) Transduce(ctx context.Context, in TransduceRequest) (*TransduceResponse, error) {
	kind, err := transduction.ParseKind(in.Operation)
	if err != nil {
		return nil, err
	}

	target, err := s.target(ctx, in)
	if err != nil {
		return nil, err
	}

	var src states.Collection
	if kind != transduction.KindGenerate {
		if src, err = collection("Source", in.Source); err != nil {
			return nil, err
		}
	}

	result, err := s.engine.Run(ctx, kind, src, transduction.Spec{
		Target:       target,
		Instructions: in.Instructions,
		Explain:      in.Explanations,
		BatchSize:    in.BatchSize,
	}, in.Count)
	if err != nil {
		return nil, err
	}

	out := result.Collection
	if kind == transduction.KindMap && in.MergeSource && src.Len() > 0 {
		if out, err = src.Merge(out); err != nil {
			return nil, err
		}
	}

	resp := &TransduceResponse{
		RunID:        result.RunID,
		Operation:    string(result.Kind),
		Status:       string(result.Status),
		States:       out.Rows(),
		Explanations: explanations(out),
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, Failure{Index: f.Index, Error: f.Err.Error()})
	}
	return resp, nil
}

// Combine applies a composition selector to two tables.
func (s *Server) Combine(ctx context.Context, in CombineRequest) (*CombineResponse, error) {
	left, err := collection(firstNonEmpty(in.Left.Name, "Left"), &in.Left)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := collection(firstNonEmpty(in.Right.Name, "Right"), &in.Right)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	out, err := s.composer.Combine(ctx, in.Selector, left, right)
	if err != nil {
		return nil, err
	}
	return &CombineResponse{
		States:       out.Rows(),
		Explanations: explanations(out),
		Homogeneous:  out.Homogeneous(),
	}, nil
}

func (s *Server) target(ctx context.Context, in TransduceRequest) (*schema.Descriptor, error) {
	if in.Target != nil && len(in.Target.Fields) > 0 {
		return in.Target.Descriptor()
	}
	name := in.CatalogType
	if name == "" && in.Target != nil {
		name = in.Target.Name
	}
	if name == "" || s.catalog == nil {
		return nil, ErrNoTarget
	}
	return s.catalog.Descriptor(ctx, name)
}

func collection(name string, t *Table) (states.Collection, error) {
	table := t.table()
	if table.Len() == 0 {
		return states.Collection{}, nil
	}
	desc, err := schema.Infer(name, table.Columns, table.Rows)
	if err != nil {
		return states.Collection{}, err
	}
	return states.FromRows(table.Rows, desc)
}

// code maps pipeline errors to Connect codes: bad input is InvalidArgument,
// misaligned collections FailedPrecondition, and failed runs carry the code
// of their provider cause.
func code(err error) connect.Code {
	var opErr *transduction.OperationError
	switch {
	case errors.As(err, &opErr):
		return provider.ConnectCode(opErr.Err)
	case errors.Is(err, states.ErrMisaligned):
		return connect.CodeFailedPrecondition
	case errors.Is(err, catalog.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, catalog.ErrLoadFailed), errors.Is(err, catalog.ErrSaveFailed):
		return connect.CodeInternal
	case errors.Is(err, ErrNoTarget),
		errors.Is(err, transduction.ErrUnknownKind),
		errors.Is(err, transduction.ErrNegativeCount),
		stage.IsConfiguration(err):
		return connect.CodeInvalidArgument
	default:
		return connect.CodeInternal
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
