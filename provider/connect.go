package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// ConnectProvider calls a remote Generate procedure over the Connect
// protocol.
type ConnectProvider struct {
	client  *connect.Client[structpb.Struct, structpb.Struct]
	apiKey  string
	model   string
	project string
}

// NewConnect creates a ConnectProvider for the server at cfg.BaseURL. A nil
// client selects one with cfg.Timeout as its overall timeout.
func NewConnect(cfg *Config, client connect.HTTPClient, opts ...connect.ClientOption) (*ConnectProvider, error) {
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout.Std()}
	}
	return &ConnectProvider{
		client: connect.NewClient[structpb.Struct, structpb.Struct](
			client,
			strings.TrimSuffix(cfg.BaseURL, "/")+GenerateProcedure,
			opts...,
		),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		project: cfg.ProjectID,
	}, nil
}

func (p *ConnectProvider) Name() string { return string(KindConnect) }

func (p *ConnectProvider) Generate(ctx context.Context, req Request) (Response, error) {
	msg, err := EncodeRequest(p.model, p.project, req)
	if err != nil {
		return Response{}, err
	}

	call := connect.NewRequest(msg)
	if p.apiKey != "" {
		call.Header().Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.CallUnary(ctx, call)
	if err != nil {
		return Response{}, classifyConnect(ctx, err)
	}
	return DecodeResponse(res.Msg)
}

func classifyConnect(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch connect.CodeOf(err) {
	case connect.CodeUnauthenticated, connect.CodePermissionDenied:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case connect.CodeResourceExhausted:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case connect.CodeUnavailable, connect.CodeUnimplemented:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case connect.CodeCanceled:
		return fmt.Errorf("%w: %v", context.Canceled, err)
	case connect.CodeDeadlineExceeded:
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	default:
		return fmt.Errorf("generate rpc: %w", err)
	}
}

// GenerateFunc serves one Generate call.
type GenerateFunc func(ctx context.Context, call Call) (Response, error)

// NewConnectHandler exposes fn as the Generate procedure over Connect, gRPC
// and gRPC-Web. It returns the mount path and handler, following the shape
// of generated Connect constructors. Errors returned by fn are mapped back
// to the codes ConnectProvider classifies.
func NewConnectHandler(fn GenerateFunc, opts ...connect.HandlerOption) (string, http.Handler) {
	handler := connect.NewUnaryHandler(
		GenerateProcedure,
		func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			call, err := DecodeRequest(req.Msg)
			if err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, err)
			}
			resp, err := fn(ctx, call)
			if err != nil {
				return nil, connect.NewError(ConnectCode(err), err)
			}
			out, err := EncodeResponse(resp)
			if err != nil {
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(out), nil
		},
		opts...,
	)
	return GenerateProcedure, handler
}

// ConnectCode maps a provider error onto a Connect status code.
func ConnectCode(err error) connect.Code {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return connect.CodeUnauthenticated
	case errors.Is(err, ErrRateLimited):
		return connect.CodeResourceExhausted
	case errors.Is(err, ErrUnavailable):
		return connect.CodeUnavailable
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, ErrMalformedOutput), errors.Is(err, ErrNonConforming), errors.Is(err, ErrRefused):
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeUnknown
	}
}
