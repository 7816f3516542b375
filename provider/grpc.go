package provider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCProvider calls a remote Generate procedure over plain gRPC.
type GRPCProvider struct {
	conn    *grpc.ClientConn
	apiKey  string
	model   string
	project string
}

// NewGRPC connects to the inference server at cfg.BaseURL (host:port).
// Without dial options the connection uses insecure transport credentials.
func NewGRPC(cfg *Config, opts ...grpc.DialOption) (*GRPCProvider, error) {
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(cfg.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", cfg.BaseURL, err)
	}
	return &GRPCProvider{
		conn:    conn,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		project: cfg.ProjectID,
	}, nil
}

func (p *GRPCProvider) Name() string { return string(KindGRPC) }

// Close shuts down the gRPC connection.
func (p *GRPCProvider) Close() error {
	return p.conn.Close()
}

func (p *GRPCProvider) Generate(ctx context.Context, req Request) (Response, error) {
	in, err := EncodeRequest(p.model, p.project, req)
	if err != nil {
		return Response{}, err
	}

	callCtx := ctx
	if p.apiKey != "" {
		callCtx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+p.apiKey)
	}

	out := new(structpb.Struct)
	if err := p.conn.Invoke(callCtx, GenerateProcedure, in, out); err != nil {
		return Response{}, classifyGRPC(ctx, err)
	}
	return DecodeResponse(out)
}

func classifyGRPC(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case codes.Unavailable, codes.Unimplemented:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case codes.Canceled:
		return fmt.Errorf("%w: %v", context.Canceled, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	default:
		return fmt.Errorf("generate rpc: %w", err)
	}
}

// GRPCCode maps a provider error onto a gRPC status code.
func GRPCCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, ErrUnavailable):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, ErrMalformedOutput), errors.Is(err, ErrNonConforming), errors.Is(err, ErrRefused):
		return codes.FailedPrecondition
	default:
		return codes.Unknown
	}
}

type generator interface {
	generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type grpcService struct {
	fn GenerateFunc
}

func (s *grpcService) generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	call, err := DecodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.fn(ctx, call)
	if err != nil {
		return nil, status.Error(GRPCCode(err), err.Error())
	}
	out, err := EncodeResponse(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

var inferenceServiceDesc = grpc.ServiceDesc{
	ServiceName: "agentics.v1.InferenceService",
	HandlerType: (*generator)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Generate",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				handle := func(ctx context.Context, req any) (any, error) {
					return srv.(generator).generate(ctx, req.(*structpb.Struct))
				}
				if interceptor == nil {
					return handle(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GenerateProcedure}
				return interceptor(ctx, in, info, handle)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentics/v1/inference.proto",
}

// RegisterGRPC serves fn as the Generate procedure on s.
func RegisterGRPC(s grpc.ServiceRegistrar, fn GenerateFunc) {
	s.RegisterService(&inferenceServiceDesc, &grpcService{fn: fn})
}
