package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"github.com/AngiE300512/just-ease/internal/api"
)

// JustEaseServer is the server API of justease.v1.JustEase.
type JustEaseServer interface {
	Register(context.Context, *api.RegisterRequest) (*api.RegisterResponse, error)
	Login(context.Context, *api.LoginRequest) (*api.LoginResponse, error)
	Profile(context.Context, *api.Empty) (*api.Profile, error)
	RegisterPasskey(context.Context, *api.RegisterPasskeyRequest) (*api.PasskeyStatus, error)
	PasskeyStatus(context.Context, *api.Empty) (*api.PasskeyStatus, error)
	BeginPasskeyVerify(context.Context, *api.Empty) (*api.PasskeyChallenge, error)
	VerifyPasskey(context.Context, *api.VerifyPasskeyRequest) (*api.VerifyPasskeyResponse, error)
	UploadDocument(context.Context, *api.UploadDocumentRequest) (*api.Document, error)
	ListDocuments(context.Context, *api.Empty) (*api.ListDocumentsResponse, error)
	GetDocument(context.Context, *api.DocumentRequest) (*api.GetDocumentResponse, error)
	DeleteDocument(context.Context, *api.DocumentRequest) (*api.Empty, error)
	Checklist(context.Context, *api.Empty) (*api.Checklist, error)
	AccessLog(context.Context, *api.AccessLogRequest) (*api.AccessLogResponse, error)
	CaseworkerLogin(context.Context, *api.CaseworkerLoginRequest) (*api.CaseworkerLoginResponse, error)
	CaseworkerLogout(context.Context, *api.Empty) (*api.Empty, error)
	LookupBeneficiary(context.Context, *api.LookupRequest) (*api.LookupResponse, error)
	OpenDocument(context.Context, *api.OpenDocumentRequest) (*api.OpenDocumentResponse, error)
	CheckEligibility(context.Context, *api.EligibilityRequest) (*api.EligibilityResponse, error)
}

// publicMethods can be called without a bearer token.
var publicMethods = map[string]bool{
	api.FullMethod(api.MethodRegister):         true,
	api.FullMethod(api.MethodLogin):            true,
	api.FullMethod(api.MethodCaseworkerLogin):  true,
	api.FullMethod(api.MethodCheckEligibility): true,
}

func unary[Req any](method string, fn func(JustEaseServer, context.Context, *Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if ic == nil {
				return fn(srv.(JustEaseServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.FullMethod(method)}
			return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(JustEaseServer), ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes justease.v1.JustEase. Messages travel with the api JSON codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*JustEaseServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodRegister, func(s JustEaseServer, ctx context.Context, in *api.RegisterRequest) (any, error) {
			return s.Register(ctx, in)
		}),
		unary(api.MethodLogin, func(s JustEaseServer, ctx context.Context, in *api.LoginRequest) (any, error) {
			return s.Login(ctx, in)
		}),
		unary(api.MethodProfile, func(s JustEaseServer, ctx context.Context, in *api.Empty) (any, error) {
			return s.Profile(ctx, in)
		}),
		unary(api.MethodRegisterPasskey, func(s JustEaseServer, ctx context.Context, in *api.RegisterPasskeyRequest) (any, error) {
			return s.RegisterPasskey(ctx, in)
		}),
		unary(api.MethodPasskeyStatus, func(s JustEaseServer, ctx context.Context, in *api.Empty) (any, error) {
			return s.PasskeyStatus(ctx, in)
		}),
		unary(api.MethodBeginPasskey, func(s JustEaseServer, ctx context.Context, in *api.Empty) (any, error) {
			return s.BeginPasskeyVerify(ctx, in)
		}),
		unary(api.MethodVerifyPasskey, func(s JustEaseServer, ctx context.Context, in *api.VerifyPasskeyRequest) (any, error) {
			return s.VerifyPasskey(ctx, in)
		}),
		unary(api.MethodUploadDocument, func(s JustEaseServer, ctx context.Context, in *api.UploadDocumentRequest) (any, error) {
			return s.UploadDocument(ctx, in)
		}),
		unary(api.MethodListDocuments, func(s JustEaseServer, ctx context.Context, in *api.Empty) (any, error) {
			return s.ListDocuments(ctx, in)
		}),
		unary(api.MethodGetDocument, func(s JustEaseServer, ctx context.Context, in *api.DocumentRequest) (any, error) {
			return s.GetDocument(ctx, in)
		}),
		unary(api.MethodDeleteDocument, func(s JustEaseServer, ctx context.Context, in *api.DocumentRequest) (any, error) {
			return s.DeleteDocument(ctx, in)
		}),
		unary(api.MethodChecklist, func(s JustEaseServer, ctx context.Context, in *api.Empty) (any, error) {
			return s.Checklist(ctx, in)
		}),
		unary(api.MethodAccessLog, func(s JustEaseServer, ctx context.Context, in *api.AccessLogRequest) (any, error) {
			return s.AccessLog(ctx, in)
		}),
		unary(api.MethodCaseworkerLogin, func(s JustEaseServer, ctx context.Context, in *api.CaseworkerLoginRequest) (any, error) {
			return s.CaseworkerLogin(ctx, in)
		}),
		unary(api.MethodCaseworkerLogout, func(s JustEaseServer, ctx context.Context, in *api.Empty) (any, error) {
			return s.CaseworkerLogout(ctx, in)
		}),
		unary(api.MethodLookupBeneficiary, func(s JustEaseServer, ctx context.Context, in *api.LookupRequest) (any, error) {
			return s.LookupBeneficiary(ctx, in)
		}),
		unary(api.MethodOpenDocument, func(s JustEaseServer, ctx context.Context, in *api.OpenDocumentRequest) (any, error) {
			return s.OpenDocument(ctx, in)
		}),
		unary(api.MethodCheckEligibility, func(s JustEaseServer, ctx context.Context, in *api.EligibilityRequest) (any, error) {
			return s.CheckEligibility(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "justease/v1/justease.json",
}

// RegisterJustEaseServer registers srv on s.
func RegisterJustEaseServer(s grpc.ServiceRegistrar, srv JustEaseServer) {
	s.RegisterService(&ServiceDesc, srv)
}
