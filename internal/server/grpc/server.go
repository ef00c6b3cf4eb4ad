// Package grpcserver exposes the Just-Ease gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/AngiE300512/just-ease/internal/api"
	"github.com/AngiE300512/just-ease/internal/convert"
	"github.com/AngiE300512/just-ease/internal/eligibility"
	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/service"
)

// MaxMsgSize bounds a single request; uploads carry the whole document.
const MaxMsgSize = service.MaxDocumentSize + 1<<20

// Services groups the collaborators of Server.
type Services struct {
	Auth        service.AuthService
	Passkeys    service.PasskeyService
	Documents   service.DocumentService
	Caseworkers service.CaseworkerService
}

// Server wires services into gRPC handlers.
type Server struct {
	auth      service.AuthService
	passkeys  service.PasskeyService
	documents service.DocumentService
	cw        service.CaseworkerService
	log       *zap.Logger
}

var _ JustEaseServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(svc Services, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		auth:      svc.Auth,
		passkeys:  svc.Passkeys,
		documents: svc.Documents,
		cw:        svc.Caseworkers,
		log:       log,
	}
}

// NewGRPCServer builds a grpc.Server with the recover, auth and logging chain and
// registers srv on it.
func NewGRPCServer(srv *Server, signer *service.Signer, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(RecoverUnary(log), AuthUnary(signer), LoggingUnary(log)),
		grpc.MaxRecvMsgSize(MaxMsgSize),
		grpc.MaxSendMsgSize(MaxMsgSize),
	}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterJustEaseServer(gs, srv)
	return gs
}

// --- Beneficiary accounts ---

// Register creates a beneficiary account.
func (s *Server) Register(ctx context.Context, in *api.RegisterRequest) (*api.RegisterResponse, error) {
	u, err := s.auth.Register(ctx, service.RegisterInput{
		Email:      in.Email,
		Password:   in.Password,
		FullName:   in.FullName,
		Phone:      in.Phone,
		UDIDNumber: in.UDIDNumber,
	})
	if err != nil {
		return nil, s.status("register", err)
	}
	return &api.RegisterResponse{UserID: u.ID.String()}, nil
}

// Login authenticates a beneficiary and returns an access token.
func (s *Server) Login(ctx context.Context, in *api.LoginRequest) (*api.LoginResponse, error) {
	tok, u, err := s.auth.Login(ctx, in.Email, in.Password, remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		return nil, s.status("login", err)
	}
	return &api.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		UserID:      u.ID.String(),
		FullName:    u.FullName,
	}, nil
}

// Profile returns the caller's own record.
func (s *Server) Profile(ctx context.Context, _ *api.Empty) (*api.Profile, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.auth.Profile(ctx, uid)
	if err != nil {
		return nil, s.status("profile", err)
	}
	return convert.ToProfile(u), nil
}

// --- Passkeys ---

// RegisterPasskey stores the caller's platform credential.
func (s *Server) RegisterPasskey(ctx context.Context, in *api.RegisterPasskeyRequest) (*api.PasskeyStatus, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.passkeys.Register(ctx, uid, in.CredentialID, in.PublicKey)
	if err != nil {
		return nil, s.status("register passkey", err)
	}
	return convert.ToPasskeyStatus(c), nil
}

// PasskeyStatus reports whether the caller has enrolled a credential.
func (s *Server) PasskeyStatus(ctx context.Context, _ *api.Empty) (*api.PasskeyStatus, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.passkeys.Status(ctx, uid)
	if errors.Is(err, errs.ErrNotFound) {
		return convert.ToPasskeyStatus(nil), nil
	}
	if err != nil {
		return nil, s.status("passkey status", err)
	}
	return convert.ToPasskeyStatus(c), nil
}

// BeginPasskeyVerify issues the challenge the caller's next assertion must sign.
func (s *Server) BeginPasskeyVerify(ctx context.Context, _ *api.Empty) (*api.PasskeyChallenge, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	challenge, exp, err := s.passkeys.BeginVerify(ctx, uid)
	if err != nil {
		return nil, s.status("begin passkey", err)
	}
	return &api.PasskeyChallenge{Challenge: challenge, ExpiresAt: exp}, nil
}

// VerifyPasskey checks a signed assertion. Rejections carry no reason.
func (s *Server) VerifyPasskey(ctx context.Context, in *api.VerifyPasskeyRequest) (*api.VerifyPasskeyResponse, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.passkeys.Verify(ctx, uid, convert.FromVerifyRequest(in)); err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "assertion rejected")
		}
		return nil, s.status("verify passkey", err)
	}
	return &api.VerifyPasskeyResponse{Verified: true}, nil
}

// --- Documents ---

// UploadDocument stores a document, replacing the one on file for its category.
func (s *Server) UploadDocument(ctx context.Context, in *api.UploadDocumentRequest) (*api.Document, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	cat, err := model.ParseCategory(in.Category)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "unknown category %q", in.Category)
	}
	d, err := s.documents.Upload(ctx, uid, cat, in.FileName, in.ContentType, in.Data)
	if err != nil {
		return nil, s.status("upload", err)
	}
	out := convert.ToDocument(*d)
	return &out, nil
}

// ListDocuments returns the caller's documents, newest first.
func (s *Server) ListDocuments(ctx context.Context, _ *api.Empty) (*api.ListDocumentsResponse, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := s.documents.List(ctx, uid)
	if err != nil {
		return nil, s.status("list documents", err)
	}
	return &api.ListDocumentsResponse{Documents: convert.ToDocuments(ds)}, nil
}

// GetDocument returns one of the caller's documents with its content.
func (s *Server) GetDocument(ctx context.Context, in *api.DocumentRequest) (*api.GetDocumentResponse, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID(in.ID, "id")
	if err != nil {
		return nil, s.status("get document", err)
	}
	d, data, err := s.documents.Fetch(ctx, uid, id)
	if err != nil {
		return nil, s.status("get document", err)
	}
	return &api.GetDocumentResponse{Document: convert.ToDocument(*d), Data: data}, nil
}

// DeleteDocument removes one of the caller's documents.
func (s *Server) DeleteDocument(ctx context.Context, in *api.DocumentRequest) (*api.Empty, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID(in.ID, "id")
	if err != nil {
		return nil, s.status("delete document", err)
	}
	if err := s.documents.Delete(ctx, uid, id); err != nil {
		return nil, s.status("delete document", err)
	}
	return &api.Empty{}, nil
}

// Checklist reports which required documents are on file.
func (s *Server) Checklist(ctx context.Context, _ *api.Empty) (*api.Checklist, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.documents.Checklist(ctx, uid)
	if err != nil {
		return nil, s.status("checklist", err)
	}
	return convert.ToChecklist(c), nil
}

// AccessLog lists the grants caseworkers wrote against the caller.
func (s *Server) AccessLog(ctx context.Context, in *api.AccessLogRequest) (*api.AccessLogResponse, error) {
	uid, err := s.beneficiary(ctx)
	if err != nil {
		return nil, err
	}
	gs, err := s.cw.AccessLog(ctx, uid, in.Limit)
	if err != nil {
		return nil, s.status("access log", err)
	}
	return &api.AccessLogResponse{Entries: convert.ToAccessEntries(gs)}, nil
}

// --- Caseworker handshake ---

// CaseworkerLogin opens a caseworker session.
func (s *Server) CaseworkerLogin(ctx context.Context, in *api.CaseworkerLoginRequest) (*api.CaseworkerLoginResponse, error) {
	tok, sess, err := s.cw.Login(ctx, in.Email, in.Password, remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		return nil, s.status("caseworker login", err)
	}
	return &api.CaseworkerLoginResponse{
		AccessToken:  tok.AccessToken,
		ExpiresAt:    tok.ExpiresAt,
		SessionID:    sess.ID.String(),
		Name:         sess.Caseworker.Name,
		Organization: sess.Caseworker.Organization,
	}, nil
}

// CaseworkerLogout revokes the caller's session.
func (s *Server) CaseworkerLogout(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cw.Logout(ctx, sess); err != nil {
		return nil, s.status("caseworker logout", err)
	}
	return &api.Empty{}, nil
}

// LookupBeneficiary finds a beneficiary by shared identifier.
func (s *Server) LookupBeneficiary(ctx context.Context, in *api.LookupRequest) (*api.LookupResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	b, ds, err := s.cw.Lookup(ctx, sess, in.SharedID, in.Secret)
	if err != nil {
		return nil, s.status("lookup", err)
	}
	return &api.LookupResponse{Beneficiary: convert.ToBeneficiary(b), Documents: convert.ToDocuments(ds)}, nil
}

// OpenDocument writes a view or download grant and returns the document.
func (s *Server) OpenDocument(ctx context.Context, in *api.OpenDocumentRequest) (*api.OpenDocumentResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	bid, err := convert.ParseID(in.BeneficiaryID, "beneficiary_id")
	if err != nil {
		return nil, s.status("open document", err)
	}
	did, err := convert.ParseID(in.DocumentID, "document_id")
	if err != nil {
		return nil, s.status("open document", err)
	}
	access, err := model.ParseAccessType(in.AccessType)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "unknown access type %q", in.AccessType)
	}
	o, err := s.cw.OpenDocument(ctx, sess, bid, did, access)
	if err != nil {
		return nil, s.status("open document", err)
	}
	return convert.ToOpened(o), nil
}

// --- Eligibility ---

// CheckEligibility evaluates the questionnaire. It needs no account.
func (s *Server) CheckEligibility(_ context.Context, in *api.EligibilityRequest) (*api.EligibilityResponse, error) {
	r := eligibility.Evaluate(*in)
	return &r, nil
}

// --- helpers ---

func (s *Server) beneficiary(ctx context.Context) (uuid.UUID, error) {
	p, ok := PrincipalFromCtx(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "no auth")
	}
	if p.Role != service.RoleBeneficiary {
		return uuid.Nil, status.Error(codes.PermissionDenied, "beneficiary only")
	}
	return p.Subject, nil
}

// session reloads the caller's caseworker session so revocation applies at once.
func (s *Server) session(ctx context.Context) (*model.CaseworkerSession, error) {
	p, ok := PrincipalFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	if p.Role != service.RoleCaseworker {
		return nil, status.Error(codes.PermissionDenied, "caseworker only")
	}
	sess, err := s.cw.Session(ctx, p.SessionID)
	if err != nil {
		return nil, s.status("session", err)
	}
	if sess.Caseworker.ID != p.Subject {
		return nil, status.Error(codes.Unauthenticated, "session mismatch")
	}
	return sess, nil
}

// status maps service sentinels onto gRPC codes. Unknown errors are logged and
// reported as Internal without detail.
func (s *Server) status(op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, errs.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, errs.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, errs.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, errs.ErrRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, errs.ErrAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, errs.ErrLocked), errors.Is(err, errs.ErrUnsupportedEnvironment):
		code = codes.FailedPrecondition
	case errors.Is(err, errs.ErrUserCancelled):
		code = codes.Aborted
	case errors.Is(err, errs.ErrAuthenticator):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	if code == codes.Internal {
		s.log.Error(op, zap.Error(err))
		return status.Errorf(codes.Internal, "%s: internal", op)
	}
	return status.Errorf(code, "%s: %v", op, err)
}
