package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	insecurecreds "google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/AngiE300512/just-ease/internal/api"
	"github.com/AngiE300512/just-ease/internal/convert"
	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/gate"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/passkey"
)

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

type dialConfig struct {
	addr      string
	caPath    string
	insecure  bool // TLS without verification
	plaintext bool // no TLS at all, for -dev servers
}

func loadTLS(caPath string, insecure bool) (credentials.TransportCredentials, error) {
	if insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// dial opens a lazy client connection; extra options are appended after the transport setup.
func dial(dc dialConfig, bearer string, extra ...grpc.DialOption) (*grpc.ClientConn, *api.Client, error) {
	var creds credentials.TransportCredentials
	if dc.plaintext {
		creds = insecurecreds.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(dc.caPath, dc.insecure); err != nil {
			return nil, nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !dc.plaintext}))
	}
	cc, err := grpc.NewClient(dc.addr, append(opts, extra...)...)
	if err != nil {
		return nil, nil, err
	}
	return cc, api.NewClient(cc), nil
}

// fromStatus turns a gRPC status back into the matching sentinel so callers can use errors.Is.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.NotFound:
		sentinel = errs.ErrNotFound
	case codes.Unauthenticated, codes.PermissionDenied:
		sentinel = errs.ErrUnauthorized
	case codes.ResourceExhausted:
		sentinel = errs.ErrRateLimited
	case codes.AlreadyExists:
		sentinel = errs.ErrAlreadyExists
	case codes.InvalidArgument:
		sentinel = errs.ErrValidation
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}

// ---- gate adapters ----

// remote implements the gate's Account, Confirmer, Session and Vault over the API.
type remote struct {
	cl *api.Client
}

var (
	_ gate.Account   = remote{}
	_ gate.Confirmer = remote{}
	_ gate.Session   = remote{}
	_ gate.Vault     = remote{}
)

// CredentialID returns errs.ErrNotFound when no credential is enrolled.
func (r remote) CredentialID(ctx context.Context) (string, error) {
	st, err := r.cl.PasskeyStatus(ctx)
	if err != nil {
		return "", fromStatus(err)
	}
	if !st.Enrolled {
		return "", errs.ErrNotFound
	}
	return st.CredentialID, nil
}

func (r remote) BeginAssertion(ctx context.Context) (string, error) {
	res, err := r.cl.BeginPasskeyVerify(ctx)
	if err != nil {
		return "", fromStatus(err)
	}
	return res.Challenge, nil
}

func (r remote) ConfirmAssertion(ctx context.Context, a *passkey.Assertion) error {
	res, err := r.cl.VerifyPasskey(ctx, convert.ToVerifyRequest(a))
	if err != nil {
		return fromStatus(err)
	}
	if !res.Verified {
		return errs.ErrUnauthorized
	}
	return nil
}

// Resume succeeds while the stored password session is accepted by the server.
func (r remote) Resume(ctx context.Context) error {
	_, err := r.cl.Profile(ctx)
	return fromStatus(err)
}

func (r remote) List(ctx context.Context) ([]model.Document, error) {
	res, err := r.cl.ListDocuments(ctx)
	if err != nil {
		return nil, fromStatus(err)
	}
	return convert.FromDocuments(res.Documents)
}

func (r remote) Upload(ctx context.Context, category model.Category, fileName, contentType string, data []byte) (*model.Document, error) {
	res, err := r.cl.UploadDocument(ctx, &api.UploadDocumentRequest{
		Category:    string(category),
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return nil, fromStatus(err)
	}
	d, err := convert.FromDocument(*res)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r remote) Delete(ctx context.Context, id uuid.UUID) error {
	return fromStatus(r.cl.DeleteDocument(ctx, &api.DocumentRequest{ID: id.String()}))
}
