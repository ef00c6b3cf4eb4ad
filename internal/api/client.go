package api

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a typed JustEase client over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, FullMethod(method), in, out, opts...)
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.invoke(ctx, MethodRegister, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.invoke(ctx, MethodLogin, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Profile(ctx context.Context, opts ...grpc.CallOption) (*Profile, error) {
	out := new(Profile)
	if err := c.invoke(ctx, MethodProfile, &Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RegisterPasskey(ctx context.Context, in *RegisterPasskeyRequest, opts ...grpc.CallOption) (*PasskeyStatus, error) {
	out := new(PasskeyStatus)
	if err := c.invoke(ctx, MethodRegisterPasskey, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PasskeyStatus(ctx context.Context, opts ...grpc.CallOption) (*PasskeyStatus, error) {
	out := new(PasskeyStatus)
	if err := c.invoke(ctx, MethodPasskeyStatus, &Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BeginPasskeyVerify(ctx context.Context, opts ...grpc.CallOption) (*PasskeyChallenge, error) {
	out := new(PasskeyChallenge)
	if err := c.invoke(ctx, MethodBeginPasskey, &Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) VerifyPasskey(ctx context.Context, in *VerifyPasskeyRequest, opts ...grpc.CallOption) (*VerifyPasskeyResponse, error) {
	out := new(VerifyPasskeyResponse)
	if err := c.invoke(ctx, MethodVerifyPasskey, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UploadDocument(ctx context.Context, in *UploadDocumentRequest, opts ...grpc.CallOption) (*Document, error) {
	out := new(Document)
	if err := c.invoke(ctx, MethodUploadDocument, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDocuments(ctx context.Context, opts ...grpc.CallOption) (*ListDocumentsResponse, error) {
	out := new(ListDocumentsResponse)
	if err := c.invoke(ctx, MethodListDocuments, &Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDocument(ctx context.Context, in *DocumentRequest, opts ...grpc.CallOption) (*GetDocumentResponse, error) {
	out := new(GetDocumentResponse)
	if err := c.invoke(ctx, MethodGetDocument, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, in *DocumentRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodDeleteDocument, in, &Empty{}, opts...)
}

func (c *Client) Checklist(ctx context.Context, opts ...grpc.CallOption) (*Checklist, error) {
	out := new(Checklist)
	if err := c.invoke(ctx, MethodChecklist, &Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AccessLog(ctx context.Context, in *AccessLogRequest, opts ...grpc.CallOption) (*AccessLogResponse, error) {
	out := new(AccessLogResponse)
	if err := c.invoke(ctx, MethodAccessLog, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CaseworkerLogin(ctx context.Context, in *CaseworkerLoginRequest, opts ...grpc.CallOption) (*CaseworkerLoginResponse, error) {
	out := new(CaseworkerLoginResponse)
	if err := c.invoke(ctx, MethodCaseworkerLogin, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CaseworkerLogout(ctx context.Context, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodCaseworkerLogout, &Empty{}, &Empty{}, opts...)
}

func (c *Client) LookupBeneficiary(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupResponse, error) {
	out := new(LookupResponse)
	if err := c.invoke(ctx, MethodLookupBeneficiary, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) OpenDocument(ctx context.Context, in *OpenDocumentRequest, opts ...grpc.CallOption) (*OpenDocumentResponse, error) {
	out := new(OpenDocumentResponse)
	if err := c.invoke(ctx, MethodOpenDocument, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CheckEligibility(ctx context.Context, in *EligibilityRequest, opts ...grpc.CallOption) (*EligibilityResponse, error) {
	out := new(EligibilityResponse)
	if err := c.invoke(ctx, MethodCheckEligibility, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
