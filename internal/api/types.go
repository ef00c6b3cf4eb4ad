package api

import (
	"time"

	"github.com/AngiE300512/just-ease/internal/eligibility"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "justease.v1.JustEase"

// Method names.
const (
	MethodRegister          = "Register"
	MethodLogin             = "Login"
	MethodProfile           = "Profile"
	MethodRegisterPasskey   = "RegisterPasskey"
	MethodPasskeyStatus     = "PasskeyStatus"
	MethodBeginPasskey      = "BeginPasskeyVerify"
	MethodVerifyPasskey     = "VerifyPasskey"
	MethodUploadDocument    = "UploadDocument"
	MethodListDocuments     = "ListDocuments"
	MethodGetDocument       = "GetDocument"
	MethodDeleteDocument    = "DeleteDocument"
	MethodChecklist         = "Checklist"
	MethodAccessLog         = "AccessLog"
	MethodCaseworkerLogin   = "CaseworkerLogin"
	MethodCaseworkerLogout  = "CaseworkerLogout"
	MethodLookupBeneficiary = "LookupBeneficiary"
	MethodOpenDocument      = "OpenDocument"
	MethodCheckEligibility  = "CheckEligibility"
)

// FullMethod returns "/justease.v1.JustEase/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// Empty is used where a call carries no fields.
type Empty struct{}

type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	UDIDNumber string `json:"udid_number,omitempty"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name"`
}

type Profile struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone,omitempty"`
	UDIDNumber string    `json:"udid_number,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RegisterPasskeyRequest carries an enrollment; both values are base64url.
type RegisterPasskeyRequest struct {
	CredentialID string `json:"credential_id"`
	PublicKey    string `json:"public_key"`
}

type PasskeyStatus struct {
	Enrolled     bool       `json:"enrolled"`
	CredentialID string     `json:"credential_id,omitempty"`
	SignCount    uint32     `json:"sign_count"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// PasskeyChallenge is a single-use challenge to sign before ExpiresAt.
type PasskeyChallenge struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyPasskeyRequest carries a signed assertion; all values are base64url.
type VerifyPasskeyRequest struct {
	CredentialID      string `json:"credential_id"`
	Signature         string `json:"signature"`
	AuthenticatorData string `json:"authenticator_data"`
	ClientDataJSON    string `json:"client_data_json"`
}

type VerifyPasskeyResponse struct {
	Verified bool `json:"verified"`
}

type Document struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Label       string    `json:"label"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Verified    bool      `json:"verified"`
}

type UploadDocumentRequest struct {
	Category    string `json:"category"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

type ListDocumentsResponse struct {
	Documents []Document `json:"documents"`
}

type DocumentRequest struct {
	ID string `json:"id"`
}

type GetDocumentResponse struct {
	Document Document `json:"document"`
	Data     []byte   `json:"data"`
}

type ChecklistItem struct {
	Category   string `json:"category"`
	Label      string `json:"label"`
	Uploaded   bool   `json:"uploaded"`
	DocumentID string `json:"document_id,omitempty"`
	Verified   bool   `json:"verified"`
}

type Checklist struct {
	Items    []ChecklistItem `json:"items"`
	Uploaded int             `json:"uploaded"`
	Required int             `json:"required"`
	Percent  int             `json:"percent"`
}

type AccessLogRequest struct {
	Limit int `json:"limit,omitempty"`
}

type AccessEntry struct {
	ID           int64     `json:"id"`
	CaseworkerID string    `json:"caseworker_id"`
	DocumentID   string    `json:"document_id,omitempty"`
	AccessType   string    `json:"access_type"`
	AccessedAt   time.Time `json:"accessed_at"`
}

type AccessLogResponse struct {
	Entries []AccessEntry `json:"entries"`
}

type CaseworkerLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CaseworkerLoginResponse struct {
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionID    string    `json:"session_id"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
}

type LookupRequest struct {
	SharedID string `json:"shared_id"`
	Secret   string `json:"secret"`
}

type Beneficiary struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	UDIDNumber string `json:"udid_number"`
}

type LookupResponse struct {
	Beneficiary Beneficiary `json:"beneficiary"`
	Documents   []Document  `json:"documents"`
}

type OpenDocumentRequest struct {
	BeneficiaryID string `json:"beneficiary_id"`
	DocumentID    string `json:"document_id"`
	AccessType    string `json:"access_type"`
}

// OpenDocumentResponse carries Data for view access and URL for download access.
type OpenDocumentResponse struct {
	Document  Document   `json:"document"`
	Data      []byte     `json:"data,omitempty"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type EligibilityRequest = eligibility.Answers

type EligibilityResponse = eligibility.Result
