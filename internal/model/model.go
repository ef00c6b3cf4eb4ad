// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/AngiE300512/just-ease/internal/errs"
)

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User is a beneficiary account. The UDID number is the shared identifier a caseworker searches by.
type User struct {
	ID         uuid.UUID // PK
	Email      string    // unique
	PwdHash    []byte    // Argon2id(password, SaltAuth)
	SaltAuth   []byte    // per-user auth salt
	FullName   string
	Phone      string
	UDIDNumber string // unique when set
	CreatedAt  time.Time
}

// Beneficiary is the subset of a user a caseworker is allowed to see.
type Beneficiary struct {
	ID         uuid.UUID
	FullName   string
	Phone      string
	UDIDNumber string
}

// PasskeyCredential is the server-side record of an enrolled platform credential.
// The ID is the base64url credential identifier and is unique across all accounts.
type PasskeyCredential struct {
	ID        string
	UserID    uuid.UUID
	PublicKey []byte // COSE_Key
	SignCount uint32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category tags a vault document.
type Category string

// Document categories accepted by the vault.
const (
	CategoryAadhaarCard           Category = "aadhaar_card"
	CategoryUDIDCard              Category = "udid_card"
	CategoryDisabilityCertificate Category = "disability_certificate"
	CategoryPassportPhoto         Category = "passport_photo"
	CategoryBankPassbook          Category = "bank_passbook"
	CategoryIncomeCertificate     Category = "income_certificate"
	CategoryRationCard            Category = "ration_card"
)

// RequiredCategories lists the documents a benefit application needs, in checklist order.
var RequiredCategories = []Category{
	CategoryAadhaarCard,
	CategoryUDIDCard,
	CategoryDisabilityCertificate,
	CategoryPassportPhoto,
	CategoryBankPassbook,
	CategoryIncomeCertificate,
	CategoryRationCard,
}

var categoryLabels = map[Category]string{
	CategoryAadhaarCard:           "Aadhaar Card",
	CategoryUDIDCard:              "UDID Card",
	CategoryDisabilityCertificate: "Disability Certificate",
	CategoryPassportPhoto:         "Passport Photo",
	CategoryBankPassbook:          "Bank Passbook",
	CategoryIncomeCertificate:     "Income Certificate",
	CategoryRationCard:            "Ration Card",
}

// Label returns the human-readable name of the category.
func (c Category) Label() string { return categoryLabels[c] }

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory decodes a stored or user-supplied category tag.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("category %q: %w", s, errs.ErrInvalidRecord)
	}
	return c, nil
}

// Document is a stored vault file. There is at most one per (OwnerID, Category).
type Document struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Category    Category
	FileName    string // original client file name
	FileRef     string // blob storage path
	ContentType string
	Size        int64
	UploadedAt  time.Time
	Verified    bool
}

// AccessType tags an access-grant row.
type AccessType string

// Access grant kinds.
const (
	AccessSearch   AccessType = "search"
	AccessView     AccessType = "view"
	AccessDownload AccessType = "download"
)

// ParseAccessType decodes a stored or user-supplied access type.
func ParseAccessType(s string) (AccessType, error) {
	switch a := AccessType(s); a {
	case AccessSearch, AccessView, AccessDownload:
		return a, nil
	}
	return "", fmt.Errorf("access type %q: %w", s, errs.ErrInvalidRecord)
}

// AccessGrant is an append-only audit row: a caseworker touched a beneficiary's documents.
type AccessGrant struct {
	ID            int64
	CaseworkerID  uuid.UUID
	BeneficiaryID uuid.UUID
	DocumentID    *uuid.UUID // nil for search grants
	AccessType    AccessType
	AccessedAt    time.Time
}

// Caseworker is an NGO worker allowed to run the consent handshake.
type Caseworker struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Organization string
	PwdHash      []byte
	SaltAuth     []byte
	Active       bool
	CreatedAt    time.Time
}

// CaseworkerSession is the explicit login state of a caseworker. It is created on login,
// passed to every handshake call and revoked on logout.
type CaseworkerSession struct {
	ID         uuid.UUID
	Caseworker Caseworker
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// Live reports whether the session can still be used at t.
func (s *CaseworkerSession) Live(t time.Time) bool {
	return s != nil && s.RevokedAt == nil && t.Before(s.ExpiresAt) && s.Caseworker.Active
}
