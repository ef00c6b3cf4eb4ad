package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/limiter"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/repository"
	"github.com/AngiE300512/just-ease/internal/storage"
)

type fakeUsers struct {
	byEmail map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byEmail == nil {
		f.byEmail = map[string]*model.User{}
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) GetByUDID(_ context.Context, udid string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byEmail {
		if udid != "" && u.UDIDNumber == udid {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	subjects     []string
	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, subject string, _ []byte) (bool, time.Duration, error) {
	l.allowCalls++
	l.subjects = append(l.subjects, subject)
	return l.allowOK, 0, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type issuedChallenge struct {
	user uuid.UUID
	exp  time.Time
}

type fakePasskeys struct {
	byID       map[string]*model.PasskeyCredential
	challenges map[string]issuedChallenge

	upsertErr  error
	advanceErr error
	storeErr   error
}

var _ repository.PasskeyRepository = (*fakePasskeys)(nil)

func newFakePasskeys() *fakePasskeys {
	return &fakePasskeys{byID: map[string]*model.PasskeyCredential{}, challenges: map[string]issuedChallenge{}}
}

func (f *fakePasskeys) Upsert(_ context.Context, c *model.PasskeyCredential) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if other, ok := f.byID[c.ID]; ok && other.UserID != c.UserID {
		return errs.ErrAlreadyExists
	}
	for id, old := range f.byID {
		if old.UserID == c.UserID {
			delete(f.byID, id)
		}
	}
	cpy := *c
	f.byID[c.ID] = &cpy
	return nil
}

func (f *fakePasskeys) GetByUser(_ context.Context, userID uuid.UUID) (*model.PasskeyCredential, error) {
	for _, c := range f.byID {
		if c.UserID == userID {
			cpy := *c
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakePasskeys) GetByID(_ context.Context, id string) (*model.PasskeyCredential, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *c
	return &cpy, nil
}

func (f *fakePasskeys) AdvanceCounter(_ context.Context, id string, prev, next uint32) error {
	if f.advanceErr != nil {
		return f.advanceErr
	}
	c, ok := f.byID[id]
	if !ok || c.SignCount != prev {
		return errs.ErrNotFound
	}
	c.SignCount = next
	return nil
}

func (f *fakePasskeys) StoreChallenge(_ context.Context, hash []byte, userID uuid.UUID, expiresAt time.Time) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	if _, dup := f.challenges[string(hash)]; dup {
		return errs.ErrAlreadyExists
	}
	f.challenges[string(hash)] = issuedChallenge{user: userID, exp: expiresAt}
	return nil
}

func (f *fakePasskeys) TakeChallenge(_ context.Context, hash []byte, userID uuid.UUID, now time.Time) error {
	c, ok := f.challenges[string(hash)]
	if !ok || c.user != userID || !c.exp.After(now) {
		return errs.ErrNotFound
	}
	delete(f.challenges, string(hash))
	return nil
}

func (f *fakePasskeys) PurgeChallenges(_ context.Context, t time.Time) (int64, error) {
	var n int64
	for h, c := range f.challenges {
		if c.exp.Before(t) {
			delete(f.challenges, h)
			n++
		}
	}
	return n, nil
}

type fakeLinks struct {
	mu       sync.Mutex
	redeemed map[string]time.Time
	err      error
}

var _ repository.LinkRepository = (*fakeLinks)(nil)

func newFakeLinks() *fakeLinks { return &fakeLinks{redeemed: map[string]time.Time{}} }

func (f *fakeLinks) Redeem(_ context.Context, id string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, used := f.redeemed[id]; used {
		return errs.ErrAlreadyExists
	}
	f.redeemed[id] = exp
	return nil
}

func (f *fakeLinks) PurgeLinks(_ context.Context, t time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, exp := range f.redeemed {
		if exp.Before(t) {
			delete(f.redeemed, id)
			n++
		}
	}
	return n, nil
}

type fakeDocuments struct {
	rows map[uuid.UUID]*model.Document

	replaceErr error
}

var _ repository.DocumentRepository = (*fakeDocuments)(nil)

func newFakeDocuments() *fakeDocuments { return &fakeDocuments{rows: map[uuid.UUID]*model.Document{}} }

func (f *fakeDocuments) Replace(_ context.Context, d *model.Document) (*model.Document, error) {
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	for _, old := range f.rows {
		if old.OwnerID == d.OwnerID && old.Category == d.Category {
			prev := *old
			d.ID = old.ID
			d.Verified = false
			cpy := *d
			f.rows[d.ID] = &cpy
			return &prev, nil
		}
	}
	cpy := *d
	f.rows[d.ID] = &cpy
	return nil, nil
}

func (f *fakeDocuments) List(_ context.Context, ownerID uuid.UUID) ([]model.Document, error) {
	out := []model.Document{}
	for _, d := range f.rows {
		if d.OwnerID == ownerID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (f *fakeDocuments) Get(_ context.Context, ownerID, id uuid.UUID) (*model.Document, error) {
	d, ok := f.rows[id]
	if !ok || d.OwnerID != ownerID {
		return nil, errs.ErrNotFound
	}
	cpy := *d
	return &cpy, nil
}

func (f *fakeDocuments) Delete(_ context.Context, ownerID, id uuid.UUID) (*model.Document, error) {
	d, ok := f.rows[id]
	if !ok || d.OwnerID != ownerID {
		return nil, errs.ErrNotFound
	}
	delete(f.rows, id)
	return d, nil
}

type memBlobs struct {
	mu   sync.Mutex
	objs map[string][]byte

	putErr error
}

var _ storage.Backend = (*memBlobs)(nil)

func newMemBlobs() *memBlobs { return &memBlobs{objs: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, ref string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objs[ref] = bytes.Clone(data)
	return nil
}

func (m *memBlobs) Get(_ context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objs[ref]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return bytes.Clone(b), nil
}

func (m *memBlobs) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objs[ref]; !ok {
		return errs.ErrNotFound
	}
	delete(m.objs, ref)
	return nil
}

func (m *memBlobs) Name() string { return "mem" }

func (m *memBlobs) refs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objs))
	for r := range m.objs {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

type fakeCaseworkers struct {
	byEmail  map[string]*model.Caseworker
	sessions map[uuid.UUID]*model.CaseworkerSession

	sessionErr error
}

var _ repository.CaseworkerRepository = (*fakeCaseworkers)(nil)

func newFakeCaseworkers() *fakeCaseworkers {
	return &fakeCaseworkers{byEmail: map[string]*model.Caseworker{}, sessions: map[uuid.UUID]*model.CaseworkerSession{}}
}

func (f *fakeCaseworkers) Create(_ context.Context, c *model.Caseworker) error {
	if _, ok := f.byEmail[c.Email]; ok {
		return errs.ErrAlreadyExists
	}
	cpy := *c
	f.byEmail[c.Email] = &cpy
	return nil
}

func (f *fakeCaseworkers) GetByEmail(_ context.Context, email string) (*model.Caseworker, error) {
	c, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *c
	return &cpy, nil
}

func (f *fakeCaseworkers) CreateSession(_ context.Context, s *model.CaseworkerSession) error {
	if f.sessionErr != nil {
		return f.sessionErr
	}
	cpy := *s
	f.sessions[s.ID] = &cpy
	return nil
}

func (f *fakeCaseworkers) GetSession(_ context.Context, id uuid.UUID) (*model.CaseworkerSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *s
	return &cpy, nil
}

func (f *fakeCaseworkers) RevokeSession(_ context.Context, id uuid.UUID, t time.Time) error {
	s, ok := f.sessions[id]
	if !ok || s.RevokedAt != nil {
		return errs.ErrNotFound
	}
	s.RevokedAt = &t
	return nil
}

type fakeGrants struct {
	rows      []model.AccessGrant
	appendErr error
	lastLimit int
}

var _ repository.GrantRepository = (*fakeGrants)(nil)

func (f *fakeGrants) Append(_ context.Context, g *model.AccessGrant) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	g.ID = int64(len(f.rows) + 1)
	g.AccessedAt = time.Now()
	f.rows = append(f.rows, *g)
	return nil
}

func (f *fakeGrants) ListByBeneficiary(_ context.Context, id uuid.UUID, limit int) ([]model.AccessGrant, error) {
	f.lastLimit = limit
	out := []model.AccessGrant{}
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if f.rows[i].BeneficiaryID == id {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

var errBoom = errors.New("boom")
