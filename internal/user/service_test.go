// File: internal/user/service_test.go
package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"picstream_backend/internal/avatar"
	"picstream_backend/internal/common"
	"picstream_backend/internal/config"
	"picstream_backend/internal/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeRepository is an in-memory Repository keyed by normalized email.
type fakeRepository struct {
	byEmail   map[string]*User
	createErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byEmail: make(map[string]*User)}
}

func (r *fakeRepository) Create(_ context.Context, account *User) error {
	if r.createErr != nil {
		return r.createErr
	}
	email := NormalizeEmail(account.Email)
	if _, exists := r.byEmail[email]; exists {
		return common.ErrConflict.WithDetails("An account with this email already exists.")
	}
	account.Email = email
	r.byEmail[email] = account
	return nil
}

func (r *fakeRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	account, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, common.ErrNotFound.WithDetails("Account not found with this email.")
	}
	return account, nil
}

func (r *fakeRepository) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	for _, account := range r.byEmail {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, common.ErrNotFound.WithDetails("Account not found with this ID.")
}

func (r *fakeRepository) ListAvatarFilenames(_ context.Context) ([]string, error) {
	var filenames []string
	for _, account := range r.byEmail {
		if account.AvatarFilename != nil {
			filenames = append(filenames, *account.AvatarFilename)
		}
	}
	return filenames, nil
}

// fakeGenerator records generated and removed base tokens.
type fakeGenerator struct {
	nextBase    int
	generateErr error
	urlErr      error
	generated   []string
	removed     []string
	fetchedURLs []string
}

func (g *fakeGenerator) Generate(_ io.Reader) (string, error) {
	if g.generateErr != nil {
		return "", g.generateErr
	}
	g.nextBase++
	base := fmt.Sprintf("base-%d", g.nextBase)
	g.generated = append(g.generated, base)
	return base, nil
}

func (g *fakeGenerator) GenerateFromURL(_ context.Context, url string) (string, error) {
	g.fetchedURLs = append(g.fetchedURLs, url)
	if g.urlErr != nil {
		return "", g.urlErr
	}
	g.nextBase++
	base := fmt.Sprintf("base-%d", g.nextBase)
	g.generated = append(g.generated, base)
	return base, nil
}

func (g *fakeGenerator) Remove(base string) error {
	g.removed = append(g.removed, base)
	return nil
}

func newTestService(t *testing.T) (*ServiceImplementation, *fakeRepository, *fakeGenerator) {
	t.Helper()
	repo := newFakeRepository()
	gen := &fakeGenerator{}
	cfg := &config.Config{BcryptCost: bcrypt.MinCost}
	return NewService(repo, gen, cfg, zap.NewNop()), repo, gen
}

func TestRegisterCreatesVerifiedAccount(t *testing.T) {
	svc, repo, gen := newTestService(t)
	before := time.Now()

	created, err := svc.Register(context.Background(), shared.RegisterInput{
		Name:     "New Person",
		Email:    "new@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)

	assert.Equal(t, "New Person", created.Name)
	assert.Nil(t, created.AvatarFilename)
	require.NotNil(t, created.EmailVerifiedAt, "accounts are verified at creation")
	assert.False(t, created.EmailVerifiedAt.Before(before))
	assert.Empty(t, gen.generated)

	stored, err := repo.FindByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret-pass", stored.PasswordHash)
	assert.True(t, common.CheckPasswordHash("secret-pass", stored.PasswordHash))
}

func TestRegisterWithAvatarStoresBaseToken(t *testing.T) {
	svc, repo, gen := newTestService(t)

	created, err := svc.Register(context.Background(), shared.RegisterInput{
		Name:     "Pic Person",
		Email:    "pic@example.com",
		Password: "secret-pass",
		Avatar:   fakeImageReader(),
	})
	require.NoError(t, err)

	require.NotNil(t, created.AvatarFilename)
	assert.Equal(t, gen.generated[0], *created.AvatarFilename)
	assert.Empty(t, gen.removed)

	stored, err := repo.FindByEmail(context.Background(), "pic@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.AvatarFilename)
	assert.Equal(t, *created.AvatarFilename, *stored.AvatarFilename)
}

func fakeImageReader() io.Reader {
	return bytesReader("pretend image bytes")
}

type stringReader struct{ s string }

func bytesReader(s string) io.Reader { return &stringReader{s: s} }

func (r *stringReader) Read(p []byte) (int, error) {
	if r.s == "" {
		return 0, io.EOF
	}
	n := copy(p, r.s)
	r.s = r.s[n:]
	return n, nil
}

func TestRegisterDuplicateEmailReturnsFieldError(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, shared.RegisterInput{Name: "First", Email: "taken@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, shared.RegisterInput{Name: "Second", Email: "TAKEN@example.com", Password: "other-pass"})
	require.Error(t, err)
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, map[string]string{"email": "The email has already been taken."}, apiErr.Details)
}

func TestRegisterRaceLoserGetsSameFieldError(t *testing.T) {
	svc, repo, gen := newTestService(t)
	repo.createErr = common.ErrConflict.WithDetails("An account with this email already exists.")

	_, err := svc.Register(context.Background(), shared.RegisterInput{
		Name:     "Racer",
		Email:    "race@example.com",
		Password: "secret-pass",
		Avatar:   fakeImageReader(),
	})
	require.Error(t, err)

	// Same response shape as the pre-check path.
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, map[string]string{"email": "The email has already been taken."}, apiErr.Details)

	// Derivatives written before the failed insert are cleaned up.
	require.Len(t, gen.generated, 1)
	assert.Equal(t, gen.generated, gen.removed)
}

func TestRegisterUndecodableImageCreatesNoAccount(t *testing.T) {
	svc, repo, gen := newTestService(t)
	gen.generateErr = fmt.Errorf("%w: bogus payload", avatar.ErrUndecodable)

	_, err := svc.Register(context.Background(), shared.RegisterInput{
		Name:     "Bad Image",
		Email:    "badimage@example.com",
		Password: "secret-pass",
		Avatar:   fakeImageReader(),
	})
	require.Error(t, err)
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, map[string]string{"image": "The image field must be a valid image file."}, apiErr.Details)

	_, err = repo.FindByEmail(context.Background(), "badimage@example.com")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLoginReturnsIdenticalErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, shared.RegisterInput{Name: "Login Person", Email: "login@example.com", Password: "right-pass"})
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, "nobody@example.com", "whatever")
	require.Error(t, unknownErr)
	_, wrongErr := svc.Login(ctx, "login@example.com", "wrong-pass")
	require.Error(t, wrongErr)

	unknownAPI, ok := common.IsAPIError(unknownErr)
	require.True(t, ok)
	wrongAPI, ok := common.IsAPIError(wrongErr)
	require.True(t, ok)

	// Indistinguishable responses keep account existence private.
	assert.Equal(t, http.StatusUnauthorized, unknownAPI.StatusCode)
	assert.Equal(t, unknownAPI.StatusCode, wrongAPI.StatusCode)
	assert.Equal(t, unknownAPI.Code, wrongAPI.Code)
	assert.Equal(t, unknownAPI.Message, wrongAPI.Message)
	assert.Equal(t, unknownAPI.Details, wrongAPI.Details)
}

func TestLoginSucceedsWithCorrectCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, shared.RegisterInput{Name: "Login Person", Email: "ok@example.com", Password: "right-pass"})
	require.NoError(t, err)

	loggedIn, err := svc.Login(ctx, "OK@example.com", "right-pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, loggedIn.ID)
}

func TestFindOrCreateOAuthUserReusesExistingAccount(t *testing.T) {
	svc, _, gen := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, shared.RegisterInput{Name: "Password Person", Email: "shared@example.com", Password: "local-pass"})
	require.NoError(t, err)

	resolved, isNew, err := svc.FindOrCreateOAuthUser(ctx, shared.OAuthUserProfile{
		Provider:   "google",
		ProviderID: "109",
		Email:      "shared@example.com",
		Name:       "Google Person",
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, resolved.ID)
	// The existing account is reused untouched: no provider identity linked.
	assert.Nil(t, resolved.ExternalID)
	assert.Empty(t, gen.fetchedURLs)

	// The local password still works afterwards.
	_, err = svc.Login(ctx, "shared@example.com", "local-pass")
	assert.NoError(t, err)
}

func TestFindOrCreateOAuthUserCreatesVerifiedAccount(t *testing.T) {
	svc, _, gen := newTestService(t)

	resolved, isNew, err := svc.FindOrCreateOAuthUser(context.Background(), shared.OAuthUserProfile{
		Provider:   "google",
		ProviderID: "42",
		Email:      "oauth@example.com",
		Name:       "OAuth Person",
		AvatarURL:  "https://lh3.example.com/photo.jpg",
	})
	require.NoError(t, err)
	assert.True(t, isNew)
	require.NotNil(t, resolved.ExternalID)
	assert.Equal(t, "google:42", *resolved.ExternalID)
	require.NotNil(t, resolved.EmailVerifiedAt)
	require.NotNil(t, resolved.AvatarFilename)
	assert.Equal(t, []string{"https://lh3.example.com/photo.jpg"}, gen.fetchedURLs)
}

func TestFindOrCreateOAuthUserAccountCannotLoginWithPassword(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.FindOrCreateOAuthUser(ctx, shared.OAuthUserProfile{
		Provider:   "google",
		ProviderID: "7",
		Email:      "nopass@example.com",
		Name:       "No Password",
	})
	require.NoError(t, err)

	stored, err := repo.FindByEmail(ctx, "nopass@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)

	// Whatever is guessed, the random secret never matches.
	_, err = svc.Login(ctx, "nopass@example.com", "")
	assert.Error(t, err)
	_, err = svc.Login(ctx, "nopass@example.com", "password")
	assert.Error(t, err)
}

func TestFindOrCreateOAuthUserResolvesCreateRace(t *testing.T) {
	_, repo, _ := newTestService(t)
	ctx := context.Background()

	// Simulate losing the insert race: Create fails with conflict while the
	// winner's row is already visible.
	winner := &User{
		BaseModel:    common.BaseModel{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		Name:         "Winner",
		Email:        "race-oauth@example.com",
		PasswordHash: "hash",
	}
	repo.byEmail = map[string]*User{}
	repo.createErr = common.ErrConflict.WithDetails("An account with this email already exists.")

	findCalls := 0
	racingRepo := &racingRepository{fakeRepository: repo, winner: winner, findCalls: &findCalls}
	racedService := NewService(racingRepo, &fakeGenerator{}, &config.Config{BcryptCost: bcrypt.MinCost}, zap.NewNop())

	resolved, isNew, err := racedService.FindOrCreateOAuthUser(ctx, shared.OAuthUserProfile{
		Provider:   "google",
		ProviderID: "77",
		Email:      "race-oauth@example.com",
		Name:       "Loser",
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, winner.ID, resolved.ID)
}

// racingRepository reports not-found on the first lookup and the winner's row
// on the retry after the conflicting insert.
type racingRepository struct {
	*fakeRepository
	winner    *User
	findCalls *int
}

func (r *racingRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	*r.findCalls++
	if *r.findCalls == 1 {
		return nil, common.ErrNotFound.WithDetails("Account not found with this email.")
	}
	return r.winner, nil
}

func TestGetUserByID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, shared.RegisterInput{Name: "ById", Email: "byid@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	found, err := svc.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, found.Email)

	_, err = svc.GetUserByID(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
