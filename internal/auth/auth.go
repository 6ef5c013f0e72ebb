// Package auth turns the on-disk credential into an authorized HTTP client
// for the Google APIs. Every call runs a small explicit state machine from
// Start: a valid credential is used as-is, an expired one is refreshed, and
// anything else sends the user through the browser consent flow. Nothing is
// cached in memory between calls; the credential file is the only state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/classroom/v1"
	"google.golang.org/api/drive/v3"

	"github.com/tonimelisma/classroom-go/internal/tokenfile"
)

// Scopes are the OAuth scopes every credential must carry.
var Scopes = []string{
	classroom.ClassroomCoursesReadonlyScope,
	classroom.ClassroomCourseworkMeScope,
	drive.DriveFileScope,
}

// ErrConsentFailed wraps any failure of the interactive consent flow.
var ErrConsentFailed = errors.New("auth: consent failed")

// ErrRefreshFailed wraps a refresh that failed for a reason other than the
// refresh token being rejected: transport errors, 5xx from the token
// endpoint, unreadable responses. These fail the request instead of falling
// back to consent.
var ErrRefreshFailed = errors.New("auth: refresh failed")

// invalidGrant is the OAuth2 error code for a revoked or expired refresh token.
const invalidGrant = "invalid_grant"

// State is a step of the credential state machine.
type State int

// Credential states. Start is the entry point of every Credential call.
const (
	StateStart State = iota
	StateRefreshing
	StateNeedsConsent
	StateReady
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateRefreshing:
		return "refreshing"
	case StateNeedsConsent:
		return "needs_consent"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures an Authenticator.
type Options struct {
	TokenPath         string
	ClientSecretsPath string
	CallbackAddr      string

	// ConsentTimeout bounds the interactive flow. Zero means no limit beyond
	// the caller's context.
	ConsentTimeout time.Duration

	// HTTPClient is used for token endpoint calls and as the base transport
	// of authorized clients. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// Flow overrides the consent flow. Nil uses a LocalServerFlow bound to
	// CallbackAddr.
	Flow ConsentFlow

	// OpenURL launches a browser for the default flow.
	OpenURL func(string) error

	// OnTransition is called for every state change, after it is logged.
	OnTransition func(from, to State)
}

// Authenticator owns the credential lifecycle. It is safe to share between
// requests because it holds no credential state of its own.
type Authenticator struct {
	opts   Options
	flow   ConsentFlow
	logger *slog.Logger
}

// New creates an Authenticator.
func New(opts Options, logger *slog.Logger) *Authenticator {
	flow := opts.Flow
	if flow == nil {
		flow = &LocalServerFlow{
			Addr:    opts.CallbackAddr,
			OpenURL: opts.OpenURL,
			Logger:  logger,
		}
	}

	return &Authenticator{opts: opts, flow: flow, logger: logger}
}

// CallbackRedirectURI is the redirect the consent flow actually uses.
func (a *Authenticator) CallbackRedirectURI() string {
	return CallbackRedirectURI(a.opts.CallbackAddr)
}

// ClientSecretsPath is the configured location of credentials.json.
func (a *Authenticator) ClientSecretsPath() string {
	return a.opts.ClientSecretsPath
}

// Credential returns a ready credential, refreshing or running the consent
// flow as needed. The result is persisted before it is returned.
func (a *Authenticator) Credential(ctx context.Context) (*tokenfile.Credential, error) {
	cred, err := tokenfile.Load(a.opts.TokenPath, a.logger)
	if err != nil {
		return nil, fmt.Errorf("auth: loading credential: %w", err)
	}

	scoped := cred.HasScopes(Scopes)

	if cred.Valid() && scoped {
		a.transition(StateStart, StateReady)
		a.logger.Info("valid credentials found", slog.Time("expiry", cred.Token.Expiry))

		return cred, nil
	}

	from := StateStart

	switch {
	case cred == nil:
		a.logger.Info("no stored credentials")
	case !scoped:
		a.logger.Warn("stored credentials lack required scopes",
			slog.Any("granted", cred.Scopes),
		)
	case cred.Refreshable():
		a.transition(StateStart, StateRefreshing)

		refreshed, refreshErr := a.refresh(ctx, cred)
		if refreshErr == nil {
			a.transition(StateRefreshing, StateReady)

			return refreshed, nil
		}

		if !refreshTokenRejected(refreshErr) {
			return nil, refreshErr
		}

		a.logger.Warn("refresh token rejected, consent required", slog.String("error", refreshErr.Error()))

		from = StateRefreshing
	}

	a.transition(from, StateNeedsConsent)

	return a.consent(ctx)
}

// ForceConsent discards any stored credential and runs the consent flow.
// The client secrets file is checked first so a missing file leaves the
// stored credential untouched.
func (a *Authenticator) ForceConsent(ctx context.Context) (*tokenfile.Credential, error) {
	if _, err := a.oauthConfig(); err != nil {
		return nil, err
	}

	if err := tokenfile.Clear(a.opts.TokenPath, a.logger); err != nil {
		return nil, fmt.Errorf("auth: clearing credential: %w", err)
	}

	a.logger.Info("deleted stored credential to force re-authentication")
	a.transition(StateStart, StateNeedsConsent)

	return a.consent(ctx)
}

// Client returns an HTTP client authorized with a ready credential. The
// client does not refresh in the background: the next call re-enters the
// state machine from Start.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	cred, err := a.Credential(ctx)
	if err != nil {
		return nil, err
	}

	return oauth2.NewClient(a.withHTTPClient(ctx), oauth2.StaticTokenSource(cred.Token)), nil
}

// Logout removes the stored credential.
func (a *Authenticator) Logout() error {
	return tokenfile.Clear(a.opts.TokenPath, a.logger)
}

func (a *Authenticator) refresh(ctx context.Context, cred *tokenfile.Credential) (*tokenfile.Credential, error) {
	cfg, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}

	a.logger.Info("credentials expired and refresh token exists, refreshing")

	// Forget the stale access token so the source always hits the endpoint.
	stale := *cred.Token
	stale.AccessToken = ""
	stale.Expiry = time.Time{}

	tok, err := cfg.TokenSource(a.withHTTPClient(ctx), &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	refreshed := &tokenfile.Credential{Token: tok, Scopes: cred.Scopes}
	if err := tokenfile.Save(a.opts.TokenPath, refreshed); err != nil {
		return nil, fmt.Errorf("auth: saving refreshed credential: %w", err)
	}

	a.logger.Info("credentials refreshed", slog.Time("expiry", tok.Expiry))

	return refreshed, nil
}

// refreshTokenRejected reports whether the token endpoint refused the
// refresh token itself, the only refresh failure that consent can repair.
func refreshTokenRejected(err error) bool {
	var re *oauth2.RetrieveError

	return errors.As(err, &re) && re.ErrorCode == invalidGrant
}

func (a *Authenticator) consent(ctx context.Context) (*tokenfile.Credential, error) {
	cfg, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}

	if a.opts.ConsentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ConsentTimeout)

		defer cancel()
	}

	a.logger.Info("running consent flow to obtain new credentials")

	tok, err := a.flow.Consent(a.withHTTPClient(ctx), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConsentFailed, err)
	}

	if tok.RefreshToken == "" {
		a.logger.Warn("no refresh token obtained, the next request will need consent again")
	}

	cred := &tokenfile.Credential{Token: tok, Scopes: cfg.Scopes}
	if err := tokenfile.Save(a.opts.TokenPath, cred); err != nil {
		return nil, fmt.Errorf("auth: saving credential: %w", err)
	}

	a.transition(StateNeedsConsent, StateReady)
	a.logger.Info("new credentials obtained and saved",
		slog.String("path", a.opts.TokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return cred, nil
}

func (a *Authenticator) oauthConfig() (*oauth2.Config, error) {
	return LoadClientConfig(a.opts.ClientSecretsPath, a.opts.CallbackAddr, Scopes)
}

// withHTTPClient makes the oauth2 package use the configured client for
// token endpoint calls and as the base of authorized clients.
func (a *Authenticator) withHTTPClient(ctx context.Context) context.Context {
	if a.opts.HTTPClient == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, a.opts.HTTPClient)
}

func (a *Authenticator) transition(from, to State) {
	a.logger.Debug("auth state transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)

	if a.opts.OnTransition != nil {
		a.opts.OnTransition(from, to)
	}
}
