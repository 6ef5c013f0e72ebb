package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// ConsentFlow obtains a fresh token by sending the user through Google's
// consent screen. The returned token comes straight from the code exchange.
type ConsentFlow interface {
	Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath matches the "http://localhost:8080/" redirect registered for
// installed-app clients.
const callbackPath = "/"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// LocalServerFlow runs the installed-app consent flow:
//  1. Binds an HTTP server on Addr (must match a registered redirect URI)
//  2. Opens the browser to Google's consent screen with offline access and
//     a forced approval prompt, so a refresh token is always issued
//  3. Receives the callback with the authorization code
//  4. Exchanges the code for a token
//
// OpenURL is called with the authorization URL. If it is nil or returns an
// error, the URL is printed to Stderr so the user can open it manually.
type LocalServerFlow struct {
	Addr    string
	OpenURL func(string) error
	Stderr  io.Writer
	Logger  *slog.Logger
}

// Consent implements ConsentFlow.
func (f *LocalServerFlow) Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	logger := f.logger()

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, addr, err := startCallbackServer(ctx, f.Addr, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, logger)

	// Work on a copy: the bound port can differ from the configured one when
	// Addr ends in ":0".
	flowCfg := *cfg
	flowCfg.RedirectURL = CallbackRedirectURI(addr)

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("auth: generating state token: %w", err)
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := flowCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	logger.Info("authorization URL", slog.String("url", authURL))

	f.launchBrowser(authURL, logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	logger.Info("received authorization code, exchanging for token")

	tok, err := flowCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: token exchange failed: %w", err)
	}

	return tok, nil
}

func (f *LocalServerFlow) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startCallbackServer binds addr and serves mux in the background. Returns
// the server and the bound address with the real port substituted.
func startCallbackServer(
	ctx context.Context,
	addr string,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, "", fmt.Errorf("auth: invalid callback address %q: %w", addr, err)
	}

	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("auth: binding callback listener on %s: %w", addr, err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, "", fmt.Errorf("auth: listener address is not TCP")
	}

	bound := net.JoinHostPort(host, strconv.Itoa(tcpAddr.Port))
	logger.Info("callback server listening", slog.String("addr", bound))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			resultCh <- callbackResult{err: fmt.Errorf("auth: callback server error: %w", serveErr)}
		}
	}()

	return srv, bound, nil
}

// registerCallbackHandler adds the callback route to the mux.
// Must be called before the browser redirects back.
func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, state, resultCh)
	})
}

// deliver sends without blocking. Only the first callback counts; stray
// requests (favicon, reloads) must not wedge the handler.
func deliver(resultCh chan<- callbackResult, res callbackResult) {
	select {
	case resultCh <- res:
	default:
	}
}

// handleOAuthCallback validates the state, extracts the code, and sends the result.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	q := r.URL.Query()

	if q.Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: fmt.Errorf("auth: OAuth2 state mismatch (possible CSRF)")})

		return
	}

	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: fmt.Errorf("auth: authorization failed: %s", errParam)})

		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: fmt.Errorf("auth: callback missing authorization code")})

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
		"<p>You can close this window and return to the application.</p></body></html>")
	deliver(resultCh, callbackResult{code: code})
}

// shutdownCallbackServer gracefully shuts down the callback HTTP server.
func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL, falling back to printing it.
func (f *LocalServerFlow) launchBrowser(authURL string, logger *slog.Logger) {
	stderr := f.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	if f.OpenURL == nil {
		fmt.Fprintf(stderr, "Please authorize this application to access your Google account:\n%s\n", authURL)
		return
	}

	logger.Info("opening browser for authorization")

	if openErr := f.OpenURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is done.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("auth: consent canceled: %w", ctx.Err())
	}
}

// generateState produces a cryptographically random hex string for the
// OAuth2 state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
