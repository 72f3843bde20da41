// Package auth establishes the Kite session: it validates a cached access
// token, and when that fails runs the manual request-token exchange.
// The browser-redirect capture flow is intentionally not implemented; the
// user completes login on any device and pastes the redirect URL back.
package auth

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/web3guy0/exitwave/internal/config"
	"github.com/web3guy0/exitwave/internal/kite"
)

var accessTokenLine = regexp.MustCompile(`(?m)^KITE_ACCESS_TOKEN=.*$`)

// Session authenticates the client. It tries the cached token first unless
// ForceLogin is set, then falls back to the manual login flow reading the
// request token from in (normally stdin). The fresh token is persisted to
// envPath.
func Session(client *kite.Client, cfg *config.Config, in io.Reader, envPath string, log zerolog.Logger) error {
	alog := log.With().Str("component", "auth").Logger()

	if cfg.AccessToken != "" && !cfg.ForceLogin {
		client.SetAccessToken(cfg.AccessToken)
		profile, err := client.Profile()
		if err == nil {
			alog.Info().Str("user", profile.UserName).Str("user_id", profile.UserID).Msg("Authenticated with cached token")
			return nil
		}
		if !kite.IsAuthError(err) {
			return fmt.Errorf("auth: validate cached token: %w", err)
		}
		alog.Info().Msg("Cached access token is invalid or expired")
	}

	alog.Info().Msg("Manual login required")
	alog.Info().Msgf("Open this URL, complete the Kite login, then paste the redirect URL or request_token here:")
	alog.Info().Msgf("  %s", client.LoginURL())

	fmt.Fprint(os.Stderr, "request_token: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("auth: no request token provided")
	}

	requestToken, err := ExtractRequestToken(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return err
	}

	token, err := client.GenerateSession(requestToken, cfg.APISecret)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	cfg.AccessToken = token

	if err := SaveAccessToken(envPath, token); err != nil {
		alog.Warn().Err(err).Msg("Could not persist access token")
	} else {
		alog.Debug().Msg("Access token saved to .env")
	}
	return nil
}

// ExtractRequestToken accepts either a bare request token or the full
// redirect URL Kite sends the browser to.
func ExtractRequestToken(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("auth: empty request token")
	}

	if strings.Contains(input, "request_token=") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("auth: unparseable redirect URL: %w", err)
		}
		token := u.Query().Get("request_token")
		if token == "" {
			return "", fmt.Errorf("auth: redirect URL carries no request_token")
		}
		return token, nil
	}
	return input, nil
}

// SaveAccessToken rewrites (or appends) the KITE_ACCESS_TOKEN line in the
// env file so the next run can reuse the session.
func SaveAccessToken(envPath, token string) error {
	line := "KITE_ACCESS_TOKEN=" + token

	content, err := os.ReadFile(envPath)
	if os.IsNotExist(err) {
		return os.WriteFile(envPath, []byte(line+"\n"), 0o600)
	}
	if err != nil {
		return err
	}

	if accessTokenLine.Match(content) {
		content = accessTokenLine.ReplaceAll(content, []byte(line))
	} else {
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content = append(content, '\n')
		}
		content = append(content, []byte(line+"\n")...)
	}
	return os.WriteFile(envPath, content, 0o600)
}
