package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phuslu/log"
)

const (
	// TurnstileURL is Cloudflare's siteverify endpoint.
	TurnstileURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

	humanTimeout = 5 * time.Second
)

// ErrHumanCheckFailed is returned when the challenge token is missing or rejected.
var ErrHumanCheckFailed = errors.New("human verification failed")

// HumanVerifier checks Turnstile tokens. In the dev environment with no
// secret configured every request passes.
type HumanVerifier struct {
	secret   string
	dev      bool
	endpoint string
	client   *http.Client
}

// NewHumanVerifier creates a verifier for appEnv ("dev", "prod", ...).
func NewHumanVerifier(secret, appEnv string) *HumanVerifier {
	return &HumanVerifier{
		secret:   secret,
		dev:      strings.EqualFold(appEnv, "dev"),
		endpoint: TurnstileURL,
		client:   &http.Client{Timeout: humanTimeout},
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify returns nil when token proves a human.
func (v *HumanVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if v.dev && v.secret == "" {
		return nil
	}
	if token == "" {
		return ErrHumanCheckFailed
	}

	form := url.Values{"secret": {v.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	ctx, cancel := context.WithTimeout(ctx, humanTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("[AUTH] siteverify unreachable")
		return ErrHumanCheckFailed
	}
	defer resp.Body.Close()

	var out siteverifyResponse
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&out) != nil || !out.Success {
		log.Debug().Int("status", resp.StatusCode).Strs("codes", out.ErrorCodes).Msg("[AUTH] turnstile rejected")
		return ErrHumanCheckFailed
	}
	return nil
}
