package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/tunepack-go/internal/domain"
	"go.uber.org/zap"
)

// QR check codes reported by the upstream login flow
const (
	QRCodeExpired   = 800
	QRCodeWaiting   = 801
	QRCodeScanned   = 802
	QRCodeConfirmed = 803
)

// AuthClient talks to the upstream's login endpoints. It implements
// domain.AuthProvider: login status queries and a bounded-polling QR
// login wait. The session cookie obtained from a confirmed QR login is
// held here and handed to the resolver for authenticated resolution.
type AuthClient struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *zap.Logger

	mu           sync.RWMutex
	sessionToken string

	// OnQR is invoked when a QR login starts, with the scannable URL
	// and a base64 PNG of the code. Nil when no display is attached.
	OnQR func(qrURL, qrImage string)
}

// NewAuthClient creates a new authentication client
func NewAuthClient(baseURL string, cfg domain.AuthConfig, timeout time.Duration, logger *zap.Logger) *AuthClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}
	return &AuthClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       logger,
	}
}

// SetSessionToken installs a session cookie obtained elsewhere
func (a *AuthClient) SetSessionToken(token string) {
	a.mu.Lock()
	a.sessionToken = token
	a.mu.Unlock()
}

// SessionToken returns the current session cookie, or ""
func (a *AuthClient) SessionToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionToken
}

// LoginStatus returns the current authentication state. The upstream
// nests the status code and profile inconsistently; both shapes are
// normalized here.
func (a *AuthClient) LoginStatus(ctx context.Context) (domain.LoginStatus, error) {
	token := a.SessionToken()
	if token == "" {
		return domain.LoginStatus{}, nil
	}

	body, err := a.get(ctx, "/login/status", nil, token)
	if err != nil {
		return domain.LoginStatus{}, err
	}

	var envelope struct {
		Code    int `json:"code"`
		Profile *struct {
			UserID   int64  `json:"userId"`
			Nickname string `json:"nickname"`
		} `json:"profile"`
		Data *struct {
			Code    int `json:"code"`
			Profile *struct {
				UserID   int64  `json:"userId"`
				Nickname string `json:"nickname"`
			} `json:"profile"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.LoginStatus{}, fmt.Errorf("unparseable login status: %w", err)
	}

	code := envelope.Code
	profile := envelope.Profile
	if envelope.Data != nil {
		if code == 0 {
			code = envelope.Data.Code
		}
		if profile == nil {
			profile = envelope.Data.Profile
		}
	}

	if code != 200 || profile == nil {
		return domain.LoginStatus{}, nil
	}
	return domain.LoginStatus{
		Authenticated: true,
		SessionToken:  token,
		Nickname:      profile.Nickname,
		UserID:        profile.UserID,
	}, nil
}

// AwaitLogin drives a QR login to completion: obtain a key, render the
// code through OnQR, then poll the check endpoint every pollInterval
// until the login is confirmed. An expired code is replaced with a
// fresh one. The wait is bounded by maxWait.
func (a *AuthClient) AwaitLogin(ctx context.Context) (domain.LoginStatus, error) {
	deadline := time.Now().Add(a.maxWait)

	key, err := a.qrKey(ctx)
	if err != nil {
		return domain.LoginStatus{}, fmt.Errorf("failed to start QR login: %w", err)
	}
	if err := a.showQR(ctx, key); err != nil {
		return domain.LoginStatus{}, err
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.LoginStatus{}, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return domain.LoginStatus{}, fmt.Errorf("login wait exceeded %s", a.maxWait)
		}

		code, cookie, err := a.qrCheck(ctx, key)
		if err != nil {
			a.logger.Warn("QR status check failed", zap.Error(err))
			continue
		}

		switch code {
		case QRCodeConfirmed:
			a.SetSessionToken(cookie)
			a.logger.Info("QR login confirmed")
			return a.LoginStatus(ctx)
		case QRCodeExpired:
			key, err = a.qrKey(ctx)
			if err != nil {
				return domain.LoginStatus{}, fmt.Errorf("failed to refresh QR key: %w", err)
			}
			if err := a.showQR(ctx, key); err != nil {
				return domain.LoginStatus{}, err
			}
		case QRCodeWaiting, QRCodeScanned:
			// keep polling
		}
	}
}

// qrKey obtains a fresh QR login key
func (a *AuthClient) qrKey(ctx context.Context) (string, error) {
	body, err := a.get(ctx, "/login/qr/key", url.Values{"timestamp": {fmt.Sprint(time.Now().UnixMilli())}}, "")
	if err != nil {
		return "", err
	}

	var envelope struct {
		Data struct {
			Unikey string `json:"unikey"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("unparseable QR key response: %w", err)
	}
	if envelope.Data.Unikey == "" {
		return "", fmt.Errorf("upstream returned empty QR key")
	}
	return envelope.Data.Unikey, nil
}

// showQR fetches the scannable code for a key and hands it to OnQR
func (a *AuthClient) showQR(ctx context.Context, key string) error {
	if a.OnQR == nil {
		return nil
	}

	body, err := a.get(ctx, "/login/qr/create", url.Values{"key": {key}, "qrimg": {"true"}}, "")
	if err != nil {
		return fmt.Errorf("failed to create QR code: %w", err)
	}

	var envelope struct {
		Data struct {
			QRURL   string `json:"qrurl"`
			QRImage string `json:"qrimg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unparseable QR create response: %w", err)
	}

	a.OnQR(envelope.Data.QRURL, envelope.Data.QRImage)
	return nil
}

// qrCheck polls the scan state of a key. On confirmation the upstream
// hands back the session cookie.
func (a *AuthClient) qrCheck(ctx context.Context, key string) (int, string, error) {
	body, err := a.get(ctx, "/login/qr/check", url.Values{
		"key":       {key},
		"timestamp": {fmt.Sprint(time.Now().UnixMilli())},
	}, "")
	if err != nil {
		return 0, "", err
	}

	var envelope struct {
		Code   int    `json:"code"`
		Cookie string `json:"cookie"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, "", fmt.Errorf("unparseable QR check response: %w", err)
	}
	return envelope.Code, envelope.Cookie, nil
}

// get issues one upstream GET and returns the response body
func (a *AuthClient) get(ctx context.Context, path string, query url.Values, cookie string) ([]byte, error) {
	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
