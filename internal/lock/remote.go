package lock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const codeStatusSet = "set"

// RemoteProvider talks to a lock-management API that programs codes on
// real devices. Code activation and removal are asynchronous on the
// device side, so both Allocate and Revoke poll until the remote
// confirms the transition.
type RemoteProvider struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *slog.Logger
}

type RemoteOption func(*RemoteProvider)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(p *RemoteProvider) { p.client = c }
}

// WithPolling overrides the 1s interval and the cap after which a
// pending transition fails with ErrProvisioningTimeout.
func WithPolling(interval, timeout time.Duration) RemoteOption {
	return func(p *RemoteProvider) {
		p.pollInterval = interval
		p.pollTimeout = timeout
	}
}

func NewRemoteProvider(baseURL, apiKey string, logger *slog.Logger, opts ...RemoteOption) *RemoteProvider {
	p := &RemoteProvider{
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: time.Second,
		pollTimeout:  2 * time.Minute,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type remoteDevice struct {
	DeviceID                     string `json:"device_id"`
	CanProgramOnlineAccessCodes  bool   `json:"can_program_online_access_codes"`
	CanProgramOfflineAccessCodes bool   `json:"can_program_offline_access_codes"`
}

type remoteAccessCode struct {
	AccessCodeID string `json:"access_code_id"`
	Code         string `json:"code"`
	Status       string `json:"status"`
}

func (p *RemoteProvider) Allocate(ctx context.Context, startsAt time.Time, deviceID string) (string, error) {
	var device remoteDevice
	if err := p.get(ctx, "/devices/"+deviceID, &device); err != nil {
		return "", fmt.Errorf("fetch device %s: %w", deviceID, err)
	}
	if !device.CanProgramOnlineAccessCodes && !device.CanProgramOfflineAccessCodes {
		return "", ErrDeviceUnsupported
	}

	startsAt = startsAt.UTC().Truncate(time.Second)
	endsAt := startsAt.Add(CodeValidity)
	body := map[string]any{
		"device_id": deviceID,
		"name":      "temporary access code from " + startsAt.Format(time.RFC3339),
		"starts_at": startsAt.Format(time.RFC3339),
		"ends_at":   endsAt.Format(time.RFC3339),
		"code":      fmt.Sprintf("%06d", rand.IntN(900000)+100000),
	}
	var created remoteAccessCode
	if err := p.post(ctx, "/access_codes", body, &created); err != nil {
		return "", fmt.Errorf("create access code: %w", err)
	}

	// Activation is asynchronous: the code is unusable until the remote
	// reports it as set.
	err := p.poll(ctx, func(ctx context.Context) (bool, error) {
		var ac remoteAccessCode
		if err := p.get(ctx, "/access_codes/"+created.AccessCodeID, &ac); err != nil {
			return false, err
		}
		return ac.Status == codeStatusSet, nil
	})
	if err != nil {
		return "", fmt.Errorf("wait for access code %s to be set: %w", created.AccessCodeID, err)
	}
	p.logger.Info("access code set", "access_code_id", created.AccessCodeID, "device_id", deviceID)
	return created.AccessCodeID, nil
}

func (p *RemoteProvider) Read(ctx context.Context, codeID string) (string, error) {
	var ac remoteAccessCode
	if err := p.get(ctx, "/access_codes/"+codeID, &ac); err != nil {
		return "", fmt.Errorf("read access code %s: %w", codeID, err)
	}
	return ac.Code, nil
}

func (p *RemoteProvider) Revoke(ctx context.Context, codeID string) error {
	if err := p.delete(ctx, "/access_codes/"+codeID); err != nil {
		return fmt.Errorf("delete access code %s: %w", codeID, err)
	}
	// The caller must never be told a code is gone while the device still
	// accepts it, so block until the remote stops reporting it.
	err := p.poll(ctx, func(ctx context.Context) (bool, error) {
		var ac remoteAccessCode
		err := p.get(ctx, "/access_codes/"+codeID, &ac)
		if err != nil {
			if errors.Is(err, ErrCodeNotFound) {
				return true, nil
			}
			return false, err
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("wait for access code %s removal: %w", codeID, err)
	}
	p.logger.Info("access code deleted", "access_code_id", codeID)
	return nil
}

func (p *RemoteProvider) Reusable() bool { return false }

func (p *RemoteProvider) poll(ctx context.Context, done func(context.Context) (bool, error)) error {
	deadline := time.NewTimer(p.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := done(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrProvisioningTimeout
		case <-ticker.C:
		}
	}
}

func (p *RemoteProvider) get(ctx context.Context, path string, out any) error {
	return p.do(ctx, http.MethodGet, path, nil, out)
}

func (p *RemoteProvider) post(ctx context.Context, path string, body, out any) error {
	return p.do(ctx, http.MethodPost, path, body, out)
}

func (p *RemoteProvider) delete(ctx context.Context, path string) error {
	return p.do(ctx, http.MethodDelete, path, nil, nil)
}

func (p *RemoteProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrCodeNotFound
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("lock api %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
