package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/initiative"
)

type statusEnvelope struct {
	Success bool               `json:"success"`
	Data    *initiative.Status `json:"data"`
	Error   *struct {
		Code    errors.ErrorCode `json:"code"`
		Details string           `json:"details"`
	} `json:"error"`
}

// HTTPFetcher reads status from the tracker's REST API.
type HTTPFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPFetcher returns a fetcher for the server at baseURL that signs
// requests with the bearer token.
func NewHTTPFetcher(baseURL, token string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) FetchStatus(ctx context.Context, campaignID uint) (*initiative.Status, error) {
	endpoint := fmt.Sprintf("%s/api/v1/campaigns/%d/initiative", f.baseURL, campaignID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidParam)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable)
	}

	var env statusEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "unexpected response (HTTP %d)", resp.StatusCode)
	}
	if !env.Success {
		if env.Error != nil {
			return nil, errors.New(env.Error.Code, env.Error.Details)
		}
		return nil, errors.Newf(errors.ErrInternal, "request failed (HTTP %d)", resp.StatusCode)
	}
	if env.Data == nil {
		return &initiative.Status{}, nil
	}
	return env.Data, nil
}

// SubscribeURL maps the REST base onto the push channel for campaignID.
func SubscribeURL(baseURL, token string, campaignID uint) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/api/v1/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("campaign_id", fmt.Sprint(campaignID))
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
