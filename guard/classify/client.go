package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gitlab.com/phishguard/phishguard"
)

// ErrBadStatus the service answered with a non-success status
var ErrBadStatus = errors.New("classifier returned non-success status")

// Client calls the remote prediction service. A zero timeout preserves the
// observed behavior of waiting indefinitely, a hung call stalls only that
// navigation's decision.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient for the service at endpoint
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	URL string `json:"url"`
}

// Classify a candidate URL. Any transport failure, non-2xx status or
// malformed body is an error, the engine fails open on it.
func (c *Client) Classify(ctx context.Context, uri string) (*phishguard.Verdict, error) {
	body, err := json.Marshal(&predictRequest{URL: uri})
	if err != nil {
		return nil, errors.Wrap(err, "encode predict request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict/", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build predict request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "predict call")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrBadStatus, "status %d", resp.StatusCode)
	}

	verdict := &phishguard.Verdict{}
	if err := json.NewDecoder(resp.Body).Decode(verdict); err != nil {
		return nil, errors.Wrap(err, "decode predict response")
	}
	return verdict, nil
}

// SendFeedback posts a user correction, fire-and-forget: callers are
// expected to log and discard the error
func (c *Client) SendFeedback(ctx context.Context, fb *phishguard.Feedback) error {
	body, err := json.Marshal(fb)
	if err != nil {
		return errors.Wrap(err, "encode feedback")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/feedback", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build feedback request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "feedback call")
	}
	defer resp.Body.Close()
	io.Copy(ioutil.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(ErrBadStatus, "status %d", resp.StatusCode)
	}
	log.Debug().Str("url", fb.URL).Str("label", fb.UserLabel).Msg("feedback sent")
	return nil
}

var _ phishguard.Classifier = (*Client)(nil)
