package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/vocdoni/electiond/api"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/results"
	"github.com/vocdoni/electiond/types"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost

	errCodeNot200 = "API error"

	// DefaultRetries this enables Request() to handle the situation where the server connection fails
	DefaultRetries = 3
	// DefaultTimeout is the default timeout for the HTTP client. Casting a
	// vote waits for the ledger confirmation, so it is generous.
	DefaultTimeout = 3 * time.Minute
)

// HTTPclient is the election API HTTP client.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	token   string
	retries int
}

// Error is a non-200 response of the API.
type Error struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Message    string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %d (code %d): %s", errCodeNot200, e.HTTPStatus, e.Code, e.Message)
}

// New connects to the API host and returns the handle. Requests are
// anonymous until SetAuthToken is called.
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}
	c := &HTTPclient{
		c:       &http.Client{Transport: tr, Timeout: DefaultTimeout},
		host:    hostURL,
		retries: DefaultRetries,
	}
	log.Debugw("http client created", "host", hostURL.String())
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return c, nil
}

// SetAuthToken sets the bearer token sent with every request. An empty
// token makes requests anonymous.
func (c *HTTPclient) SetAuthToken(token string) {
	c.token = token
}

// SetRetries configures the number of retries for the HTTP client.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = max(n, 1)
}

// SetTimeout configures the timeout for the HTTP client.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
	if tr, ok := c.c.Transport.(*http.Transport); ok {
		tr.ResponseHeaderTimeout = d
	}
}

// CastVote submits a ballot and returns the receipt.
func (c *HTTPclient) CastVote(req *types.VoteRequest) (*api.VoteResponse, error) {
	resp := &api.VoteResponse{}
	if err := c.do(HTTPPOST, req, resp, api.VoteEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// Results returns the results of an election.
func (c *HTTPclient) Results(electionID string) (*results.Results, error) {
	resp := &results.Results{}
	if err := c.do(HTTPGET, nil, resp, electionPath(api.ElectionResultsEndpoint, electionID)); err != nil {
		return nil, err
	}
	return resp, nil
}

// Eligibility returns the eligibility status of the authenticated user.
func (c *HTTPclient) Eligibility(electionID string) (*api.EligibilityResponse, error) {
	resp := &api.EligibilityResponse{}
	if err := c.do(HTTPGET, nil, resp, electionPath(api.ElectionEligibilityEndpoint, electionID)); err != nil {
		return nil, err
	}
	return resp, nil
}

// HasVoted reports whether the authenticated user has voted.
func (c *HTTPclient) HasVoted(electionID string) (bool, error) {
	resp := &api.VotedResponse{}
	if err := c.do(HTTPGET, nil, resp, electionPath(api.ElectionVotedEndpoint, electionID)); err != nil {
		return false, err
	}
	return resp.HasVoted, nil
}

func electionPath(endpoint, electionID string) string {
	return strings.Replace(endpoint, "{"+api.ElectionURLParam+"}", url.PathEscape(electionID), 1)
}

// do performs a request and decodes a 200 response into out. Other
// statuses are returned as *Error.
func (c *HTTPclient) do(method string, body, out any, urlPath ...string) error {
	data, status, err := c.Request(method, body, nil, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := &Error{HTTPStatus: status}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Request performs a `method` type raw request to the endpoint specified in urlPath parameter.
// Method is either GET or POST. If POST, a JSON struct should be attached.  Returns the response,
// the status code and an error.
//
// Supports query parameters via `params` slice. If the slice is not empty, it should contain pairs of strings;
// the first element of each pair is the key, and the second element is the value.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var (
		body []byte
		err  error
	)

	if jsonBody != nil {
		body, err = json.Marshal(jsonBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	u, err := url.Parse(c.host.String())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse host URL: %w", err)
	}
	u.Path = path.Join(u.Path, path.Join(urlPath...))

	// Expecting even-length slice: [key1, val1, key2, val2, ...]
	// If length is odd, the last parameter without a pair will be ignored.
	if len(params) > 0 {
		values := url.Values{}
		for i := 0; i < len(params)-1; i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}

	headers := http.Header{}
	if jsonBody != nil {
		headers.Set("Content-Type", "application/json")
		headers.Set("Accept", "application/json")
	}
	if c.token != "" {
		headers.Set("Authorization", "Bearer "+c.token)
	}

	log.Debugw("http client request",
		"type", method,
		"url", u.String(),
		"body", func() string {
			if len(body) > 512 {
				return string(body[:512]) + "..."
			}
			return string(body)
		}(),
	)

	// Only connection errors are retried. A vote that reached the server is
	// never resent: the server does not retry ledger writes either.
	var resp *http.Response
	for i := 1; i <= c.retries; i++ {
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, rerr := http.NewRequest(method, u.String(), reqBody)
		if rerr != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", rerr)
		}
		req.Header = headers

		resp, err = c.c.Do(req)
		if err == nil {
			break
		}
		log.Warnw("http request failed", "error", err.Error(), "attempt", i, "retries", c.retries)
		if method == HTTPPOST || i == c.retries {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("http request ultimately failed after retries: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}
