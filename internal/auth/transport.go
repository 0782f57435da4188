package auth

import (
	"io"
	"net/http"

	"github.com/PrefectHQ/fastmcp/pkg/logging"
	"github.com/PrefectHQ/fastmcp/pkg/oauth"
)

// Transport is an http.RoundTripper that attaches bearer credentials from a
// TokenManager and re-authenticates on 401 responses.
//
// A 401 triggers exactly one re-authentication and one retry of the original
// request. A second consecutive 401 is returned to the caller untouched, so
// a misbehaving server cannot cause a retry loop.
type Transport struct {
	// Base is the underlying round tripper. nil means
	// http.DefaultTransport.
	Base http.RoundTripper

	// Manager supplies and replaces credentials.
	Manager *TokenManager
}

// NewHTTPClient returns an http.Client whose requests carry credentials from
// the manager. Suitable for handing to MCP transports.
func NewHTTPClient(manager *TokenManager) *http.Client {
	return &http.Client{
		Transport: &Transport{Manager: manager},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	credential, err := t.Manager.Credential(ctx)
	if err != nil {
		return nil, err
	}

	first, err := authorizedRequest(req, credential, false)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Requests whose body cannot be replayed are not retried
	if req.Body != nil && req.GetBody == nil {
		logging.Debug("OAuth", "Got 401 for non-replayable request to %s, passing through", req.URL)
		return resp, nil
	}

	if challenge := oauth.ParseWWWAuthenticateFromResponse(resp); challenge != nil {
		t.Manager.HandleChallenge(challenge)
	}
	drainAndClose(resp)

	if err := t.Manager.OnAuthenticationFailure(ctx); err != nil {
		return nil, err
	}

	credential, err = t.Manager.Credential(ctx)
	if err != nil {
		return nil, err
	}

	retry, err := authorizedRequest(req, credential, true)
	if err != nil {
		return nil, err
	}

	logging.Debug("OAuth", "Retrying request to %s with fresh credential", req.URL)
	return t.base().RoundTrip(retry)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// authorizedRequest clones the request with the Authorization header set.
// Retries need a fresh body from GetBody because the first send consumed the
// original.
func authorizedRequest(req *http.Request, credential string, freshBody bool) (*http.Request, error) {
	cloned := req.Clone(req.Context())
	if freshBody && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		cloned.Body = body
	}
	cloned.Header.Set("Authorization", "Bearer "+credential)
	return cloned, nil
}

// drainAndClose releases the response so the connection can be reused.
func drainAndClose(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
