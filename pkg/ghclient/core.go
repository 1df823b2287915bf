/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ghclient provides a github client that wraps go-github with retry logic, rate limiting,
// and depagination where necessary. It covers the release and asset surface used by plugin
// release pipelines.
package ghclient

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/go-github/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Client is an augmentation of the go-github client that adds retry logic, rate limiting, and pagination
// handling to applicable the client functions.
type Client struct {
	repoService repositoryService
	prService   pullRequestService
	httpClient  *http.Client

	retries             int
	retryInitialBackoff time.Duration

	tokenReserve int
	dryRun       bool
}

// NewClient makes a new Client with the specified token and dry-run status.
func NewClient(token string, dryRun bool) *Client {
	return newClient(github.NewClient(tokenClient(token)), dryRun)
}

// NewEnterpriseClient makes a new Client for the GitHub API served at endpoint.
func NewEnterpriseClient(token, endpoint string, dryRun bool) (*Client, error) {
	client, err := github.NewEnterpriseClient(endpoint, endpoint, tokenClient(token))
	if err != nil {
		return nil, err
	}
	return newClient(client, dryRun), nil
}

func tokenClient(token string) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   http.DefaultTransport,
			Source: oauth2.ReuseTokenSource(nil, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})),
		},
	}
}

func newClient(client *github.Client, dryRun bool) *Client {
	return &Client{
		repoService:         client.Repositories,
		prService:           client.PullRequests,
		httpClient:          &http.Client{Timeout: 10 * time.Minute},
		retries:             5,
		retryInitialBackoff: time.Second,
		tokenReserve:        50,
		dryRun:              dryRun,
	}
}

// DryRun reports whether mutating calls are only logged.
func (c *Client) DryRun() bool {
	return c.dryRun
}

func (c *Client) sleepForAttempt(retryCount int) {
	maxDelay := 20 * time.Second
	delay := c.retryInitialBackoff * time.Duration(math.Exp2(float64(retryCount)))
	if delay > maxDelay {
		delay = maxDelay
	}
	time.Sleep(delay)
}

func (c *Client) limitRate(r *github.Rate) {
	if r.Remaining <= c.tokenReserve && !r.Reset.Time.IsZero() {
		sleepDuration := time.Until(r.Reset.Time) + (time.Second * 10)
		if sleepDuration > 0 {
			logrus.Infof("--Rate Limiting-- Tokens reached minimum reserve %d. Sleeping until reset in %v.", c.tokenReserve, sleepDuration)
			time.Sleep(sleepDuration)
		}
	}
}

type retryAbort struct{ error }

func (r *retryAbort) Error() string {
	return fmt.Sprintf("aborting retry loop: %v", r.error)
}

// statusCode extracts the HTTP status of a go-github error, or 0.
func statusCode(err error) int {
	if e, ok := err.(*github.ErrorResponse); ok && e.Response != nil {
		return e.Response.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the GitHub API.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsUnprocessable reports whether err is a 422 from the GitHub API, which is
// what GitHub answers when an asset with the same name already exists.
func IsUnprocessable(err error) bool {
	return statusCode(err) == http.StatusUnprocessableEntity
}

// retry handles rate limiting and retry logic for a github API call.
func (c *Client) retry(action string, call func() (*github.Response, error)) (*github.Response, error) {
	var err error
	var resp *github.Response

	for retryCount := 0; retryCount <= c.retries; retryCount++ {
		if resp, err = call(); err == nil {
			if resp != nil {
				c.limitRate(&resp.Rate)
			}
			return resp, nil
		}
		switch err := err.(type) {
		case *github.RateLimitError:
			c.limitRate(&err.Rate)
		case *github.TwoFactorAuthError:
			return resp, err
		case *retryAbort:
			return resp, err
		case *github.ErrorResponse:
			// Client errors will not improve by asking again.
			if code := statusCode(err); code >= 400 && code < 500 {
				return resp, err
			}
		}

		if retryCount == c.retries {
			return resp, err
		}
		logrus.WithError(err).Errorf("error %s. Will retry.", action)
		c.sleepForAttempt(retryCount)
	}
	return resp, err
}

// depaginate adds depagination on top of the retry and rate limiting logic provided by retry.
func (c *Client) depaginate(action string, opts *github.ListOptions, call func() ([]interface{}, *github.Response, error)) ([]interface{}, error) {
	var allItems []interface{}
	wrapper := func() (*github.Response, error) {
		items, resp, err := call()
		if err == nil {
			allItems = append(allItems, items...)
		}
		return resp, err
	}

	opts.Page = 1
	opts.PerPage = 100
	lastPage := 1
	for ; opts.Page <= lastPage; opts.Page++ {
		resp, err := c.retry(action, wrapper)
		if err != nil {
			return allItems, fmt.Errorf("error while depaginating page %d/%d: %v", opts.Page, lastPage, err)
		}
		if resp != nil && resp.LastPage > 0 {
			lastPage = resp.LastPage
		}
	}
	return allItems, nil
}
