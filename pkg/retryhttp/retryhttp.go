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

// Package retryhttp builds retrying HTTP clients that log through logrus.
package retryhttp

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Options tune a client.
type Options struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Insecure     bool
}

// DefaultOptions retry five times over about half a minute.
var DefaultOptions = Options{
	RetryMax:     5,
	RetryWaitMin: time.Second,
	RetryWaitMax: 10 * time.Second,
	Timeout:      5 * time.Minute,
}

// NewClient returns a retrying client.
func NewClient(o Options) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = o.RetryMax
	c.RetryWaitMin = o.RetryWaitMin
	c.RetryWaitMax = o.RetryWaitMax
	c.HTTPClient.Timeout = o.Timeout
	if o.Insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		c.HTTPClient.Transport = transport
	}
	c.Logger = &logrusWrapper{logger: logrus.WithField("client", "http")}
	return c
}

// our logger implements the leveledLogger interface
var _ retryablehttp.LeveledLogger = &logrusWrapper{}

type logrusWrapper struct {
	logger *logrus.Entry
}

func (l *logrusWrapper) fields(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return l.logger.WithFields(fields)
}

func (l *logrusWrapper) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l *logrusWrapper) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l *logrusWrapper) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l *logrusWrapper) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
