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

// Package logrusutil implements some helpers for using logrus
package logrusutil

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultFieldsFormatter wraps another logrus.Formatter, injecting
// DefaultFields into each Format() call, existing fields are preserved
// if they have the same key
type DefaultFieldsFormatter struct {
	WrappedFormatter logrus.Formatter
	DefaultFields    logrus.Fields
}

// NewDefaultFieldsFormatter returns a DefaultFieldsFormatter,
// if wrappedFormatter is nil &logrus.TextFormatter{} will be used instead
func NewDefaultFieldsFormatter(
	wrappedFormatter logrus.Formatter, defaultFields logrus.Fields,
) *DefaultFieldsFormatter {
	res := &DefaultFieldsFormatter{
		WrappedFormatter: wrappedFormatter,
		DefaultFields:    defaultFields,
	}
	if res.WrappedFormatter == nil {
		res.WrappedFormatter = &logrus.TextFormatter{}
	}
	return res
}

// Format implements logrus.Formatter's Format. We allocate a new Fields
// map in order to not modify the caller's Entry, as that is not a thread
// safe operation.
func (d *DefaultFieldsFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields, len(entry.Data)+len(d.DefaultFields))
	for k, v := range d.DefaultFields {
		data[k] = v
	}
	for k, v := range entry.Data {
		data[k] = v
	}
	return d.WrappedFormatter.Format(&logrus.Entry{
		Logger:  entry.Logger,
		Data:    data,
		Time:    entry.Time,
		Level:   entry.Level,
		Message: entry.Message,
	})
}

// CensoringFormatter replaces every occurrence of a secret in the message
// and in the fields of an entry with asterisks of the same length.
type CensoringFormatter struct {
	delegate   logrus.Formatter
	getSecrets func() sets.String
}

// NewCensoringFormatter returns a CensoringFormatter that censors the secrets
// returned by getSecrets before handing the entry to delegate.
func NewCensoringFormatter(delegate logrus.Formatter, getSecrets func() sets.String) CensoringFormatter {
	return CensoringFormatter{delegate: delegate, getSecrets: getSecrets}
}

// Format implements logrus.Formatter's Format.
func (f CensoringFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	secrets := f.secrets()
	data := make(logrus.Fields, len(entry.Data))
	for k, v := range entry.Data {
		switch value := v.(type) {
		case string:
			data[k] = censor(value, secrets)
		case error:
			data[k] = censor(value.Error(), secrets)
		case fmt.Stringer:
			data[k] = censor(value.String(), secrets)
		default:
			data[k] = v
		}
	}
	return f.delegate.Format(&logrus.Entry{
		Logger:  entry.Logger,
		Data:    data,
		Time:    entry.Time,
		Level:   entry.Level,
		Message: censor(entry.Message, secrets),
	})
}

func (f CensoringFormatter) secrets() []string {
	var secrets []string
	for _, s := range f.getSecrets().UnsortedList() {
		trimmed := strings.TrimSpace(s)
		if trimmed != s {
			// Do not log through logrus here, it would re-enter this formatter.
			fmt.Fprintln(os.Stderr, "censoring formatter: secret contains leading or trailing whitespace, using the trimmed value")
		}
		if trimmed == "" {
			continue
		}
		secrets = append(secrets, trimmed)
	}
	return secrets
}

func censor(in string, secrets []string) string {
	for _, s := range secrets {
		in = strings.ReplaceAll(in, s, strings.Repeat("*", len(s)))
	}
	return in
}

// Options configures the process wide logger.
type Options struct {
	Level     string
	JSON      bool
	Component string
}

var (
	secretsLock sync.RWMutex
	secrets     = sets.NewString()
)

// RegisterSecrets adds values that must never appear in log output.
func RegisterSecrets(values ...string) {
	secretsLock.Lock()
	defer secretsLock.Unlock()
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			secrets.Insert(v)
		}
	}
}

func registeredSecrets() sets.String {
	secretsLock.RLock()
	defer secretsLock.RUnlock()
	return sets.NewString(secrets.UnsortedList()...)
}

// Init configures the standard logrus logger: level, output format, the
// component default field and censoring of registered secrets.
func Init(o Options) error {
	level, err := logrus.ParseLevel(o.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %v", o.Level, err)
	}
	logrus.SetLevel(level)

	var base logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if o.JSON {
		base = &logrus.JSONFormatter{}
	}
	var formatter logrus.Formatter = base
	if o.Component != "" {
		formatter = NewDefaultFieldsFormatter(base, logrus.Fields{"component": o.Component})
	}
	logrus.SetFormatter(NewCensoringFormatter(formatter, registeredSecrets))
	return nil
}
