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

package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Event is an execution event or log line.
type Event struct {
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	EventType   string `json:"event_type,omitempty"`
	Level       string `json:"level,omitempty"`
	Message     string `json:"message"`
	NodeID      string `json:"node_instance_id,omitempty"`
	Operation   string `json:"operation,omitempty"`
	ErrorCauses []struct {
		Message   string `json:"message"`
		Traceback string `json:"traceback"`
	} `json:"error_causes,omitempty"`
}

func (e Event) String() string {
	kind := e.EventType
	if kind == "" {
		kind = strings.ToUpper(e.Level)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", e.Timestamp, kind)
	if e.NodeID != "" {
		fmt.Fprintf(&b, " [%s", e.NodeID)
		if e.Operation != "" {
			fmt.Fprintf(&b, ".%s", e.Operation)
		}
		b.WriteString("]")
	}
	fmt.Fprintf(&b, " %s", e.Message)
	for _, cause := range e.ErrorCauses {
		fmt.Fprintf(&b, "\n%s", strings.TrimSpace(cause.Traceback))
	}
	return b.String()
}

// ListEvents returns the events of execution starting at offset in
// chronological order.
func (c *Client) ListEvents(ctx context.Context, execution string, offset int) ([]Event, error) {
	query := url.Values{
		"execution_id": {execution},
		"_offset":      {fmt.Sprint(offset)},
		"_size":        {fmt.Sprint(c.pageSize)},
		"_sort":        {"@timestamp"},
		"include_logs": {"true"},
	}
	var page listResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/events", query: query}, &page); err != nil {
		return nil, err
	}
	var events []Event
	if len(page.Items) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(page.Items, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// AllEvents returns every event of execution.
func (c *Client) AllEvents(ctx context.Context, execution string) ([]Event, error) {
	var all []Event
	for {
		events, err := c.ListEvents(ctx, execution, len(all))
		if err != nil {
			return all, err
		}
		if len(events) == 0 {
			return all, nil
		}
		all = append(all, events...)
	}
}
