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

// Package fakemanager serves an in-memory manager REST API for tests.
package fakemanager

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/manager"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/plugin"
)

// Manager holds the state of the fake. Exported maps may be seeded and
// inspected by tests; take Lock around access while the server runs.
type Manager struct {
	sync.Mutex

	Token  string
	Tenant string

	Blueprints  map[string]*manager.Blueprint
	Deployments map[string]*manager.Deployment
	Executions  map[string]*manager.Execution
	Events      map[string][]manager.Event
	Plugins     map[string]*manager.Plugin
	Secrets     map[string]string
	License     []byte

	// Outcomes scripts the statuses reported by successive polls of new
	// executions of a workflow. The last status sticks. Workflows without
	// an entry terminate on the first poll.
	Outcomes map[string][]string
	// BlueprintStates scripts the upload states of a blueprint likewise.
	BlueprintStates map[string][]string

	Calls []string

	progress map[string][]string
	order    []string
}

// New returns an empty fake.
func New() *Manager {
	return &Manager{
		Tenant:          manager.DefaultTenant,
		Blueprints:      map[string]*manager.Blueprint{},
		Deployments:     map[string]*manager.Deployment{},
		Executions:      map[string]*manager.Execution{},
		Events:          map[string][]manager.Event{},
		Plugins:         map[string]*manager.Plugin{},
		Secrets:         map[string]string{},
		Outcomes:        map[string][]string{},
		BlueprintStates: map[string][]string{},
		progress:        map[string][]string{},
	}
}

// Server starts serving the fake. Close the returned server when done.
func (m *Manager) Server() *httptest.Server {
	return httptest.NewServer(m.Router())
}

// Router returns the handler of the fake API.
func (m *Manager) Router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix(manager.APIVersion).Subrouter()
	api.Use(m.record, m.authenticate)
	api.HandleFunc("/status", m.status).Methods(http.MethodGet)
	api.HandleFunc("/license", m.putLicense).Methods(http.MethodPut)
	api.HandleFunc("/blueprints", m.listBlueprints).Methods(http.MethodGet)
	api.HandleFunc("/blueprints/{id}", m.putBlueprint).Methods(http.MethodPut)
	api.HandleFunc("/blueprints/{id}", m.getBlueprint).Methods(http.MethodGet)
	api.HandleFunc("/blueprints/{id}", m.deleteBlueprint).Methods(http.MethodDelete)
	api.HandleFunc("/deployments", m.listDeployments).Methods(http.MethodGet)
	api.HandleFunc("/deployments/{id}", m.putDeployment).Methods(http.MethodPut)
	api.HandleFunc("/deployments/{id}", m.getDeployment).Methods(http.MethodGet)
	api.HandleFunc("/deployments/{id}", m.deleteDeployment).Methods(http.MethodDelete)
	api.HandleFunc("/executions", m.listExecutions).Methods(http.MethodGet)
	api.HandleFunc("/executions", m.startExecution).Methods(http.MethodPost)
	api.HandleFunc("/executions/{id}", m.getExecution).Methods(http.MethodGet)
	api.HandleFunc("/executions/{id}", m.cancelExecution).Methods(http.MethodPost)
	api.HandleFunc("/events", m.listEvents).Methods(http.MethodGet)
	api.HandleFunc("/plugins", m.listPlugins).Methods(http.MethodGet)
	api.HandleFunc("/plugins", m.uploadPlugin).Methods(http.MethodPost)
	api.HandleFunc("/plugins/{id}", m.deletePlugin).Methods(http.MethodDelete)
	api.HandleFunc("/secrets/{key}", m.putSecret).Methods(http.MethodPut)
	api.HandleFunc("/secrets/{key}", m.deleteSecret).Methods(http.MethodDelete)
	return r
}

func (m *Manager) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Lock()
		m.Calls = append(m.Calls, r.Method+" "+r.URL.Path[len(manager.APIVersion):])
		m.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Tenant") != m.Tenant {
			writeError(w, http.StatusForbidden, "unauthorized_error", "unknown tenant")
			return
		}
		if m.Token != "" && r.Header.Get("Authentication-Token") != m.Token {
			writeError(w, http.StatusUnauthorized, "unauthorized_error", "bad token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errorCode, message string) {
	writeJSON(w, code, map[string]string{"error_code": errorCode, "message": message})
}

func notFound(w http.ResponseWriter, kind, id string) {
	writeError(w, http.StatusNotFound, "not_found_error", fmt.Sprintf("Requested `%s` with ID `%s` was not found", kind, id))
}

// page writes items, a []T, honouring _offset and _size.
func page(w http.ResponseWriter, r *http.Request, items []interface{}) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("_offset"))
	size, err := strconv.Atoi(r.URL.Query().Get("_size"))
	if err != nil || size <= 0 {
		size = 1000
	}
	if items == nil {
		items = []interface{}{}
	}
	total := len(items)
	if offset > total {
		offset = total
	}
	end := offset + size
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    items[offset:end],
		"metadata": map[string]interface{}{"pagination": manager.Pagination{Total: total, Size: size, Offset: offset}},
	})
}

func (m *Manager) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, manager.Status{Status: "running"})
}

func (m *Manager) putLicense(w http.ResponseWriter, r *http.Request) {
	b, _ := ioutil.ReadAll(r.Body)
	m.Lock()
	m.License = b
	m.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (m *Manager) listBlueprints(w http.ResponseWriter, r *http.Request) {
	m.Lock()
	defer m.Unlock()
	var items []interface{}
	for _, id := range sortedKeys(m.Blueprints) {
		items = append(items, m.Blueprints[id])
	}
	page(w, r, items)
}

func (m *Manager) putBlueprint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, _ := ioutil.ReadAll(r.Body)
	m.Lock()
	defer m.Unlock()
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "bad_parameters_error", "empty archive")
		return
	}
	if _, ok := m.Blueprints[id]; ok {
		writeError(w, http.StatusConflict, "conflict_error", "blueprint already exists")
		return
	}
	b := &manager.Blueprint{ID: id, State: manager.BlueprintUploaded, MainFileName: r.URL.Query().Get("application_file_name")}
	if states := m.BlueprintStates[id]; len(states) > 0 {
		b.State = "pending"
		m.progress["blueprint:"+id] = append([]string(nil), states...)
	}
	m.Blueprints[id] = b
	writeJSON(w, http.StatusCreated, b)
}

func (m *Manager) getBlueprint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m.Lock()
	defer m.Unlock()
	b, ok := m.Blueprints[id]
	if !ok {
		notFound(w, "Blueprint", id)
		return
	}
	if next, ok := m.advance("blueprint:" + id); ok {
		b.State = next
		if next != manager.BlueprintUploaded {
			b.Error = "parse failure"
		}
	}
	writeJSON(w, http.StatusOK, b)
}

func (m *Manager) deleteBlueprint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m.Lock()
	defer m.Unlock()
	if _, ok := m.Blueprints[id]; !ok {
		notFound(w, "Blueprint", id)
		return
	}
	for _, d := range m.Deployments {
		if d.BlueprintID == id && r.URL.Query().Get("force") != "true" {
			writeError(w, http.StatusBadRequest, "dependent_exists_error", "blueprint has deployments")
			return
		}
	}
	delete(m.Blueprints, id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (m *Manager) listDeployments(w http.ResponseWriter, r *http.Request) {
	blueprint := r.URL.Query().Get("blueprint_id")
	m.Lock()
	defer m.Unlock()
	var items []interface{}
	for _, id := range sortedKeys(m.Deployments) {
		if blueprint == "" || m.Deployments[id].BlueprintID == blueprint {
			items = append(items, m.Deployments[id])
		}
	}
	page(w, r, items)
}

func (m *Manager) putDeployment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		BlueprintID string                 `json:"blueprint_id"`
		Inputs      map[string]interface{} `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_parameters_error", err.Error())
		return
	}
	m.Lock()
	defer m.Unlock()
	if _, ok := m.Blueprints[body.BlueprintID]; !ok {
		notFound(w, "Blueprint", body.BlueprintID)
		return
	}
	if _, ok := m.Deployments[id]; ok {
		writeError(w, http.StatusConflict, "conflict_error", "deployment already exists")
		return
	}
	d := &manager.Deployment{ID: id, BlueprintID: body.BlueprintID, Inputs: body.Inputs}
	m.Deployments[id] = d
	m.newExecution(id, manager.WorkflowCreateEnvironment, nil)
	writeJSON(w, http.StatusCreated, d)
}

func (m *Manager) getDeployment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m.Lock()
	defer m.Unlock()
	d, ok := m.Deployments[id]
	if !ok {
		notFound(w, "Deployment", id)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (m *Manager) deleteDeployment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m.Lock()
	defer m.Unlock()
	if _, ok := m.Deployments[id]; !ok {
		notFound(w, "Deployment", id)
		return
	}
	delete(m.Deployments, id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// newExecution records an execution; the caller holds the lock.
func (m *Manager) newExecution(deployment, workflow string, params map[string]interface{}) *manager.Execution {
	e := &manager.Execution{
		ID:           uuid.New().String(),
		WorkflowID:   workflow,
		DeploymentID: deployment,
		Status:       manager.StatusPending,
		Parameters:   params,
	}
	if d, ok := m.Deployments[deployment]; ok {
		e.BlueprintID = d.BlueprintID
	}
	statuses := m.Outcomes[workflow]
	if len(statuses) == 0 {
		statuses = []string{manager.StatusTerminated}
	}
	m.progress["execution:"+e.ID] = append([]string(nil), statuses...)
	m.Executions[e.ID] = e
	m.order = append(m.order, e.ID)
	m.Events[e.ID] = append(m.Events[e.ID], manager.Event{Type: "cloudify_event", EventType: "workflow_started", Message: fmt.Sprintf("Starting '%s' workflow execution", workflow)})
	return e
}

// advance pops the next scripted state for key, keeping the last one.
func (m *Manager) advance(key string) (string, bool) {
	states, ok := m.progress[key]
	if !ok || len(states) == 0 {
		return "", false
	}
	next := states[0]
	if len(states) > 1 {
		m.progress[key] = states[1:]
	}
	return next, true
}

func (m *Manager) listExecutions(w http.ResponseWriter, r *http.Request) {
	deployment := r.URL.Query().Get("deployment_id")
	m.Lock()
	defer m.Unlock()
	var items []interface{}
	for _, id := range m.order {
		if e := m.Executions[id]; deployment == "" || e.DeploymentID == deployment {
			items = append(items, e)
		}
	}
	page(w, r, items)
}

func (m *Manager) startExecution(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeploymentID string                 `json:"deployment_id"`
		WorkflowID   string                 `json:"workflow_id"`
		Parameters   map[string]interface{} `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_parameters_error", err.Error())
		return
	}
	m.Lock()
	defer m.Unlock()
	if _, ok := m.Deployments[body.DeploymentID]; !ok {
		notFound(w, "Deployment", body.DeploymentID)
		return
	}
	writeJSON(w, http.StatusCreated, m.newExecution(body.DeploymentID, body.WorkflowID, body.Parameters))
}

func (m *Manager) getExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m.Lock()
	defer m.Unlock()
	e, ok := m.Executions[id]
	if !ok {
		notFound(w, "Execution", id)
		return
	}
	if !e.Terminal() {
		if next, ok := m.advance("execution:" + id); ok {
			e.Status = next
			if e.Terminal() {
				m.Events[id] = append(m.Events[id], manager.Event{Type: "cloudify_event", EventType: "workflow_" + next, Message: fmt.Sprintf("'%s' workflow execution %s", e.WorkflowID, next)})
			}
			if next == manager.StatusFailed {
				e.Error = "Traceback: task failed"
			}
		}
	}
	writeJSON(w, http.StatusOK, e)
}

func (m *Manager) cancelExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m.Lock()
	defer m.Unlock()
	e, ok := m.Executions[id]
	if !ok {
		notFound(w, "Execution", id)
		return
	}
	e.Status = manager.StatusCancelled
	writeJSON(w, http.StatusOK, e)
}

func (m *Manager) listEvents(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("execution_id")
	m.Lock()
	defer m.Unlock()
	var items []interface{}
	for _, e := range m.Events[id] {
		items = append(items, e)
	}
	page(w, r, items)
}

func (m *Manager) listPlugins(w http.ResponseWriter, r *http.Request) {
	m.Lock()
	defer m.Unlock()
	var items []interface{}
	for _, id := range sortedKeys(m.Plugins) {
		items = append(items, m.Plugins[id])
	}
	page(w, r, items)
}

func (m *Manager) uploadPlugin(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)
	query := r.URL.Query()
	if len(body) == 0 && query.Get("wagon_url") == "" {
		writeError(w, http.StatusBadRequest, "bad_parameters_error", "no plugin archive")
		return
	}
	m.Lock()
	defer m.Unlock()
	p := &manager.Plugin{ID: uuid.New().String(), PackageName: "uploaded-plugin", PackageVersion: strconv.Itoa(len(m.Plugins) + 1)}
	if w, err := plugin.ParseWagonName(path.Base(query.Get("wagon_url"))); err == nil {
		p.PackageName = strings.ReplaceAll(w.Name, "_", "-")
		p.PackageVersion = w.Version
	}
	m.Plugins[p.ID] = p
	writeJSON(w, http.StatusCreated, p)
}

func (m *Manager) deletePlugin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m.Lock()
	defer m.Unlock()
	if _, ok := m.Plugins[id]; !ok {
		notFound(w, "Plugin", id)
		return
	}
	delete(m.Plugins, id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (m *Manager) putSecret(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_parameters_error", err.Error())
		return
	}
	m.Lock()
	m.Secrets[mux.Vars(r)["key"]] = body.Value
	m.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"key": mux.Vars(r)["key"]})
}

func (m *Manager) deleteSecret(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	m.Lock()
	defer m.Unlock()
	if _, ok := m.Secrets[key]; !ok {
		notFound(w, "Secret", key)
		return
	}
	delete(m.Secrets, key)
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func sortedKeys(m interface{}) []string {
	var keys []string
	switch t := m.(type) {
	case map[string]*manager.Blueprint:
		for k := range t {
			keys = append(keys, k)
		}
	case map[string]*manager.Deployment:
		for k := range t {
			keys = append(keys, k)
		}
	case map[string]*manager.Plugin:
		for k := range t {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
