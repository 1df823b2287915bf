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

// Package fakegithub serves the subset of the GitHub REST API used for
// releases, for tests of code that talks to GitHub through ghclient.
package fakegithub

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/google/go-github/github"
	"github.com/gorilla/mux"
)

// GitHub is an in-memory repository with releases and assets.
type GitHub struct {
	sync.Mutex
	Org  string
	Repo string

	Releases map[int64]*github.RepositoryRelease
	Assets   map[int64][]*github.ReleaseAsset
	// Content holds the bytes of every asset by asset id.
	Content map[int64]string
	// PullRequestFiles lists the changed files by pull request number.
	PullRequestFiles map[int][]string

	url    string
	nextID int64
}

// New returns an empty org/repo.
func New(org, repo string) *GitHub {
	return &GitHub{
		Org:              org,
		Repo:             repo,
		Releases:         map[int64]*github.RepositoryRelease{},
		Assets:           map[int64][]*github.ReleaseAsset{},
		Content:          map[int64]string{},
		PullRequestFiles: map[int][]string{},
	}
}

// Server starts an HTTP server for the fake. Its URL serves both the API and
// uploads, so it can be passed to ghclient.NewEnterpriseClient.
func (g *GitHub) Server() *httptest.Server {
	s := httptest.NewServer(g.Router())
	g.Lock()
	g.url = s.URL
	g.Unlock()
	return s
}

// Router returns the API handler.
func (g *GitHub) Router() http.Handler {
	r := mux.NewRouter()
	repo := r.PathPrefix("/repos/{org}/{repo}").Subrouter()
	repo.Use(g.repository)
	repo.HandleFunc("/releases", g.listReleases).Methods(http.MethodGet)
	repo.HandleFunc("/releases", g.createRelease).Methods(http.MethodPost)
	repo.HandleFunc("/releases/latest", g.latestRelease).Methods(http.MethodGet)
	repo.HandleFunc("/releases/tags/{tag}", g.releaseByTag).Methods(http.MethodGet)
	repo.HandleFunc("/releases/assets/{id:[0-9]+}", g.downloadAsset).Methods(http.MethodGet)
	repo.HandleFunc("/releases/assets/{id:[0-9]+}", g.deleteAsset).Methods(http.MethodDelete)
	repo.HandleFunc("/releases/{id:[0-9]+}", g.editRelease).Methods(http.MethodPatch)
	repo.HandleFunc("/releases/{id:[0-9]+}", g.deleteRelease).Methods(http.MethodDelete)
	repo.HandleFunc("/releases/{id:[0-9]+}/assets", g.listAssets).Methods(http.MethodGet)
	repo.HandleFunc("/releases/{id:[0-9]+}/assets", g.uploadAsset).Methods(http.MethodPost)
	repo.HandleFunc("/pulls/{number:[0-9]+}/files", g.listFiles).Methods(http.MethodGet)
	r.HandleFunc("/download/{id:[0-9]+}/{name}", g.browserDownload).Methods(http.MethodGet)
	return r
}

// AddRelease creates a published release tagged tag.
func (g *GitHub) AddRelease(tag string) *github.RepositoryRelease {
	g.Lock()
	defer g.Unlock()
	return g.addRelease(&github.RepositoryRelease{TagName: github.String(tag)})
}

// AddAsset attaches an asset called name with content to release id.
func (g *GitHub) AddAsset(id int64, name, content string) *github.ReleaseAsset {
	g.Lock()
	defer g.Unlock()
	return g.addAsset(id, name, content)
}

// Release returns the release tagged tag, or nil.
func (g *GitHub) Release(tag string) *github.RepositoryRelease {
	g.Lock()
	defer g.Unlock()
	return g.byTag(tag)
}

// AssetNames returns the sorted asset names of the release tagged tag.
func (g *GitHub) AssetNames(tag string) []string {
	g.Lock()
	defer g.Unlock()
	release := g.byTag(tag)
	if release == nil {
		return nil
	}
	var names []string
	for _, a := range g.Assets[release.GetID()] {
		names = append(names, a.GetName())
	}
	sort.Strings(names)
	return names
}

func (g *GitHub) addRelease(r *github.RepositoryRelease) *github.RepositoryRelease {
	g.nextID++
	r.ID = github.Int64(g.nextID)
	if r.Name == nil {
		r.Name = github.String(r.GetTagName())
	}
	r.HTMLURL = github.String(fmt.Sprintf("https://github.com/%s/%s/releases/tag/%s", g.Org, g.Repo, r.GetTagName()))
	g.Releases[r.GetID()] = r
	return r
}

func (g *GitHub) addAsset(id int64, name, content string) *github.ReleaseAsset {
	g.nextID++
	a := &github.ReleaseAsset{
		ID:                 github.Int64(g.nextID),
		Name:               github.String(name),
		Size:               github.Int(len(content)),
		DownloadCount:      github.Int(0),
		BrowserDownloadURL: github.String(fmt.Sprintf("%s/download/%d/%s", g.url, g.nextID, name)),
	}
	g.Assets[id] = append(g.Assets[id], a)
	g.Content[a.GetID()] = content
	return a
}

func (g *GitHub) byTag(tag string) *github.RepositoryRelease {
	for _, r := range g.Releases {
		if r.GetTagName() == tag {
			return r
		}
	}
	return nil
}

func (g *GitHub) sorted() []*github.RepositoryRelease {
	var releases []*github.RepositoryRelease
	for _, r := range g.Releases {
		releases = append(releases, r)
	}
	sort.Slice(releases, func(i, j int) bool { return releases[i].GetID() > releases[j].GetID() })
	return releases
}

func (g *GitHub) repository(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		if vars["org"] != g.Org || vars["repo"] != g.Repo {
			notFound(w)
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

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func id(r *http.Request) int64 {
	n, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return n
}

func (g *GitHub) listReleases(w http.ResponseWriter, r *http.Request) {
	g.Lock()
	defer g.Unlock()
	releases := g.sorted()
	if releases == nil {
		releases = []*github.RepositoryRelease{}
	}
	writeJSON(w, http.StatusOK, releases)
}

func (g *GitHub) createRelease(w http.ResponseWriter, r *http.Request) {
	var release github.RepositoryRelease
	if err := json.NewDecoder(r.Body).Decode(&release); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	g.Lock()
	defer g.Unlock()
	if g.byTag(release.GetTagName()) != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Validation Failed"})
		return
	}
	writeJSON(w, http.StatusCreated, g.addRelease(&release))
}

// latestRelease answers like GitHub: the newest release that is neither a
// draft nor a prerelease.
func (g *GitHub) latestRelease(w http.ResponseWriter, r *http.Request) {
	g.Lock()
	defer g.Unlock()
	for _, release := range g.sorted() {
		if !release.GetDraft() && !release.GetPrerelease() {
			writeJSON(w, http.StatusOK, release)
			return
		}
	}
	notFound(w)
}

func (g *GitHub) releaseByTag(w http.ResponseWriter, r *http.Request) {
	g.Lock()
	defer g.Unlock()
	release := g.byTag(mux.Vars(r)["tag"])
	if release == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, release)
}

func (g *GitHub) editRelease(w http.ResponseWriter, r *http.Request) {
	var edit github.RepositoryRelease
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	g.Lock()
	defer g.Unlock()
	release, ok := g.Releases[id(r)]
	if !ok {
		notFound(w)
		return
	}
	if edit.Name != nil {
		release.Name = edit.Name
	}
	if edit.Body != nil {
		release.Body = edit.Body
	}
	if edit.TargetCommitish != nil {
		release.TargetCommitish = edit.TargetCommitish
	}
	if edit.Prerelease != nil {
		release.Prerelease = edit.Prerelease
	}
	writeJSON(w, http.StatusOK, release)
}

func (g *GitHub) deleteRelease(w http.ResponseWriter, r *http.Request) {
	g.Lock()
	defer g.Unlock()
	if _, ok := g.Releases[id(r)]; !ok {
		notFound(w)
		return
	}
	delete(g.Releases, id(r))
	delete(g.Assets, id(r))
	w.WriteHeader(http.StatusNoContent)
}

func (g *GitHub) listAssets(w http.ResponseWriter, r *http.Request) {
	g.Lock()
	defer g.Unlock()
	if _, ok := g.Releases[id(r)]; !ok {
		notFound(w)
		return
	}
	assets := g.Assets[id(r)]
	if assets == nil {
		assets = []*github.ReleaseAsset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

func (g *GitHub) uploadAsset(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	g.Lock()
	defer g.Unlock()
	release := id(r)
	if _, ok := g.Releases[release]; !ok {
		notFound(w)
		return
	}
	for _, a := range g.Assets[release] {
		if a.GetName() == name {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Validation Failed"})
			return
		}
	}
	writeJSON(w, http.StatusCreated, g.addAsset(release, name, string(body)))
}

func (g *GitHub) findAsset(asset int64) (int64, int) {
	for release, assets := range g.Assets {
		for i, a := range assets {
			if a.GetID() == asset {
				return release, i
			}
		}
	}
	return 0, -1
}

func (g *GitHub) downloadAsset(w http.ResponseWriter, r *http.Request) {
	g.Lock()
	defer g.Unlock()
	content, ok := g.Content[id(r)]
	if !ok {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write([]byte(content))
}

func (g *GitHub) browserDownload(w http.ResponseWriter, r *http.Request) {
	g.downloadAsset(w, r)
}

func (g *GitHub) deleteAsset(w http.ResponseWriter, r *http.Request) {
	g.Lock()
	defer g.Unlock()
	release, i := g.findAsset(id(r))
	if i < 0 {
		notFound(w)
		return
	}
	g.Assets[release] = append(g.Assets[release][:i], g.Assets[release][i+1:]...)
	delete(g.Content, id(r))
	w.WriteHeader(http.StatusNoContent)
}

func (g *GitHub) listFiles(w http.ResponseWriter, r *http.Request) {
	number, _ := strconv.Atoi(mux.Vars(r)["number"])
	g.Lock()
	defer g.Unlock()
	files := []*github.CommitFile{}
	for _, name := range g.PullRequestFiles[number] {
		files = append(files, &github.CommitFile{Filename: github.String(name)})
	}
	writeJSON(w, http.StatusOK, files)
}
