package main

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"

	zedupdate "github.com/zedloc/zed-updater"
)

// Registry answers {owner}/{repo}/releases/latest with a YAML release document,
// and serves the release files under {owner}/{repo}/{version}/.
type Registry struct {
	root string
	mux  *http.ServeMux
}

func NewRegistry(root string) *Registry {
	r := &Registry{
		root: root,
		mux:  http.NewServeMux(),
	}
	r.mux.HandleFunc("GET /{owner}/{repo}/releases/latest", r.latest)
	r.mux.Handle("/", http.FileServer(http.Dir(root)))
	return r
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Registry) latest(w http.ResponseWriter, req *http.Request) {
	owner, repo := req.PathValue("owner"), req.PathValue("repo")
	if !validName(owner) || !validName(repo) {
		http.NotFound(w, req)
		return
	}
	release, err := r.Latest(owner, repo)
	if err != nil {
		log.Printf("%s/%s: %s", owner, repo, err)
		http.NotFound(w, req)
		return
	}
	data, err := yaml.Marshal(release)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

// Latest builds the document of the newest release folder of owner/repo.
// Folders are compared as versions, so both "1.2.3" and "20240115" work.
func (r *Registry) Latest(owner, repo string) (*zedupdate.HttpRelease, error) {
	dir := filepath.Join(r.root, owner, repo)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var latest os.DirEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if latest == nil || zedupdate.CompareVersions(entry.Name(), latest.Name()) > 0 {
			latest = entry
		}
	}
	if latest == nil {
		return nil, os.ErrNotExist
	}

	info, err := latest.Info()
	if err != nil {
		return nil, err
	}
	release := &zedupdate.HttpRelease{
		Name:        latest.Name(),
		TagName:     latest.Name(),
		PublishedAt: info.ModTime().UTC().Format(time.RFC3339),
	}

	releaseDir := filepath.Join(dir, latest.Name())
	files, err := os.ReadDir(releaseDir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if !file.Type().IsRegular() {
			continue
		}
		if file.Name() == "notes.md" {
			notes, err := os.ReadFile(filepath.Join(releaseDir, file.Name()))
			if err == nil {
				release.ReleaseNotes = string(notes)
			}
			continue
		}
		asset, err := newAsset(releaseDir, latest.Name(), file.Name())
		if err != nil {
			return nil, err
		}
		release.Assets = append(release.Assets, asset)
	}
	return release, nil
}

// newAsset describes one file, with a URL relative to the repository.
func newAsset(releaseDir, version, name string) (*zedupdate.HttpAsset, error) {
	file, err := os.Open(filepath.Join(releaseDir, name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return nil, err
	}
	return &zedupdate.HttpAsset{
		Name:     name,
		Size:     int(size),
		URL:      version + "/" + name,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}
