package source

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

const defaultNodeDistURL = "https://nodejs.org/dist/"

// nodeRelease mirrors one entry of https://nodejs.org/dist/index.json.
type nodeRelease struct {
	Version string          `json:"version"` // "v20.11.0"
	Files   []string        `json:"files"`
	LTS     json.RawMessage `json:"lts"` // codename string, or false
}

// nodeFile describes how a files token of index.json maps to a download.
type nodeFile struct {
	os, arch string
	suffix   string // e.g. "linux-x64.tar.xz"
}

var nodeFiles = map[string]nodeFile{
	"linux-x64":     {os: "linux", arch: "amd64", suffix: "linux-x64.tar.xz"},
	"linux-arm64":   {os: "linux", arch: "arm64", suffix: "linux-arm64.tar.xz"},
	"linux-armv7l":  {os: "linux", arch: "arm", suffix: "linux-armv7l.tar.xz"},
	"osx-x64-tar":   {os: "darwin", arch: "amd64", suffix: "darwin-x64.tar.gz"},
	"osx-arm64-tar": {os: "darwin", arch: "arm64", suffix: "darwin-arm64.tar.gz"},
	"win-x64-zip":   {os: "windows", arch: "amd64", suffix: "win-x64.zip"},
	"win-arm64-zip": {os: "windows", arch: "arm64", suffix: "win-arm64.zip"},
}

// NodeDist lists Node.js releases from the nodejs.org dist index.
type NodeDist struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewNodeDist returns a NodeDist reading from nodejs.org.
func NewNodeDist() *NodeDist {
	return &NodeDist{BaseURL: defaultNodeDistURL, HTTPClient: http.DefaultClient}
}

func (n *NodeDist) Name() string {
	return "nodejs.org"
}

// Releases returns every Node.js release. LTS lines are stable; current lines are not.
func (n *NodeDist) Releases(ctx context.Context) ([]Release, error) {
	var raw []nodeRelease
	if err := getJSON(ctx, n.HTTPClient, joinURL(n.BaseURL, "index.json"), nil, &raw); err != nil {
		return nil, errors.Wrap(err, "listing Node.js releases")
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		rel := Release{
			Version: strings.TrimPrefix(r.Version, "v"),
			Stable:  isLTS(r.LTS),
		}
		checksums := joinURL(n.BaseURL, r.Version, "SHASUMS256.txt")
		for _, token := range r.Files {
			f, ok := nodeFiles[token]
			if !ok {
				continue
			}
			filename := "node-" + r.Version + "-" + f.suffix
			rel.Artifacts = append(rel.Artifacts, Artifact{
				OS:          f.os,
				Arch:        f.arch,
				URL:         joinURL(n.BaseURL, r.Version, filename),
				Filename:    filename,
				ChecksumURL: checksums,
			})
		}
		releases = append(releases, rel)
	}
	return releases, nil
}

func isLTS(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "false" && s != "null"
}
