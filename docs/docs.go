// Package docs serves the landing page and the API reference rendered from
// the embedded OpenAPI document.
package docs

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Keksclan/swrgate/apierror"
)

//go:embed home.html openapi.json reference.html.tmpl
var assets embed.FS

// document is the subset of OpenAPI 3 the reference page renders.
type document struct {
	Info struct {
		Title       string `json:"title"`
		Version     string `json:"version"`
		Description string `json:"description"`
	} `json:"info"`
	Paths map[string]map[string]operation `json:"paths"`
}

type operation struct {
	Summary     string              `json:"summary"`
	Description string              `json:"description"`
	Parameters  []parameter         `json:"parameters"`
	Responses   map[string]response `json:"responses"`
}

type parameter struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
	Schema      struct {
		Type string `json:"type"`
	} `json:"schema"`
}

type response struct {
	Description string `json:"description"`
}

// Handler serves the pages. Everything is rendered once in New.
type Handler struct {
	home      []byte
	openapi   []byte
	reference []byte
}

// New loads and renders the embedded documents.
func New() (*Handler, error) {
	home, err := assets.ReadFile("home.html")
	if err != nil {
		return nil, err
	}
	spec, err := assets.ReadFile("openapi.json")
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("docs: parse openapi.json: %w", err)
	}
	tmpl, err := template.ParseFS(assets, "reference.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("docs: parse reference template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("docs: render reference: %w", err)
	}
	return &Handler{home: home, openapi: spec, reference: buf.Bytes()}, nil
}

// Home serves the landing page at /.
func (h *Handler) Home(w http.ResponseWriter, _ *http.Request) {
	write(w, "text/html; charset=utf-8", h.home)
}

// Routes returns the router to mount under /docs: the reference page at /
// and the raw document at /openapi.json.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(apierror.NotFound)
	r.MethodNotAllowed(apierror.NotFound)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		write(w, "text/html; charset=utf-8", h.reference)
	})
	r.Get("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		write(w, "application/json; charset=utf-8", h.openapi)
	})
	return r
}

func write(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
