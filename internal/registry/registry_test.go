package registry_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkusio/jbang-catalog/internal/fetcher"
	"github.com/quarkusio/jbang-catalog/internal/maven"
	"github.com/quarkusio/jbang-catalog/internal/metrics"
	"github.com/quarkusio/jbang-catalog/internal/registry"
)

type call struct {
	Method string
	Path   string
	Header http.Header
	Body   string
	Form   map[string]string
}

// fakeRegistry records every admin call and answers with the status chosen
// by respond, defaulting to 201.
type fakeRegistry struct {
	mu      sync.Mutex
	calls   []call
	respond func(n int, c call) int
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := call{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}

	if r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
		_ = r.ParseForm()
		c.Form = make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			c.Form[k] = r.PostForm.Get(k)
		}
	} else {
		body, _ := io.ReadAll(r.Body)
		c.Body = string(body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	n := len(f.calls)
	f.mu.Unlock()

	status := http.StatusCreated
	if f.respond != nil {
		status = f.respond(n, c)
	}

	w.WriteHeader(status)
}

func (f *fakeRegistry) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]call(nil), f.calls...)
}

func newClient(t *testing.T, fake *fakeRegistry, opts registry.Options) *registry.Client {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	opts.URL = srv.URL + "/ignored/prefix"
	if opts.Token == "" {
		opts.Token = "s3cret"
	}

	c, err := registry.New(opts)
	require.NoError(t, err)

	return c
}

var platformCoord = maven.Coordinate{GroupID: "io.acme.platform", ArtifactID: "acme-bom-quarkus-platform-descriptor", Version: "1.2.0"}

func TestNew_RequiresURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "relative", url: "registry.acme.io"},
		{name: "unsupported scheme", url: "ftp://registry.acme.io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := registry.New(registry.Options{URL: tt.url})
			require.Error(t, err)
		})
	}
}

func TestPublishExtension(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	c := newClient(t, fake, registry.Options{})

	outcome, err := c.PublishExtension(t.Context(), []byte("name: Acme\n"))
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomePublished, outcome)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, registry.ExtensionPath, calls[0].Path)
	assert.Equal(t, "application/yaml", calls[0].Header.Get("Content-Type"))
	assert.Equal(t, "s3cret", calls[0].Header.Get(registry.TokenHeader))
	assert.Equal(t, "name: Acme\n", calls[0].Body)
}

func TestPublishCatalog_Headers(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	c := newClient(t, fake, registry.Options{})

	_, err := c.PublishCatalog(t.Context(), registry.CatalogRequest{
		PlatformKey: "io.acme.platform",
		Catalog:     []byte(`{"id":"x"}`),
		Pinned:      true,
		Type:        registry.TypeCatalog,
		Coordinate:  platformCoord,
	})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)

	h := calls[0].Header
	assert.Equal(t, registry.CatalogPath, calls[0].Path)
	assert.Equal(t, "io.acme.platform", h.Get("X-Platform"))
	assert.Equal(t, "true", h.Get("X-Platform-Pinned"))
	assert.Equal(t, "C", h.Get("X-Platform-Type"))
	assert.Equal(t, "io.acme.platform", h.Get("X-Group-Id"))
	assert.Equal(t, "acme-bom-quarkus-platform-descriptor", h.Get("X-Artifact-Id"))
	assert.Equal(t, "1.2.0", h.Get("X-Version"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.JSONEq(t, `{"id":"x"}`, calls[0].Body)
}

func TestPublishCatalog_ConflictTwiceIsSuccess(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{respond: func(int, call) int { return http.StatusConflict }}
	m := metrics.New()
	c := newClient(t, fake, registry.Options{Metrics: m})

	for range 2 {
		outcome, err := c.PublishCatalog(t.Context(), registry.CatalogRequest{
			PlatformKey: "io.acme.platform",
			Catalog:     []byte(`{}`),
			Type:        registry.TypeCatalog,
			Coordinate:  platformCoord,
		})
		require.NoError(t, err)
		assert.Equal(t, registry.OutcomeAlreadyExists, outcome)
	}

	assert.Len(t, fake.Calls(), 2)
}

func TestPublishCatalog_ServerError(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{respond: func(int, call) int { return http.StatusInternalServerError }}
	c := newClient(t, fake, registry.Options{})

	_, err := c.PublishCatalog(t.Context(), registry.CatalogRequest{
		PlatformKey: "io.acme.platform",
		Catalog:     []byte(`{}`),
		Type:        registry.TypeCatalog,
		Coordinate:  platformCoord,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500 -> Internal Server Error")
}

func TestPublishCompatibility_AbortsOnFirstFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{respond: func(n int, _ call) int {
		if n == 2 {
			return http.StatusBadRequest
		}

		return http.StatusOK
	}}
	c := newClient(t, fake, registry.Options{})

	err := c.PublishCompatibility(t.Context(),
		maven.Coordinate{GroupID: "io.acme", ArtifactID: "acme-ext", Version: "0.3.0"},
		[]string{"3.8", "3.9", "3.10"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3.9")

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, registry.CompatibilityPath, calls[0].Path)
	assert.Equal(t, map[string]string{
		"groupId":     "io.acme",
		"artifactId":  "acme-ext",
		"version":     "0.3.0",
		"quarkusCore": "3.8",
		"compatible":  "true",
	}, calls[0].Form)
}

func TestPublishCompatibility_ConflictIsAnError(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{respond: func(int, call) int { return http.StatusConflict }}
	c := newClient(t, fake, registry.Options{})

	err := c.PublishCompatibility(t.Context(),
		maven.Coordinate{GroupID: "io.acme", ArtifactID: "acme-ext", Version: "0.3.0"},
		[]string{"3.8"},
	)
	require.Error(t, err)
}

func TestPatchStream(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{respond: func(int, call) int { return http.StatusOK }}
	c := newClient(t, fake, registry.Options{})

	err := c.PatchStream(t.Context(), registry.StreamPatch{
		PlatformKey: "io.acme.platform",
		Stream:      "1.2",
		Pinned:      true,
		LTS:         true,
	})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPatch, calls[0].Method)
	assert.Equal(t, "/admin/v1/stream/io.acme.platform/1.2", calls[0].Path)
	assert.Equal(t, "s3cret", calls[0].Header.Get(registry.TokenHeader))
	assert.Equal(t, map[string]string{"pinned": "true", "unlisted": "false", "lts": "true"}, calls[0].Form)
}

func TestDryRun_SendsNothing(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	c := newClient(t, fake, registry.Options{DryRun: true})

	outcome, err := c.PublishExtension(t.Context(), []byte("name: Acme\n"))
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeDryRun, outcome)

	require.NoError(t, c.PatchStream(t.Context(), registry.StreamPatch{PlatformKey: "p", Stream: "1.0"}))
	require.NoError(t, c.PublishCompatibility(t.Context(), maven.Coordinate{GroupID: "g", ArtifactID: "a", Version: "1"}, []string{"3.8"}))

	assert.Empty(t, fake.Calls())
	assert.True(t, c.DryRun())
}

func TestRateLimit_HonoursContext(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	c := newClient(t, fake, registry.Options{RateLimit: 0.001})

	_, err := c.PublishExtension(t.Context(), []byte("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = c.PublishExtension(ctx, []byte("b"))
	require.Error(t, err)
	assert.Len(t, fake.Calls(), 1)
}

// fakeSource serves member catalogs by coordinate.
type fakeSource struct {
	mu       sync.Mutex
	requests []fetcher.Request
	fail     bool
}

func (s *fakeSource) Catalog(_ context.Context, req fetcher.Request) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.fail {
		return nil, errors.New("can't read the extension catalog")
	}

	return []byte(`{"id":"` + req.Coordinate.String() + `"}`), nil
}

const parentCatalog = `{
  "id": "io.acme.platform:acme-bom-quarkus-platform-descriptor:1.2.0:json:1.2.0",
  "bom": "io.acme.platform:acme-bom::pom:1.2.0",
  "metadata": {
    "platform-release": {
      "platform-key": "io.acme.platform",
      "members": [
        "io.acme.platform:acme-bom-quarkus-platform-descriptor:1.2.0:json:1.2.0",
        "io.acme.platform:acme-camel-bom-quarkus-platform-descriptor:1.2.0:json:1.2.0",
        "io.acme.platform:acme-kafka-bom-quarkus-platform-descriptor:json:1.2.1"
      ]
    }
  }
}`

func TestPublishMembers_SkipsSelf(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	c := newClient(t, fake, registry.Options{})
	src := &fakeSource{}

	outcomes, err := c.PublishMembers(t.Context(), src, registry.MembersRequest{
		Parent:       []byte(parentCatalog),
		Repositories: []string{"https://repo.acme.io/maven2/"},
		ServerID:     "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, []registry.Outcome{registry.OutcomePublished, registry.OutcomePublished}, outcomes)

	calls := fake.Calls()
	require.Len(t, calls, 2)

	for _, got := range calls {
		assert.Equal(t, "M", got.Header.Get("X-Platform-Type"))
		assert.Equal(t, "false", got.Header.Get("X-Platform-Pinned"))
	}

	assert.Equal(t, "io.acme.platform:acme-camel-bom-quarkus-platform-descriptor", calls[0].Header.Get("X-Platform"))
	assert.Equal(t, "1.2.0", calls[0].Header.Get("X-Version"))
	assert.Equal(t, "io.acme.platform:acme-kafka-bom-quarkus-platform-descriptor", calls[1].Header.Get("X-Platform"))
	assert.Equal(t, "1.2.1", calls[1].Header.Get("X-Version"))

	require.Len(t, src.requests, 2)
	assert.Equal(t, "1.2.0", src.requests[0].Coordinate.Classifier)
	assert.Equal(t, "1.2.1", src.requests[1].Coordinate.Classifier)
	assert.Equal(t, "acme", src.requests[1].ServerID)
	assert.Equal(t, []string{"https://repo.acme.io/maven2/"}, src.requests[1].Repositories)
}

func TestPublishMembers_NoMembers(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	c := newClient(t, fake, registry.Options{})

	outcomes, err := c.PublishMembers(t.Context(), &fakeSource{}, registry.MembersRequest{
		Parent: []byte(`{"id":"io.acme:acme-bom:1.0.0"}`),
	})
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Empty(t, fake.Calls())
}

func TestPublishMembers_FetchFailureStops(t *testing.T) {
	t.Parallel()

	fake := &fakeRegistry{}
	c := newClient(t, fake, registry.Options{})
	src := &fakeSource{fail: true}

	_, err := c.PublishMembers(t.Context(), src, registry.MembersRequest{Parent: []byte(parentCatalog)})
	require.Error(t, err)
	assert.Len(t, src.requests, 1)
	assert.Empty(t, fake.Calls())
}

func TestParseCatalog_Invalid(t *testing.T) {
	t.Parallel()

	_, err := registry.ParseCatalog([]byte("not json"))
	require.Error(t, err)
}
