package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/desops"
	adapter "github.com/aretw0/desops/pkg/adapters/http"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plant: the fault f is followed by b forever, the normal run by c.
const plant = `{
  "kind": "dfa",
  "events": [
    {"name": "a"},
    {"name": "b", "controllable": false},
    {"name": "c"},
    {"name": "f", "controllable": false, "observable": false, "fault": "F1"}
  ],
  "states": [
    {"name": "s0", "initial": true},
    {"name": "s1"},
    {"name": "s2", "marked": true},
    {"name": "s3", "marked": true}
  ],
  "transitions": [
    {"from": "s0", "event": "f", "to": "s1"},
    {"from": "s1", "event": "a", "to": "s2"},
    {"from": "s2", "event": "b", "to": "s2"},
    {"from": "s0", "event": "a", "to": "s3"},
    {"from": "s3", "event": "c", "to": "s3"}
  ]
}`

// noB disables the uncontrollable b, so no supervisor exists.
const noB = `{
  "kind": "dfa",
  "events": [
    {"name": "a"},
    {"name": "b", "controllable": false},
    {"name": "c"},
    {"name": "f", "controllable": false, "observable": false, "fault": "F1"}
  ],
  "states": [{"name": "q", "initial": true, "marked": true}],
  "transitions": [
    {"from": "q", "event": "a", "to": "q"},
    {"from": "q", "event": "c", "to": "q"},
    {"from": "q", "event": "f", "to": "q"}
  ]
}`

func newServer(t *testing.T, opts ...desops.Option) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	opts = append(opts, desops.WithMetrics(metrics.New(reg)))
	h := adapter.NewHandler(desops.New(opts...),
		adapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, reg
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func decode(t *testing.T, body string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(body), v), body)
}

func TestHealthAndInfo(t *testing.T) {
	srv, _ := newServer(t)

	code, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	code, body = do(t, http.MethodGet, srv.URL+"/info", "")
	assert.Equal(t, http.StatusOK, code)
	var info map[string]string
	decode(t, body, &info)
	assert.Equal(t, "desops-http", info["app"])
	assert.Equal(t, strings.TrimSpace(desops.Version), info["version"])
}

func TestAutomataCRUD(t *testing.T) {
	srv, _ := newServer(t)
	base := srv.URL + "/v1/automata"

	code, body := do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ids":[]}`, body)

	code, _ = do(t, http.MethodPut, base+"/plant", plant)
	require.Equal(t, http.StatusNoContent, code)

	code, body = do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ids":["plant"]}`, body)

	code, body = do(t, http.MethodGet, base+"/plant", "")
	assert.Equal(t, http.StatusOK, code)
	var doc struct {
		Kind   string `json:"kind"`
		States []struct {
			Name string `json:"name"`
		} `json:"states"`
	}
	decode(t, body, &doc)
	assert.Equal(t, "dfa", doc.Kind)
	assert.Len(t, doc.States, 4)

	code, body = do(t, http.MethodGet, base+"/plant/graph", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(body, "graph LR"), body)

	code, _ = do(t, http.MethodDelete, base+"/plant", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, http.MethodGet, base+"/plant", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPutAutomaton_Invalid(t *testing.T) {
	srv, _ := newServer(t)

	code, body := do(t, http.MethodPut, srv.URL+"/v1/automata/x", `{"kind":"dfa","states":[{"name":"s0"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body, domain.ErrEmptyAutomaton.Error())

	code, _ = do(t, http.MethodPut, srv.URL+"/v1/automata/x", `{"kind":"dfa","states":[],"transitions":[{"from":"a","event":"e","to":"b"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestDiagnose(t *testing.T) {
	srv, _ := newServer(t)

	code, body := do(t, http.MethodPost, srv.URL+"/v1/diagnose", `{"plant":`+plant+`}`)
	require.Equal(t, http.StatusOK, code, body)
	var v struct {
		Diagnosable bool `json:"diagnosable"`
	}
	decode(t, body, &v)
	assert.True(t, v.Diagnosable)
}

func TestOpacity_ByID(t *testing.T) {
	srv, _ := newServer(t)
	code, _ := do(t, http.MethodPut, srv.URL+"/v1/automata/plant", plant)
	require.Equal(t, http.StatusNoContent, code)

	code, body := do(t, http.MethodPost, srv.URL+"/v1/opacity", `{"plant":{"id":"plant"},"secret":["s2"]}`)
	require.Equal(t, http.StatusOK, code, body)
	var v adapter.OpacityResponse
	decode(t, body, &v)
	assert.False(t, v.Opaque)
	assert.Equal(t, []string{"a", "b"}, v.Witness)
	assert.Equal(t, []string{"s2"}, v.Estimate)

	code, _ = do(t, http.MethodPost, srv.URL+"/v1/opacity", `{"plant":{"id":"plant"},"secret":["nowhere"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = do(t, http.MethodPost, srv.URL+"/v1/opacity", `{"plant":{"id":"plant"}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, http.MethodPost, srv.URL+"/v1/opacity", `{"plant":{"id":"plant"},"secret":["s2"],"observable":["ghost"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body, "ghost")
}

func TestSynthesize(t *testing.T) {
	srv, _ := newServer(t)

	code, body := do(t, http.MethodPost, srv.URL+"/v1/synthesize", `{"plant":`+plant+`,"spec":`+noB+`}`)
	require.Equal(t, http.StatusOK, code, body)
	var res desops.Synthesis
	decode(t, body, &res)
	assert.False(t, res.Exists)
	assert.Nil(t, res.Supervisor)

	code, body = do(t, http.MethodPost, srv.URL+"/v1/controllable", `{"plant":`+plant+`,"spec":`+noB+`}`)
	require.Equal(t, http.StatusOK, code, body)
	var ctrl struct {
		Controllable bool   `json:"controllable"`
		Event        string `json:"event"`
	}
	decode(t, body, &ctrl)
	assert.False(t, ctrl.Controllable)
	assert.Equal(t, "b", ctrl.Event)
}

func TestEquivalenceAndMinimize(t *testing.T) {
	srv, _ := newServer(t)

	code, body := do(t, http.MethodPost, srv.URL+"/v1/minimize", `{"plant":`+plant+`}`)
	require.Equal(t, http.StatusOK, code, body)

	code, body = do(t, http.MethodPost, srv.URL+"/v1/equivalence", `{"left":`+plant+`,"right":`+body+`}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"equal":true`)

	code, body = do(t, http.MethodPost, srv.URL+"/v1/equivalence", `{"left":`+plant+`,"right":`+noB+`}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"equal":false`)
}

func TestRun(t *testing.T) {
	srv, _ := newServer(t)

	code, body := do(t, http.MethodPost, srv.URL+"/v1/run",
		`{"plant":`+plant+`,"spec":`+noB+`,"secret":["s2"],"diagnose":true}`)
	require.Equal(t, http.StatusOK, code, body)
	var sum struct {
		Synthesis      *desops.Synthesis `json:"synthesis"`
		Opacity        map[string]any    `json:"opacity"`
		Diagnosability map[string]any    `json:"diagnosability"`
	}
	decode(t, body, &sum)
	require.NotNil(t, sum.Synthesis)
	assert.False(t, sum.Synthesis.Exists)
	assert.Equal(t, false, sum.Opacity["opaque"])
	assert.Equal(t, true, sum.Diagnosability["diagnosable"])
}

func TestErrors(t *testing.T) {
	srv, _ := newServer(t, desops.WithBudget(domain.Budget{MaxStates: 1}))

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"malformed json", "/v1/diagnose", `{"plant":`, http.StatusBadRequest},
		{"unknown field", "/v1/diagnose", `{"plant":` + plant + `,"extra":1}`, http.StatusBadRequest},
		{"missing operand", "/v1/equivalence", `{"left":` + plant + `}`, http.StatusBadRequest},
		{"unknown id", "/v1/diagnose", `{"plant":{"id":"ghost"}}`, http.StatusNotFound},
		{"nondeterministic", "/v1/diagnose", `{"plant":{"kind":"dfa","events":[{"name":"a"}],"states":[{"name":"p","initial":true},{"name":"q"}],"transitions":[{"from":"p","event":"a","to":"p"},{"from":"p","event":"a","to":"q"}]}}`, http.StatusUnprocessableEntity},
		{"budget", "/v1/diagnose", `{"plant":` + plant + `}`, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := do(t, http.MethodPost, srv.URL+tc.path, tc.body)
			assert.Equal(t, tc.want, code, body)
			var e map[string]string
			decode(t, body, &e)
			assert.NotEmpty(t, e["error"])
		})
	}
}

func TestBodyLimit(t *testing.T) {
	h := adapter.NewHandler(desops.New(), adapter.WithMaxBodyBytes(16))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/diagnose", bytes.NewBufferString(`{"plant":`+plant+`}`))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newServer(t)
	code, _ := do(t, http.MethodPost, srv.URL+"/v1/diagnose", `{"plant":`+plant+`}`)
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `desops_verdicts_total{analysis="diagnoser",verdict="diagnosable"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, adapter.StatusFor(domain.ErrAutomatonNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, adapter.StatusFor(domain.ErrBudgetExceeded))
	assert.Equal(t, http.StatusUnprocessableEntity, adapter.StatusFor(domain.ErrEventConflict))
	assert.Equal(t, http.StatusInternalServerError, adapter.StatusFor(io.ErrUnexpectedEOF))
}
