package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	// Packages
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	httphandler "github.com/mediastore/dispatch/pkg/httphandler"
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	test "github.com/mutablelogic/go-pg/pkg/test"
	assert "github.com/stretchr/testify/assert"
)

// Global connection variable
var conn test.Conn

// Start up a container and test the pool
func TestMain(m *testing.M) {
	test.Main(m, &conn)
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

const testSecret = "test-secret"

type fixture struct {
	manager *leasequeue.Manager
	assets  *catalog.Store
	events  *eventstore.Store
	server  *httptest.Server
}

// newFixture stands up the full worker surface over a transaction-scoped
// connection, with both queue kinds registered.
func newFixture(t *testing.T, conn test.Conn, secret string) *fixture {
	t.Helper()
	assert := assert.New(t)
	ctx := context.TODO()

	manager, err := leasequeue.New(ctx, conn)
	assert.NoError(err)
	assets, err := catalog.NewStore(ctx, conn)
	assert.NoError(err)
	events, err := eventstore.NewStore(ctx, conn)
	assert.NoError(err)

	for _, queue := range []string{schema.QueueProxy, schema.QueueIngest} {
		_, err = manager.RegisterQueue(ctx, schema.QueueMeta{Queue: queue})
		assert.NoError(err)
	}

	router := http.NewServeMux()
	httphandler.RegisterWorkerHandlers(router, "/api/v1", manager, assets, events, secret)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &fixture{manager: manager, assets: assets, events: events, server: server}
}

// do issues a JSON request with the worker Authorization header.
func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	assert.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := f.server.Client().Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	return resp, data
}

func workerToken(secret string) string {
	return httphandler.AuthScheme + " " + secret
}

///////////////////////////////////////////////////////////////////////////////
// AUTH TESTS

func Test_WorkerAuth(t *testing.T) {
	assert := assert.New(t)
	conn := conn.Begin(t)
	defer conn.Close()

	f := newFixture(t, conn, testSecret)

	t.Run("MissingCredentials", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/v1/worker/jobs/claim", "", map[string]string{"worker": "w1"})
		assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("WrongScheme", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/v1/worker/jobs/claim", "Bearer "+testSecret, map[string]string{"worker": "w1"})
		assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/v1/worker/jobs/claim", workerToken("wrong"), map[string]string{"worker": "w1"})
		assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ValidSecret", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/v1/worker/jobs/claim", workerToken(testSecret), map[string]string{"worker": "w1"})
		assert.Equal(http.StatusOK, resp.StatusCode)
	})

	t.Run("MetricsWithoutCredentials", func(t *testing.T) {
		resp, data := f.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Contains(string(data), "dispatch_queue_items")
	})
}

func Test_WorkerAuth_Disabled(t *testing.T) {
	assert := assert.New(t)
	conn := conn.Begin(t)
	defer conn.Close()

	// No secret configured: the surface fails closed
	f := newFixture(t, conn, "")

	resp, _ := f.do(t, http.MethodPost, "/api/v1/worker/jobs/claim", workerToken(""), map[string]string{"worker": "w1"})
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/worker/status", "", nil)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
}

///////////////////////////////////////////////////////////////////////////////
// JOB ROUTE TESTS

func Test_Job_Routes(t *testing.T) {
	assert := assert.New(t)
	conn := conn.Begin(t)
	defer conn.Close()
	ctx := context.TODO()

	f := newFixture(t, conn, testSecret)
	token := workerToken(testSecret)

	t.Run("ClaimEmpty", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/v1/worker/jobs/claim", token, map[string]string{"worker": "w1"})
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("null", strings.TrimSpace(string(data)))
	})

	// Enqueue one job
	item, err := f.manager.Enqueue(ctx, schema.QueueProxy, schema.ItemMeta{
		Payload: catalog.ProxyJob{AssetId: "a1", Path: "/in/a1.mov", Profile: "preview"},
	})
	assert.NoError(err)

	t.Run("Claim", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/v1/worker/jobs/claim", token, map[string]string{"worker": "w1"})
		assert.Equal(http.StatusOK, resp.StatusCode)

		var claimed schema.Item
		assert.NoError(json.Unmarshal(data, &claimed))
		assert.Equal(item.Id, claimed.Id)
		assert.Equal(schema.StatusClaimed, claimed.Status)
	})

	base := "/api/v1/worker/jobs/" + strconv.FormatUint(item.Id, 10)

	t.Run("Heartbeat", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPut, base+"/heartbeat", token, map[string]string{"worker": "w1"})
		assert.Equal(http.StatusOK, resp.StatusCode)
	})

	t.Run("HeartbeatForeignWorker", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPut, base+"/heartbeat", token, map[string]string{"worker": "w2"})
		assert.Equal(http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Progress", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPut, base+"/progress", token, map[string]string{"worker": "w1", "stage": "transcode"})
		assert.Equal(http.StatusOK, resp.StatusCode)

		got, err := f.manager.GetItem(ctx, item.Id)
		assert.NoError(err)
		assert.NotNil(got.Stage)
	})

	t.Run("CompleteMissingResult", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPut, base+"/complete", token, map[string]any{"worker": "w1"})
		assert.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Complete", func(t *testing.T) {
		result := catalog.ProxyResult{
			AssetId: "a1",
			Renditions: []catalog.ProxyRendition{
				{Name: "preview", Path: "/out/a1_preview.mp4", Width: 640, Height: 360},
			},
		}
		resp, _ := f.do(t, http.MethodPut, base+"/complete", token, map[string]any{"worker": "w1", "result": result})
		assert.Equal(http.StatusOK, resp.StatusCode)

		// The status transition and the catalog write are atomic
		got, err := f.manager.GetItem(ctx, item.Id)
		assert.NoError(err)
		assert.Equal(schema.StatusCompleted, got.Status)

		asset, err := f.assets.Get(ctx, "a1")
		assert.NoError(err)
		assert.NotNil(asset)
	})

	t.Run("CompleteTerminal", func(t *testing.T) {
		result := catalog.ProxyResult{AssetId: "a1"}
		resp, _ := f.do(t, http.MethodPut, base+"/complete", token, map[string]any{"worker": "w1", "result": result})
		assert.Equal(http.StatusNotFound, resp.StatusCode)
	})

	t.Run("UnknownOp", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPut, base+"/restart", token, map[string]string{"worker": "w1"})
		assert.Equal(http.StatusNotFound, resp.StatusCode)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/v1/worker/jobs/claim", token, nil)
		assert.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func Test_Job_Fail(t *testing.T) {
	assert := assert.New(t)
	conn := conn.Begin(t)
	defer conn.Close()
	ctx := context.TODO()

	f := newFixture(t, conn, testSecret)
	token := workerToken(testSecret)

	item, err := f.manager.Enqueue(ctx, schema.QueueProxy, schema.ItemMeta{
		Payload: catalog.ProxyJob{AssetId: "a2", Path: "/in/a2.mov"},
	})
	assert.NoError(err)
	_, err = f.manager.Claim(ctx, schema.QueueProxy, "w1")
	assert.NoError(err)

	resp, _ := f.do(t, http.MethodPut, "/api/v1/worker/jobs/"+strconv.FormatUint(item.Id, 10)+"/fail", token,
		map[string]string{"worker": "w1", "error": "codec not supported"})
	assert.Equal(http.StatusOK, resp.StatusCode)

	got, err := f.manager.GetItem(ctx, item.Id)
	assert.NoError(err)
	assert.Equal(schema.StatusFailed, got.Status)
}

///////////////////////////////////////////////////////////////////////////////
// BATCH ROUTE TESTS

func Test_Batch_Routes(t *testing.T) {
	assert := assert.New(t)
	conn := conn.Begin(t)
	defer conn.Close()
	ctx := context.TODO()

	f := newFixture(t, conn, testSecret)
	token := workerToken(testSecret)

	item, err := f.manager.Enqueue(ctx, schema.QueueIngest, schema.ItemMeta{
		Payload: eventstore.EventBatch{BatchId: "b1", Source: "syslog", Lines: []string{"hello", ""}},
	})
	assert.NoError(err)

	t.Run("Claim", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/v1/worker/batches/claim", token, map[string]string{"worker": "w1"})
		assert.Equal(http.StatusOK, resp.StatusCode)

		var claimed schema.Item
		assert.NoError(json.Unmarshal(data, &claimed))
		assert.Equal(item.Id, claimed.Id)
	})

	base := "/api/v1/worker/batches/" + strconv.FormatUint(item.Id, 10)

	t.Run("NoProgressRoute", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPut, base+"/progress", token, map[string]string{"worker": "w1", "stage": "parse"})
		assert.Equal(http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Complete", func(t *testing.T) {
		result := eventstore.BatchResult{
			BatchId: "b1",
			Source:  "syslog",
			Records: []eventstore.EventRecord{{Severity: "info", Host: "web-1", Message: "hello"}},
			Dropped: 1,
		}
		resp, _ := f.do(t, http.MethodPut, base+"/complete", token, map[string]any{"worker": "w1", "result": result})
		assert.Equal(http.StatusOK, resp.StatusCode)

		// The parsed records and source tallies are persisted with the
		// status transition
		got, err := f.manager.GetItem(ctx, item.Id)
		assert.NoError(err)
		assert.Equal(schema.StatusCompleted, got.Status)

		sources, err := f.events.Sources(ctx)
		assert.NoError(err)
		assert.Len(sources.Body, 1)
		assert.Equal("syslog", sources.Body[0].Source)
		assert.Equal(uint64(1), sources.Body[0].Received)
		assert.Equal(uint64(1), sources.Body[0].Dropped)
	})
}

///////////////////////////////////////////////////////////////////////////////
// STATUS ROUTE TESTS

func Test_Status_Route(t *testing.T) {
	assert := assert.New(t)
	conn := conn.Begin(t)
	defer conn.Close()
	ctx := context.TODO()

	f := newFixture(t, conn, testSecret)
	token := workerToken(testSecret)

	_, err := f.manager.Enqueue(ctx, schema.QueueProxy, schema.ItemMeta{
		Payload: catalog.ProxyJob{AssetId: "a1"},
	})
	assert.NoError(err)

	resp, data := f.do(t, http.MethodGet, "/api/v1/worker/status", token, nil)
	assert.Equal(http.StatusOK, resp.StatusCode)

	var status struct {
		Queues  []schema.QueueStatus    `json:"queues"`
		Sources []eventstore.SourceStat `json:"sources"`
	}
	assert.NoError(json.Unmarshal(data, &status))
	assert.Len(status.Queues, 1)
	assert.Equal(schema.QueueProxy, status.Queues[0].Queue)
	assert.Equal(schema.StatusPending, status.Queues[0].Status)
	assert.Equal(uint64(1), status.Queues[0].Count)
}
