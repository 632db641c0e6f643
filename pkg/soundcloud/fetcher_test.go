package soundcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, rec *sleepRecorder) *Client {
	t.Helper()
	c, err := NewClient(Options{
		ClientID:  "abc",
		Endpoints: Endpoints{V1: srv.URL, V2: srv.URL},
		Sleep:     rec.Sleep,
	})
	require.NoError(t, err)
	return c
}

func writePage(w http.ResponseWriter, next string, ids ...int) {
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{"id": id})
	}
	page := map[string]any{"collection": items, "next_href": nil}
	if next != "" {
		page["next_href"] = next
	}
	_ = json.NewEncoder(w).Encode(page)
}

func TestFetchAllFollowsCursorAndDedups(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("client_id"))
		switch r.URL.Query().Get("offset") {
		case "":
			writePage(w, srv.URL+"/items?offset=2", 1, 2)
		case "2":
			writePage(w, srv.URL+"/items?offset=4", 2, 3)
		default:
			writePage(w, "", 4)
		}
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, rec)

	items, err := c.FetchAll(context.Background(), srv.URL+"/items", Call{})
	require.NoError(t, err)

	var ids []string
	for _, raw := range items {
		k, err := IDKey(raw)
		require.NoError(t, err)
		ids = append(ids, k)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)

	// jitter entre páginas: base padrão ±50%
	require.Len(t, rec.waits, 2)
	for _, d := range rec.waits {
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestFetchAllStopsOnLoopingCursor(t *testing.T) {
	var calls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writePage(w, srv.URL+"/loop", 1, 2)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{})
	items, err := c.FetchAll(context.Background(), srv.URL+"/loop", Call{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	// 1 página produtiva + 10 sem item novo
	assert.Equal(t, int32(1+noProgressLimit), calls.Load())
}

func TestFetchAllRetriesTransientStatuses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			writePage(w, "", 7)
		}
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, rec)
	items, err := c.FetchAll(context.Background(), srv.URL+"/x", Call{})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.Len(t, rec.waits, 2)
	assert.GreaterOrEqual(t, rec.waits[0], 8*time.Second)
	assert.LessOrEqual(t, rec.waits[0], 12*time.Second)
	assert.GreaterOrEqual(t, rec.waits[1], 10*time.Second)
	assert.LessOrEqual(t, rec.waits[1], 30*time.Second)
}

func TestFetchAllTransientRetriesHitLoopGuard(t *testing.T) {
	var calls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writePage(w, srv.URL+"/next", 1, 2)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{})
	items, err := c.FetchAll(context.Background(), srv.URL+"/x", Call{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(1+noProgressLimit), calls.Load())
}

func TestFetchAllWithoutAnyPageIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{})
	items, err := c.FetchAll(context.Background(), srv.URL+"/x", Call{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsFatal(err))
	assert.Nil(t, items)
	assert.Equal(t, int32(noProgressLimit), calls.Load())

	calls.Store(0)
	_, err = c.FetchAll(context.Background(), srv.URL+"/x", Call{CallLimit: 3})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

// newDroppingServer fecha toda conexão sem responder.
func newDroppingServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAllTransportFailureIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := newDroppingServer(t, &calls)

	c := newTestClient(t, srv, &sleepRecorder{})
	items, err := c.FetchAll(context.Background(), srv.URL+"/x", Call{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, items)
	assert.NotContains(t, err.Error(), "abc")
	assert.Equal(t, int32(noProgressLimit), calls.Load())

	_, err = c.FetchOne(context.Background(), srv.URL+"/user")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.NotContains(t, err.Error(), "abc")
}

func TestFetchAllTransportFailureAfterPagesIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writePage(w, srv.URL+"/next", 1)
			return
		}
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{})
	_, err := c.FetchAll(context.Background(), srv.URL+"/x", Call{})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchAllFatalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{})
	_, err := c.FetchAll(context.Background(), srv.URL+"/x", Call{})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.NotContains(t, se.URL, "abc")
	assert.True(t, IsFatal(err))
}

func TestFetchAllSchemaViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"collection":[{"id":1},{"name":"sem id"}],"next_href":null}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{})
	_, err := c.FetchAll(context.Background(), srv.URL+"/x", Call{})
	require.ErrorIs(t, err, ErrSchema)
	assert.True(t, IsFatal(err))
}

func TestFetchAllPageAndCallLimits(t *testing.T) {
	var calls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		writePage(w, srv.URL+"/more", n*10, n*10+1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{})

	items, err := c.FetchAll(context.Background(), srv.URL+"/first", Call{Pages: 1})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	items, err = c.FetchAll(context.Background(), srv.URL+"/first", Call{CallLimit: 3})
	require.NoError(t, err)
	assert.Len(t, items, 6)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchOne(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/users/42", r.URL.Path)
		fmt.Fprint(w, `{"id":42,"permalink":"someone"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{})
	body, err := c.FetchOne(context.Background(), c.Endpoints().User(42))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"permalink":"someone"}`, string(body))
}

func TestNewClientRequiresCredential(t *testing.T) {
	_, err := NewClient(Options{})
	assert.ErrorIs(t, err, ErrCredential)
}

func TestAuthorizeKeepsExistingCredential(t *testing.T) {
	c, err := NewClient(Options{ClientID: "abc"})
	require.NoError(t, err)

	assert.Equal(t, "https://x/y?client_id=zzz", c.authorize("https://x/y?client_id=zzz"))
	assert.Equal(t, "https://x/y?client_id=abc&cursor=1", c.authorize("https://x/y?cursor=1"))
}

func TestCommentCallLimit(t *testing.T) {
	assert.Equal(t, 0, CommentCallLimit(0))
	assert.Equal(t, 1, CommentCallLimit(1))
	assert.Equal(t, 1, CommentCallLimit(200))
	assert.Equal(t, 3, CommentCallLimit(201))
	assert.Equal(t, 15, CommentCallLimit(2000))
}
