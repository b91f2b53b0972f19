package wire

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/adops/internal/catalog"
	"github.com/matthewbaird/adops/internal/editor"
	"github.com/matthewbaird/adops/internal/nodeops"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

type received struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type connCounter struct{ open atomic.Int32 }

func (c *connCounter) ConnOpened() { c.open.Add(1) }
func (c *connCounter) ConnClosed() { c.open.Add(-1) }

func setup(t *testing.T) (*editor.Manager, *httptest.Server) {
	t.Helper()
	f, err := catalog.DefaultFixture()
	require.NoError(t, err)
	cat := catalog.NewMemoryCatalog()
	require.NoError(t, cat.Seed(context.Background(), f))

	repo := editor.NewMemoryRepository()
	mgr := editor.NewManager(editor.Config{Catalog: cat, Persister: repo, Loader: repo})

	r := chi.NewRouter()
	r.Handle("/sessions/{id}/ws", NewHandler(mgr, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return mgr, srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sessionID + "/ws"
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.CloseNow() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, id, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, ws, ClientMessage{Type: typ, ID: id, Data: raw}))
}

// readUntil reads messages until match returns true.
func readUntil(t *testing.T, ws *websocket.Conn, match func(received) bool) received {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var msg received
		require.NoError(t, wsjson.Read(ctx, ws, &msg))
		if match(msg) {
			return msg
		}
	}
}

func fieldMatches(key taxonomy.FieldKey, match func(taxonomy.Field) bool) func(received) bool {
	return func(m received) bool {
		if m.Type != TypeField {
			return false
		}
		var f taxonomy.Field
		if err := json.Unmarshal(m.Data, &f); err != nil {
			return false
		}
		return f.Key == key && match(f)
	}
}

func ofType(typ, requestID string) func(received) bool {
	return func(m received) bool { return m.Type == typ && m.RequestID == requestID }
}

func TestHandler_SnapshotAndPing(t *testing.T) {
	mgr, srv := setup(t)
	sess := mgr.Create(context.Background())
	ws := dial(t, srv, sess.ID)

	first := readUntil(t, ws, func(received) bool { return true })
	require.Equal(t, TypeSnapshot, first.Type)
	var view editor.View
	require.NoError(t, json.Unmarshal(first.Data, &view))
	assert.Equal(t, sess.ID, view.ID)
	assert.Len(t, view.Fields, 6)

	send(t, ws, "p1", TypePing, nil)
	readUntil(t, ws, ofType(TypePong, "p1"))
}

func TestHandler_FieldPushes(t *testing.T) {
	mgr, srv := setup(t)
	sess := mgr.Create(context.Background())
	ws := dial(t, srv, sess.ID)

	send(t, ws, "1", TypeSetVisible, SetVisibleData{Field: taxonomy.Platform, Visible: true})
	readUntil(t, ws, fieldMatches(taxonomy.Platform, func(f taxonomy.Field) bool {
		return f.Visible && len(f.Options) == 3
	}))
	send(t, ws, "2", TypeSetVisible, SetVisibleData{Field: taxonomy.Brand, Visible: true})
	readUntil(t, ws, fieldMatches(taxonomy.Brand, func(f taxonomy.Field) bool { return len(f.Options) == 3 }))

	send(t, ws, "3", TypeSetValue, SetValueData{Field: taxonomy.Platform, Value: ptr("meta")})
	readUntil(t, ws, fieldMatches(taxonomy.Platform, func(f taxonomy.Field) bool { return f.HasValue() }))
	send(t, ws, "4", TypeSetValue, SetValueData{Field: taxonomy.Brand, Value: ptr("brand-acme")})

	account := readUntil(t, ws, fieldMatches(taxonomy.Account, func(f taxonomy.Field) bool { return f.HasValue() }))
	var f taxonomy.Field
	require.NoError(t, json.Unmarshal(account.Data, &f))
	assert.Equal(t, "acc-acme-meta", *f.Value)

	send(t, ws, "5", TypeSetValue, SetValueData{Field: taxonomy.Brand, Value: ptr("nope")})
	msg := readUntil(t, ws, ofType(TypeError, "5"))
	var e ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, editor.CodeInvalidRequest, e.Code)
}

func TestHandler_NodeOpNoticeAndError(t *testing.T) {
	mgr, srv := setup(t)
	sess := mgr.Create(context.Background())
	ws := dial(t, srv, sess.ID)
	adSetID := sess.Tree().Snapshot().Campaign.AdSets[0].ID

	send(t, ws, "d", TypeNodeOp, NodeOpData{Action: string(nodeops.ActionDelete), NodeID: adSetID})
	notice := readUntil(t, ws, func(m received) bool { return m.Type == TypeNotice })
	var n nodeops.Notice
	require.NoError(t, json.Unmarshal(notice.Data, &n))
	assert.Equal(t, nodeops.LevelError, n.Level)

	msg := readUntil(t, ws, ofType(TypeError, "d"))
	var e ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, editor.CodeInvariantViolation, e.Code)

	send(t, ws, "r", TypeRename, RenameData{NodeID: adSetID, Name: "Prospecting"})
	snap := readUntil(t, ws, ofType(TypeSnapshot, "r"))
	var view editor.View
	require.NoError(t, json.Unmarshal(snap.Data, &view))
	assert.Equal(t, "Prospecting", view.Tree.Campaign.AdSets[0].Name)

	send(t, ws, "x", "teleport", nil)
	msg = readUntil(t, ws, ofType(TypeError, "x"))
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, "UNKNOWN_TYPE", e.Code)
}

func TestHandler_Submit(t *testing.T) {
	mgr, srv := setup(t)
	sess := mgr.Create(context.Background())
	ws := dial(t, srv, sess.ID)

	send(t, ws, "s1", TypeSubmit, nil)
	msg := readUntil(t, ws, ofType(TypeError, "s1"))
	var e ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, editor.CodeValidation, e.Code)
	assert.Equal(t, "details.description", e.Field)

	send(t, ws, "d", TypeSetDetails, editor.Details{Description: "Launch", Owner: "ana"})
	readUntil(t, ws, ofType(TypeSnapshot, "d"))

	send(t, ws, "s2", TypeSubmit, nil)
	msg = readUntil(t, ws, ofType(TypeSubmitted, "s2"))
	var rcpt editor.Receipt
	require.NoError(t, json.Unmarshal(msg.Data, &rcpt))
	assert.Equal(t, sess.CampaignID(), rcpt.CampaignID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := ws.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	assert.Equal(t, 0, mgr.Len())
}

func TestHandler_UnknownSession(t *testing.T) {
	_, srv := setup(t)
	resp, err := http.Get(srv.URL + "/sessions/missing/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_ObservesConnections(t *testing.T) {
	mgr, _ := setup(t)
	counter := &connCounter{}
	r := chi.NewRouter()
	r.Handle("/sessions/{id}/ws", NewHandler(mgr, counter))
	srv := httptest.NewServer(r)
	defer srv.Close()

	sess := mgr.Create(context.Background())
	ws := dial(t, srv, sess.ID)
	readUntil(t, ws, func(m received) bool { return m.Type == TypeSnapshot })
	ws.Close(websocket.StatusNormalClosure, "")

	assert.Eventually(t, func() bool { return counter.open.Load() == 0 }, time.Second, 10*time.Millisecond)
}

func ptr(s string) *string { return &s }
