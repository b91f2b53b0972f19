package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/adops/internal/ctxlog"
	"github.com/matthewbaird/adops/internal/editor"
	"github.com/matthewbaird/adops/internal/nodeops"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

// ConnObserver is told when connections open and close.
type ConnObserver interface {
	ConnOpened()
	ConnClosed()
}

// Handler manages WebSocket connections to editor sessions. The session id
// is read from the "id" route parameter.
type Handler struct {
	sessions *editor.Manager
	observer ConnObserver
}

// NewHandler creates a WebSocket handler. observer may be nil.
func NewHandler(sessions *editor.Manager, observer ConnObserver) *Handler {
	return &Handler{sessions: sessions, observer: observer}
}

// conn is the state of one connection, shared by the read loop and the
// lookup goroutines.
type conn struct {
	ws      *websocket.Conn
	sess    *editor.Session
	logger  *slog.Logger
	lookups sync.WaitGroup
}

// ServeHTTP upgrades to WebSocket and runs the message loop. The current
// session view is sent first; field changes and notices are pushed as
// they happen.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	logger := ctxlog.FromContext(r.Context()).With("component", "wire", "session", sess.ID)
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer ws.CloseNow()

	if h.observer != nil {
		h.observer.ConnOpened()
		defer h.observer.ConnClosed()
	}

	ctx, cancel := context.WithCancel(ctxlog.WithLogger(r.Context(), logger))
	c := &conn{ws: ws, sess: sess, logger: logger}
	defer func() {
		cancel()
		c.lookups.Wait()
	}()

	unsubscribe := sess.Fields().Subscribe(nil, func(f taxonomy.Field) {
		c.send(ctx, ServerMessage{Type: TypeField, Data: f})
	})
	defer unsubscribe()
	removeNotices := sess.OnNotice(func(n nodeops.Notice) {
		c.send(ctx, ServerMessage{Type: TypeNotice, Data: n})
	})
	defer removeNotices()

	c.send(ctx, ServerMessage{Type: TypeSnapshot, Data: sess.View()})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				logger.Debug("connection closed", "error", err)
			}
			return
		}
		sess.Touch()
		if done := h.dispatch(ctx, c, msg); done {
			ws.Close(websocket.StatusNormalClosure, "submitted")
			return
		}
	}
}

// dispatch handles one client message. It returns true once the session
// has been submitted.
func (h *Handler) dispatch(ctx context.Context, c *conn, msg ClientMessage) bool {
	sess := c.sess
	tree := sess.Tree()

	switch msg.Type {
	case TypePing:
		c.send(ctx, ServerMessage{Type: TypePong, RequestID: msg.ID})
		return false

	case TypeSetValue:
		var data SetValueData
		if c.decode(ctx, msg, &data) {
			c.async(ctx, msg.ID, func() error { return sess.SetValue(ctx, data.Field, data.Value) })
		}
		return false

	case TypeSetVisible:
		var data SetVisibleData
		if c.decode(ctx, msg, &data) {
			c.async(ctx, msg.ID, func() error { return sess.SetVisible(ctx, data.Field, data.Visible) })
		}
		return false

	case TypeSetDetails:
		var data editor.Details
		if c.decode(ctx, msg, &data) {
			sess.SetDetails(data)
			c.snapshot(ctx, msg.ID)
		}
		return false

	case TypeSubmit:
		rcpt, err := h.sessions.Submit(ctx, sess.ID)
		if err != nil {
			c.fail(ctx, msg.ID, err)
			return false
		}
		c.send(ctx, ServerMessage{Type: TypeSubmitted, RequestID: msg.ID, Data: rcpt})
		return true
	}

	// Tree commands apply synchronously and answer with a fresh snapshot.
	var err error
	switch msg.Type {
	case TypeNodeOp:
		var data NodeOpData
		if !c.decode(ctx, msg, &data) {
			return false
		}
		_, err = sess.ApplyNodeOp(ctx, nodeops.Action(data.Action), data.NodeID)
	case TypeSelect:
		var data NodeData
		if !c.decode(ctx, msg, &data) {
			return false
		}
		err = tree.Select(data.NodeID)
	case TypeAdvance:
		tree.Advance()
	case TypeToggle:
		var data NodeData
		if !c.decode(ctx, msg, &data) {
			return false
		}
		err = tree.Toggle(data.NodeID)
	case TypeRename:
		var data RenameData
		if !c.decode(ctx, msg, &data) {
			return false
		}
		err = tree.Rename(data.NodeID, data.Name)
	case TypeSetBudget:
		var data SetBudgetData
		if !c.decode(ctx, msg, &data) {
			return false
		}
		err = tree.SetBudget(data.NodeID, data.Amount)
	case TypeSetBudgetMode:
		var data SetBudgetModeData
		if !c.decode(ctx, msg, &data) {
			return false
		}
		err = tree.SetBudgetMode(data.Mode)
	case TypeUpdateAd:
		var data UpdateAdData
		if !c.decode(ctx, msg, &data) {
			return false
		}
		err = tree.UpdateAd(data.NodeID, data.AdContent)
	default:
		c.send(ctx, ServerMessage{
			Type:      TypeError,
			RequestID: msg.ID,
			Data:      ErrorData{Code: "UNKNOWN_TYPE", Message: fmt.Sprintf("unknown message type: %s", msg.Type)},
		})
		return false
	}

	if err != nil {
		c.fail(ctx, msg.ID, err)
		return false
	}
	c.snapshot(ctx, msg.ID)
	return false
}

// async runs a taxonomy command off the read loop. Field changes reach the
// client through the store subscription; only the error is reported here.
func (c *conn) async(ctx context.Context, requestID string, fn func() error) {
	c.lookups.Add(1)
	go func() {
		defer c.lookups.Done()
		if err := fn(); err != nil && ctx.Err() == nil {
			c.fail(ctx, requestID, err)
		}
	}()
}

func (c *conn) decode(ctx context.Context, msg ClientMessage, v any) bool {
	if len(msg.Data) == 0 {
		msg.Data = []byte("{}")
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.send(ctx, ServerMessage{
			Type:      TypeError,
			RequestID: msg.ID,
			Data:      ErrorData{Code: "INVALID_DATA", Message: fmt.Sprintf("invalid %s data", msg.Type)},
		})
		return false
	}
	return true
}

func (c *conn) snapshot(ctx context.Context, requestID string) {
	c.send(ctx, ServerMessage{Type: TypeSnapshot, RequestID: requestID, Data: c.sess.View()})
}

func (c *conn) fail(ctx context.Context, requestID string, err error) {
	data := ErrorData{Code: editor.ErrorCode(err), Message: err.Error()}
	var verr *editor.ValidationError
	if errors.As(err, &verr) {
		data.Field = verr.Field
	}
	if data.Code == editor.CodeInternal {
		c.logger.Error("command failed", "error", err)
	}
	c.send(ctx, ServerMessage{Type: TypeError, RequestID: requestID, Data: data})
}

func (c *conn) send(ctx context.Context, msg ServerMessage) {
	if err := wsjson.Write(ctx, c.ws, msg); err != nil && ctx.Err() == nil {
		c.logger.Debug("write failed", "type", msg.Type, "error", err)
	}
}
