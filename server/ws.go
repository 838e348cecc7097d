package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/xhad/hexauthor/internal/models"
	"github.com/xhad/hexauthor/pkg/selection"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is sent to websocket clients.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Command is received from websocket clients.
type Command struct {
	Type string `json:"type"`

	// load
	JobID  string         `json:"jobId,omitempty"`
	Chunks []models.Chunk `json:"chunks,omitempty"`

	// load (inline document) and select
	Text string `json:"text,omitempty"`
	// select: Offset locates the raw selection start; without it the
	// Occurrence-th match of Text is used.
	Offset     *int `json:"offset,omitempty"`
	Occurrence int  `json:"occurrence,omitempty"`

	Tag   string `json:"tag,omitempty"`
	ID    string `json:"id,omitempty"`
	Query string `json:"q,omitempty"`

	// save
	WorkspaceID string `json:"workspaceId,omitempty"`
	SourceLabel string `json:"sourceLabel,omitempty"`
}

type selectionData struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// conn is one websocket client curating one document.
type conn struct {
	srv *Server
	ws  *websocket.Conn
	ctx context.Context

	writeMu sync.Mutex

	mu      sync.Mutex
	session *selection.Session
	source  string
	latest  selection.Selection

	saving atomic.Bool
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	c := &conn{srv: s, ws: ws, ctx: r.Context()}
	for {
		var cmd Command
		if err := ws.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("error reading message: %v", err)
			}
			return
		}
		c.handle(cmd)
	}
}

func (c *conn) send(msg Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Printf("error sending message: %v", err)
	}
}

func (c *conn) sendError(format string, args ...any) {
	c.send(Message{Type: "error", Content: fmt.Sprintf(format, args...)})
}

func (c *conn) current() *selection.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *conn) handle(cmd Command) {
	if cmd.Type == "load" {
		c.load(cmd)
		return
	}

	session := c.current()
	if session == nil {
		c.sendError("no document loaded")
		return
	}

	switch cmd.Type {
	case "select":
		c.mu.Lock()
		c.latest = selection.Selection{Text: cmd.Text, Anchor: anchorFor(cmd)}
		c.mu.Unlock()
		session.PointerUp(c.latestSelection)
	case "cancel":
		session.Cancel()
	case "confirm":
		session.Confirm(cmd.Tag)
	case "remove":
		session.Remove(cmd.ID)
	case "suggest":
		c.send(Message{Type: "tags", Data: c.suggest(session, cmd.Query)})
	case "render":
		c.send(Message{Type: "render", Data: session.Render()})
	case "save":
		c.save(session, cmd)
	default:
		c.sendError("unknown message type %q", cmd.Type)
	}
}

func anchorFor(cmd Command) any {
	if cmd.Offset != nil {
		return *cmd.Offset
	}
	return selection.Needle{Text: cmd.Text, Occurrence: cmd.Occurrence}
}

func (c *conn) latestSelection() selection.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// load starts a new session over an inline document or a finished ingest
// job, restoring any chunks the client sends along.
func (c *conn) load(cmd Command) {
	doc, source := cmd.Text, "inline"
	if cmd.JobID != "" {
		ctx, cancel := context.WithTimeout(c.ctx, c.srv.config.LoadTimeout)
		job, err := c.srv.jobs.Await(ctx, cmd.JobID)
		cancel()
		if err != nil {
			c.sendError("failed to load job: %v", err)
			return
		}
		if job.Status != models.JobDone || job.Document == nil {
			c.sendError("job %s failed: %s", job.ID, job.Error)
			return
		}
		doc, source = job.Document.Content, job.Source
	}
	if strings.TrimSpace(doc) == "" {
		c.sendError("document is empty")
		return
	}

	session := selection.NewWithConfig(doc, selection.SessionConfig{
		MinLength: c.srv.config.MinSelectionLength,
		Debounce:  c.srv.config.SelectionDebounce,
		OnTextSelection: func(text string, r models.Range) {
			c.send(Message{Type: "selection", Data: selectionData{Text: text, Start: r.Start, End: r.End}})
		},
		OnAddChunk: func(chunk models.Chunk) {
			c.send(Message{Type: "chunk", Data: chunk})
		},
		OnRemoveChunk: func(id string) {
			c.send(Message{Type: "removed", Data: map[string]string{"id": id}})
		},
		Notify: func(msg string) {
			c.send(Message{Type: "notice", Content: msg})
		},
	})

	c.mu.Lock()
	c.session = session
	c.source = source
	c.latest = selection.Selection{}
	c.mu.Unlock()

	for _, chunk := range cmd.Chunks {
		if err := session.Insert(chunk); err != nil {
			c.sendError("chunk %s not restored: %v", chunk.ID, err)
		}
	}

	c.send(Message{Type: "render", Content: source, Data: session.Render()})
}

// suggest lists the session's matching tags followed by matching tags
// already stored in any workspace.
func (c *conn) suggest(session *selection.Session, q string) []string {
	tags := session.SuggestTags(q)
	if strings.TrimSpace(q) == "" {
		return tags
	}

	stored, err := c.srv.sections.SearchTags(c.ctx, q, 0)
	if err != nil {
		log.Printf("tag search failed: %v", err)
		return tags
	}
	for _, t := range stored {
		if !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

// save stores the chunk set as workspace sections. Only one save per
// connection runs at a time; a failed save is reported and not retried.
func (c *conn) save(session *selection.Session, cmd Command) {
	label := cmd.SourceLabel
	if label == "" {
		c.mu.Lock()
		label = c.source
		c.mu.Unlock()
	}

	inputs := session.SectionInputs(label)
	if len(inputs) == 0 {
		c.sendError("no chunks to save")
		return
	}
	if !c.saving.CompareAndSwap(false, true) {
		c.sendError("a save is already in progress")
		return
	}

	go func() {
		defer c.saving.Store(false)

		ctx, cancel := context.WithTimeout(c.ctx, c.srv.config.SaveTimeout)
		defer cancel()

		created, err := c.srv.sections.BulkCreate(ctx, cmd.WorkspaceID, label, inputs)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("save to workspace %s failed: %v", cmd.WorkspaceID, err)
			}
			c.sendError("save failed: %v", err)
			return
		}
		c.send(Message{Type: "saved", Data: created})
	}()
}
