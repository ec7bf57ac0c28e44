package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/guffawlabs/go-tutor/internal/log"
	"github.com/guffawlabs/go-tutor/pkg/hub"
	"github.com/guffawlabs/go-tutor/pkg/turn"
)

// Server is a self-contained stand-in for the tutor backend. It serves the
// same wire surface the mobile client talks to: speech synthesis, the
// agent reply, the message store, and a streaming transcription endpoint.
// Everything lives in memory; it exists so the pipeline can run end to end
// on a laptop.
type Server struct {
	app    *fiber.App
	events *hub.Hub

	mu       sync.Mutex
	messages []turn.Turn
	replyIdx int
}

// cannedReplies cycle as agent turns so local conversations move along.
var cannedReplies = []string{
	"That's a great start! Can you tell me more about that?",
	"Nice sentence. Try using the past tense this time.",
	"Good! What happened next?",
	"I see. And how did that make you feel?",
}

// NewServer builds the fiber app with all routes registered.
func NewServer() *Server {
	s := &Server{events: hub.New("conversation", log.L())}

	app := fiber.New(fiber.Config{
		AppName:               "tutor-backend",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Post("/synthesize", s.handleSynthesize)
	app.Get("/agent-reply", s.handleAgentReply)
	app.Get("/reset", s.handleReset)
	app.Post("/messages", s.handleUploadMessage)
	app.Get("/messages", s.handleListMessages)
	app.Delete("/messages/:id", s.handleDeleteMessage)

	upgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
	app.Use("/listen", upgrade)
	app.Get("/listen", websocket.New(s.handleListen))

	// Live feed of message events for anything watching the conversation.
	app.Use("/events", upgrade)
	app.Get("/events", websocket.New(func(conn *websocket.Conn) {
		hub.NewClient(s.events, conn).Run()
	}))

	s.app = app
	return s
}

// Start serves on the given port until the process exits.
func (s *Server) Start(port string) error {
	go s.events.Run()
	log.Info("tutor backend listening", "port", port)
	return s.app.Listen(":" + port)
}

// handleSynthesize accepts the multipart "text" field and responds with
// audio bytes. The dev server has no real voice, so it answers with a
// deterministic placeholder payload derived from the text.
func (s *Server) handleSynthesize(c *fiber.Ctx) error {
	text := c.FormValue("text")
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fiber.Map{"message": "text field is required", "code": "missing_text"},
		})
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send([]byte("DEVAUDIO:" + text))
}

// handleAgentReply returns the tutor's next line as JSON.
func (s *Server) handleAgentReply(c *fiber.Ctx) error {
	s.mu.Lock()
	reply := cannedReplies[s.replyIdx%len(cannedReplies)]
	s.replyIdx++
	s.mu.Unlock()

	return c.JSON(fiber.Map{"text": reply})
}

// handleReset drops every stored message.
func (s *Server) handleReset(c *fiber.Ctx) error {
	s.mu.Lock()
	n := len(s.messages)
	s.messages = nil
	s.mu.Unlock()

	s.events.PublishJSON(fiber.Map{"event": "reset", "deleted": n})
	log.Info("conversation reset", "dropped", n)
	return c.JSON(fiber.Map{"deleted": n})
}

// handleUploadMessage stores one turn from the multipart form the client
// sends: ID, source, time, date, text, ownerId, and optionally an
// audio_file part (discarded here, the dev server keeps no files).
func (s *Server) handleUploadMessage(c *fiber.Ctx) error {
	id := c.FormValue("ID")
	source := c.FormValue("source")
	ownerID := c.FormValue("ownerId")
	if id == "" || source == "" || ownerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fiber.Map{"message": "ID, source and ownerId are required", "code": "missing_field"},
		})
	}

	createdAt, err := time.Parse("2006-01-02T15:04:05.000Z07:00", c.FormValue("time"))
	if err != nil {
		createdAt = time.Now()
	}

	t := turn.Turn{
		ID:        id,
		Source:    turn.Source(source),
		Text:      c.FormValue("text"),
		CreatedAt: createdAt,
		OwnerID:   ownerID,
	}
	if file, err := c.FormFile("audio_file"); err == nil {
		t.AudioRef = file.Filename
	}

	s.mu.Lock()
	s.messages = append(s.messages, t)
	s.mu.Unlock()

	s.events.PublishJSON(fiber.Map{"event": "message", "turn": t})
	log.Debug("message stored", "id", id, "source", source)
	return c.JSON(fiber.Map{"id": id})
}

// handleListMessages returns every stored turn for an owner.
func (s *Server) handleListMessages(c *fiber.Ctx) error {
	owner := c.Query("ownerId")

	s.mu.Lock()
	var out []turn.Turn
	for _, t := range s.messages {
		if owner == "" || t.OwnerID == owner {
			out = append(out, t)
		}
	}
	s.mu.Unlock()

	if out == nil {
		out = []turn.Turn{}
	}
	return c.JSON(fiber.Map{"messages": out})
}

// handleDeleteMessage removes every stored turn with the given id, which
// deletes both halves of a pair.
func (s *Server) handleDeleteMessage(c *fiber.Ctx) error {
	id := c.Params("id")

	s.mu.Lock()
	kept := s.messages[:0]
	removed := 0
	for _, t := range s.messages {
		if t.ID == id {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.messages = kept
	s.mu.Unlock()

	if removed == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fiber.Map{"message": fmt.Sprintf("no message %s", id), "code": "not_found"},
		})
	}
	return c.JSON(fiber.Map{"deleted": removed})
}

// handleListen speaks the streaming transcription protocol: binary audio
// frames in, JSON transcript frames out. The dev server cannot recognize
// speech, so once roughly a second of audio has arrived it emits a canned
// final transcript.
func (s *Server) handleListen(conn *websocket.Conn) {
	defer conn.Close()

	const finalAfterBytes = 32000 // ~1s of 16kHz mono linear16
	received := 0
	emitted := false

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		received += len(msg)
		if !emitted && received >= finalAfterBytes {
			emitted = true
			frame := fiber.Map{
				"channel": fiber.Map{
					"alternatives": []fiber.Map{{"transcript": "hello tutor this is a local test"}},
					"is_final":     true,
				},
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
