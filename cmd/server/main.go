package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/apksift/apksift/internal/classifier"
	"github.com/apksift/apksift/internal/intel"
	"github.com/apksift/apksift/internal/pipeline"
	"github.com/apksift/apksift/internal/server"
	"github.com/apksift/apksift/internal/triage"
)

// Config holds all environment configuration
type Config struct {
	// Server
	Port string

	// Pipeline resources
	ModelPath       string
	ExclusionsPath  string
	KnownHashesPath string

	// OpenAI API key for LLM triage (optional)
	OpenAIAPIKey string

	// Max concurrent triage requests
	TriageConcurrency int
}

func loadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		ModelPath:         getEnv("MODEL_PATH", "model.json"),
		ExclusionsPath:    getEnv("EXCLUSIONS_PATH", ""),
		KnownHashesPath:   getEnv("KNOWN_HASHES_PATH", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		TriageConcurrency: 3,
	}

	if v := getEnv("TRIAGE_CONCURRENCY", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid TRIAGE_CONCURRENCY: %q", v)
		}
		config.TriageConcurrency = n
	}

	// Validate required fields
	if config.ModelPath == "" {
		return nil, fmt.Errorf("MODEL_PATH is required")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for demo
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client represents a connected WebSocket client
type Client struct {
	conn       *websocket.Conn
	classifier *pipeline.Pipeline
	reviewer   *triage.Reviewer
	send       chan server.Message
	// Track if a run is in progress (one at a time)
	runCtx    context.Context
	runCancel context.CancelFunc
}

func newClient(conn *websocket.Conn, classifier *pipeline.Pipeline, reviewer *triage.Reviewer) *Client {
	return &Client{
		conn:       conn,
		classifier: classifier,
		reviewer:   reviewer,
		send:       make(chan server.Message, 256),
	}
}

func (c *Client) SendMessage(msg server.Message) {
	select {
	case c.send <- msg:
	default:
		// Channel full, drop message
		log.Println("Warning: message channel full, dropping message")
	}
}

func (c *Client) SendLog(message, level string) {
	c.SendMessage(server.NewLogMessage(message, level))
}

func (c *Client) SendProgress(percent int, stage, message string) {
	c.SendMessage(server.NewProgressMessage(percent, stage, message))
}

func (c *Client) SendError(message string, err error) {
	c.SendMessage(server.NewErrorMessage(message, err))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		// Cancel any running classification
		if c.runCancel != nil {
			c.runCancel()
		}
		c.conn.Close()
	}()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		switch msg.Type {
		case server.TypeClassify:
			c.handleClassify(msg)
		case server.TypePing:
			// Respond with pong
			c.SendMessage(server.Message{Type: "pong"})
		default:
			c.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type), nil)
		}
	}
}

func (c *Client) handleClassify(msg server.Message) {
	// Check if a run is already in progress
	if c.runCtx != nil && c.runCtx.Err() == nil {
		c.SendError("Classification already in progress", nil)
		return
	}

	// Parse payload
	payload, err := server.ParseClassifyPayload(msg)
	if err != nil {
		c.SendError("Failed to parse classify request", err)
		return
	}

	// Create cancellable context for this run
	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	defer func() {
		c.runCtx = nil
		c.runCancel = nil
	}()

	// Run classification pipeline
	p := server.NewPipeline(c.classifier, c.reviewer, c)

	if err := p.Run(c.runCtx, payload.Report); err != nil {
		if c.runCtx.Err() == context.Canceled {
			c.SendLog("Classification cancelled", "warning")
		} else {
			c.SendError("Classification failed", err)
		}
		return
	}
}

func serveWs(classifier *pipeline.Pipeline, reviewer *triage.Reviewer, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := newClient(conn, classifier, reviewer)

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load all pipeline resources once; they are read-only from here on
	model, err := classifier.Load(config.ModelPath)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	excluded, err := intel.LoadExcludedColumns(config.ExclusionsPath)
	if err != nil {
		log.Fatalf("Failed to load exclusion list: %v", err)
	}

	knownHashes, err := intel.LoadKnownHashes(config.KnownHashesPath)
	if err != nil {
		log.Fatalf("Failed to load known-malware hashes: %v", err)
	}

	classifierPipeline := pipeline.New(model, excluded, knownHashes)
	log.Printf("Model loaded: %d features, %d excluded columns, %d known hashes",
		len(model.ExpectedFeatures()), len(excluded), len(knownHashes))

	var reviewer *triage.Reviewer
	if config.OpenAIAPIKey != "" {
		reviewer, err = triage.NewReviewer(config.OpenAIAPIKey, config.TriageConcurrency)
		if err != nil {
			log.Fatalf("Failed to create LLM reviewer: %v", err)
		}
		log.Printf("LLM triage enabled (max %d concurrent)", config.TriageConcurrency)
	}

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// WebSocket endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(classifierPipeline, reviewer, w, r)
	})

	port := config.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
