package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// clientBuffer is how many events a slow client may fall behind before
// events are dropped for it.
const clientBuffer = 32

// Event represents a server-sent event
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID        string
	SessionID string
	Writer    http.ResponseWriter
	Flusher   http.Flusher
	Done      chan struct{}

	events chan Event
}

// Service manages SSE connections and broadcasts
type Service struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewService creates a new SSE service
func NewService() *Service {
	return &Service{
		clients: make(map[string]*Client),
	}
}

// AddClient registers a stream for the given export session. It returns nil
// if the writer cannot flush.
func (s *Service) AddClient(sessionID string, w http.ResponseWriter) *Client {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := fmt.Sprintf("%s-%d", sessionID, time.Now().UnixNano())

	client := &Client{
		ID:        clientID,
		SessionID: sessionID,
		Writer:    w,
		Flusher:   flusher,
		Done:      make(chan struct{}),
		events:    make(chan Event, clientBuffer),
	}

	s.mu.Lock()
	s.clients[clientID] = client
	s.mu.Unlock()

	logging.InfoWithComponent(logging.ComponentSSE, "Client connected", "client_id", clientID, "session_id", sessionID)

	client.enqueue(Event{
		Type: "connected",
		Data: map[string]interface{}{
			"session_id": sessionID,
			"timestamp":  time.Now().UTC(),
		},
	})

	return client
}

// RemoveClient removes a client connection
func (s *Service) RemoveClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, exists := s.clients[clientID]; exists {
		close(client.Done)
		delete(s.clients, clientID)
		logging.InfoWithComponent(logging.ComponentSSE, "Client disconnected", "client_id", clientID)
	}
}

// BroadcastToSession sends an event to every client following a session.
func (s *Service) BroadcastToSession(sessionID string, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		if client.SessionID == sessionID {
			client.enqueue(event)
		}
	}
}

// Broadcast sends an event to every client.
func (s *Service) Broadcast(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		client.enqueue(event)
	}
}

// Stream writes queued events to the client until ctx ends or the client is
// removed. It must run on the request goroutine that owns the writer.
func (s *Service) Stream(ctx context.Context, client *Client) {
	defer s.RemoveClient(client.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done:
			return
		case event := <-client.events:
			if err := writeEvent(client, event); err != nil {
				logging.WarnWithComponent(logging.ComponentSSE, "Failed to write event", "client_id", client.ID, "error", err)
				return
			}
		}
	}
}

func (c *Client) enqueue(event Event) {
	select {
	case c.events <- event:
	default:
		logging.WarnWithComponent(logging.ComponentSSE, "Client buffer full, dropping event",
			"client_id", c.ID, "type", event.Type)
	}
}

func writeEvent(client *Client, event Event) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(client.Writer, "event: %s\ndata: %s\n\n", event.Type, eventData); err != nil {
		return err
	}
	client.Flusher.Flush()
	return nil
}

// KeepAlive sends periodic keep-alive events to maintain connections
func (s *Service) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Broadcast(Event{
				Type: "ping",
				Data: map[string]interface{}{
					"timestamp": time.Now().UTC(),
				},
			})
		}
	}
}

// GetClientCount returns the number of connected clients
func (s *Service) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// GetSessionClientCount returns the number of clients following a session.
func (s *Service) GetSessionClientCount(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, client := range s.clients {
		if client.SessionID == sessionID {
			count++
		}
	}
	return count
}
