package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
)

// Request is one tokenised command line from a client. A nil Words
// slice marks a freshly connected client awaiting its welcome.
type Request struct {
	ClientID int
	Words    []string
}

// Hello reports whether this request is a new-connection marker rather
// than a command.
func (r Request) Hello() bool {
	return r.Words == nil
}

// client is one connected controller. Writes are serialised by the
// per-client mutex so broadcast and ACK lines never interleave.
type client struct {
	conn net.Conn

	mu sync.Mutex
	w  *bufio.Writer
}

func (c *client) send(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return
	}
	c.w.Flush()
}

// Server accepts controller connections and forwards their command
// lines to the player loop. It implements ResponseSink: the player
// responds through it, to one client or to all.
type Server struct {
	listener net.Listener
	requests chan<- Request

	mu      sync.Mutex
	clients map[int]*client
	nextID  int
}

// New creates a server that will deliver parsed requests to the given
// channel. The channel is serviced by the player loop; it should be
// buffered so slow command bursts do not stall connection readers.
func New(requests chan<- Request) *Server {
	return &Server{
		requests: requests,
		clients:  make(map[int]*client),
	}
}

// Listen binds the given TCP address.
func (s *Server) Listen(host string, port int) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	slog.Info("Listening for clients", "addr", addr)
	return nil
}

// Addr returns the bound listen address, once Listen has succeeded.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener closes. Each connection
// gets a reader goroutine; all parsed lines funnel into the request
// channel.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

// Close stops accepting and disconnects every client.
func (s *Server) Close() error {
	err := s.listener.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
	}
	return err
}

func (s *Server) handle(conn net.Conn) {
	id := s.add(conn)
	defer s.remove(id)

	slog.Info("Client connected", "client", id, "remote", conn.RemoteAddr())

	// Announce the connection so the player loop can welcome it from
	// its own goroutine.
	s.requests <- Request{ClientID: id}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		words := Tokenise(line)
		if len(words) == 0 {
			continue
		}

		s.requests <- Request{ClientID: id, Words: words}
	}

	slog.Info("Client disconnected", "client", id)
}

func (s *Server) add(conn net.Conn) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.clients[id] = &client{conn: conn, w: bufio.NewWriter(conn)}
	return id
}

func (s *Server) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[id]; ok {
		c.conn.Close()
		delete(s.clients, id)
	}
}

// Respond delivers a response to one client, or to every client when
// clientID is Broadcast.
func (s *Server) Respond(clientID int, r Response) {
	line := r.Pack()

	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	if clientID == Broadcast {
		for _, c := range s.clients {
			targets = append(targets, c)
		}
	} else if c, ok := s.clients[clientID]; ok {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		c.send(line)
	}
}
