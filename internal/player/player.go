// Package player implements the command dispatcher and state machine
// sitting on top of the audio pipeline. One Player lives for the whole
// process; the file it holds comes and goes with load and eject.
package player

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/playdproj/playd/internal/audio"
	"github.com/playdproj/playd/internal/server"
	"github.com/playdproj/playd/pkg/types"
)

// State is the externally visible player state.
type State int

const (
	StateEjected State = iota
	StateStopped
	StatePlaying
	// StateQuitting is terminal; the main loop observes it and exits.
	StateQuitting
)

func (s State) String() string {
	switch s {
	case StateEjected:
		return "ejected"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateQuitting:
		return "quitting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// AudioFactory opens a path as a ready-to-play audio pipeline. It is
// injected so the player does not know about devices or codecs.
type AudioFactory func(path string) (audio.Audio, error)

// Player sequences load/play/stop/seek/eject/quit and keeps connected
// clients synchronised with what the pipeline is doing.
type Player struct {
	file    audio.Audio
	open    AudioFactory
	sink    server.ResponseSink
	tracker *PositionTracker
	running bool
}

// New creates a player with nothing loaded. announcePeriod is the
// minimum gap between broadcast POS updates, in microseconds.
func New(open AudioFactory, sink server.ResponseSink, announcePeriod uint64) *Player {
	return &Player{
		file:    audio.NullAudio{},
		open:    open,
		sink:    sink,
		tracker: NewPositionTracker(announcePeriod),
		running: true,
	}
}

// Running reports whether the player still wants update cycles. It
// turns false when a quit command lands.
func (p *Player) Running() bool {
	return p.running
}

// State derives the player state from the loaded audio.
func (p *Player) State() State {
	if !p.running {
		return StateQuitting
	}
	switch p.file.State() {
	case audio.NoFile:
		return StateEjected
	case audio.Playing:
		return StatePlaying
	}
	return StateStopped
}

// Update performs one cycle of work: advance the pipeline, handle
// end-of-file, and announce the position when it is due.
func (p *Player) Update() {
	st, err := p.file.Update()
	if errors.Is(err, types.ErrInsufficientSpace) || errors.Is(err, types.ErrInsufficientData) {
		// Ring buffer misuse is a bug, not a runtime condition.
		panic(fmt.Sprintf("ring buffer misuse: %v", err))
	}
	if err != nil {
		// A decoder failing mid-stream cannot be retried; wind the
		// file down the same way a natural end would.
		slog.Warn("Pipeline update failed", "error", err)
		p.end(server.NoRequest)
		return
	}

	if st == audio.AtEnd {
		p.end(server.NoRequest)
		return
	}

	if st == audio.Playing {
		if pos, err := p.file.Position(); err == nil && p.tracker.Update(pos) {
			p.respond(server.Broadcast, server.NewResponse(server.NoRequest, server.CodePos, formatMicros(pos)))
		}
	}
}

// WelcomeClient sends a newly connected client the greeting, the server
// role, and a full dump of current state.
func (p *Player) WelcomeClient(id int) {
	p.respond(id, server.NewResponse(server.NoRequest, server.CodeOhai, strconv.Itoa(id), MsgOhai))
	p.respond(id, server.NewResponse(server.NoRequest, server.CodeIama, MsgIama))
	p.dump(id)
	p.respond(id, server.Ack(server.NoRequest, server.StatusOK, MsgSuccess))
}

// RunCommand executes one tokenised request line and returns the ACK
// to send back to the requesting client.
func (p *Player) RunCommand(clientID int, words []string) server.Response {
	if len(words) == 0 {
		return server.Ack(server.NoRequest, server.StatusWhat, MsgCmdShort)
	}

	tag := words[0]
	if len(words) == 1 {
		return server.Ack(tag, server.StatusWhat, MsgCmdShort)
	}

	if !p.running {
		// Refuse everything while quitting so the state cannot go
		// weird under the exiting main loop.
		return server.Ack(tag, server.StatusFail, MsgCmdClosing)
	}

	verb, args := words[1], words[2:]

	switch {
	case len(args) == 0 && verb == "play":
		return p.setPlaying(tag, true)
	case len(args) == 0 && verb == "stop":
		return p.setPlaying(tag, false)
	case len(args) == 0 && verb == "end":
		return p.end(tag)
	case len(args) == 0 && verb == "eject":
		return p.eject(tag)
	case len(args) == 0 && verb == "quit":
		return p.quit(tag)
	case len(args) == 0 && verb == "dump":
		p.dump(clientID)
		return server.Ack(tag, server.StatusOK, MsgSuccess)
	case len(args) == 1 && verb == "load":
		return p.load(tag, args[0])
	case len(args) == 1 && verb == "pos":
		return p.pos(tag, args[0])
	}

	return server.Ack(tag, server.StatusWhat, MsgCmdInvalid)
}

func (p *Player) setPlaying(tag string, playing bool) server.Response {
	if err := p.file.SetPlaying(playing); err != nil {
		if errors.Is(err, types.ErrNoAudio) {
			return server.Ack(tag, server.StatusWhat, MsgNeedsLoaded)
		}
		return server.Ack(tag, server.StatusWhat, err.Error())
	}

	p.announceState(server.Broadcast)
	return server.Ack(tag, server.StatusOK, MsgSuccess)
}

func (p *Player) load(tag, path string) server.Response {
	if path == "" {
		return server.Ack(tag, server.StatusWhat, MsgLoadEmptyPath)
	}

	// Bin the current file before opening the new one, so two
	// pipelines never contend for the device.
	p.closeFile()

	file, err := p.open(path)
	if err != nil {
		p.eject(tag)
		return server.Ack(tag, server.StatusFail, err.Error())
	}

	p.file = file
	p.tracker.Reset()

	slog.Info("Loaded file", "path", path)
	p.dump(server.Broadcast)

	return server.Ack(tag, server.StatusOK, MsgSuccess)
}

func (p *Player) eject(tag string) server.Response {
	p.closeFile()
	p.tracker.Reset()
	p.announceState(server.Broadcast)
	return server.Ack(tag, server.StatusOK, MsgSuccess)
}

func (p *Player) quit(tag string) server.Response {
	p.eject(tag)
	p.running = false
	return server.Ack(tag, server.StatusOK, MsgSuccess)
}

func (p *Player) pos(tag, arg string) server.Response {
	micros, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		// Weird times are the client's fault, so tell it off rather
		// than trying to recover.
		return server.Ack(tag, server.StatusWhat, MsgSeekInvalidValue)
	}

	if p.file.State() == audio.NoFile {
		return server.Ack(tag, server.StatusWhat, MsgNeedsLoaded)
	}

	if _, err := p.posRaw(micros); err != nil {
		// The decoder did not like the position, usually because it
		// is outside the file. Make it look as if playback ran off
		// the end.
		slog.Debug("Seek failure", "target", micros, "error", err)
		return p.end(tag)
	}

	return server.Ack(tag, server.StatusOK, MsgSuccess)
}

// end winds the file down as if it finished playing: announce END,
// stop, and rewind to the start. The file stays loaded and can be
// replayed.
func (p *Player) end(tag string) server.Response {
	if p.file.State() == audio.NoFile {
		return server.Ack(tag, server.StatusWhat, MsgNeedsLoaded)
	}

	p.respond(server.Broadcast, server.NewResponse(server.NoRequest, server.CodeEnd))

	if err := p.file.SetPlaying(false); err != nil {
		slog.Warn("Failed to stop at end", "error", err)
	}
	p.announceState(server.Broadcast)

	if _, err := p.posRaw(0); err != nil {
		slog.Warn("Failed to rewind at end", "error", err)
	}

	return server.Ack(tag, server.StatusOK, MsgSuccess)
}

// posRaw seeks to micros and announces the landing position.
func (p *Player) posRaw(micros uint64) (uint64, error) {
	actual, err := p.file.SetPosition(micros)
	if err != nil {
		return 0, err
	}

	p.tracker.Reset()
	p.respond(server.Broadcast, server.NewResponse(server.NoRequest, server.CodePos, formatMicros(actual)))

	return actual, nil
}

// dump emits the full observable state to one client (or to everyone,
// on load).
func (p *Player) dump(id int) {
	if p.file.State() == audio.NoFile {
		p.announceState(id)
		return
	}

	if file, err := p.file.File(); err == nil {
		p.respond(id, server.NewResponse(server.NoRequest, server.CodeFload, file))
	}
	if length, err := p.file.Length(); err == nil {
		p.respond(id, server.NewResponse(server.NoRequest, server.CodeLen, formatMicros(length)))
	}
	if pos, err := p.file.Position(); err == nil {
		p.respond(id, server.NewResponse(server.NoRequest, server.CodePos, formatMicros(pos)))
	}
	p.announceState(id)
}

// announceState emits the current state as a response line.
func (p *Player) announceState(id int) {
	var code server.Code
	switch p.file.State() {
	case audio.NoFile:
		code = server.CodeEject
	case audio.Playing:
		code = server.CodePlay
	default:
		code = server.CodeStop
	}
	p.respond(id, server.NewResponse(server.NoRequest, code))
}

func (p *Player) closeFile() {
	if err := p.file.Close(); err != nil {
		slog.Warn("Failed to close audio", "error", err)
	}
	p.file = audio.NullAudio{}
}

func (p *Player) respond(id int, r server.Response) {
	p.sink.Respond(id, r)
}

func formatMicros(micros uint64) string {
	return strconv.FormatUint(micros, 10)
}
