package player

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playdproj/playd/internal/audio"
	"github.com/playdproj/playd/internal/server"
	"github.com/playdproj/playd/pkg/types"
)

// recordSink captures every response the player emits.
type recordSink struct {
	sent []sentResponse
}

type sentResponse struct {
	id   int
	resp server.Response
}

func (r *recordSink) Respond(id int, resp server.Response) {
	r.sent = append(r.sent, sentResponse{id: id, resp: resp})
}

func (r *recordSink) lines() []string {
	lines := make([]string, len(r.sent))
	for i, s := range r.sent {
		lines[i] = s.resp.Pack()
	}
	return lines
}

func (r *recordSink) clear() {
	r.sent = nil
}

// fakeAudio is a loaded file with scriptable behaviour.
type fakeAudio struct {
	state    audio.State
	pos      uint64
	length   uint64
	path     string
	seekFail bool
	closed   bool
}

func (f *fakeAudio) Update() (audio.State, error) { return f.state, nil }

func (f *fakeAudio) State() audio.State { return f.state }

func (f *fakeAudio) SetPlaying(playing bool) error {
	if playing {
		f.state = audio.Playing
	} else {
		f.state = audio.Stopped
	}
	return nil
}

func (f *fakeAudio) Position() (uint64, error) { return f.pos, nil }

func (f *fakeAudio) SetPosition(micros uint64) (uint64, error) {
	if f.seekFail || micros > f.length {
		return 0, fmt.Errorf("%w: out of range", types.ErrSeek)
	}
	f.pos = micros
	if f.state == audio.AtEnd {
		f.state = audio.Stopped
	}
	return micros, nil
}

func (f *fakeAudio) Length() (uint64, error) { return f.length, nil }

func (f *fakeAudio) File() (string, error) { return f.path, nil }

func (f *fakeAudio) Close() error {
	f.closed = true
	return nil
}

const testPeriod = 1_000_000

// newTestPlayer returns a player whose factory loads fresh fakeAudio
// files of one minute.
func newTestPlayer() (*Player, *recordSink, map[string]*fakeAudio) {
	sink := &recordSink{}
	loaded := map[string]*fakeAudio{}

	factory := func(path string) (audio.Audio, error) {
		if path == "/missing.mp3" {
			return nil, fmt.Errorf("%w: no such file", types.ErrFile)
		}
		f := &fakeAudio{state: audio.Stopped, length: 60_000_000, path: path}
		loaded[path] = f
		return f, nil
	}

	return New(factory, sink, testPeriod), sink, loaded
}

func run(p *Player, line ...string) server.Response {
	return p.RunCommand(1, line)
}

func TestCommandsAgainstEjectedState(t *testing.T) {
	tests := []struct {
		name  string
		words []string
	}{
		{"play", []string{"t", "play"}},
		{"stop", []string{"t", "stop"}},
		{"pos", []string{"t", "pos", "0"}},
		{"end", []string{"t", "end"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPlayer()
			ack := run(p, tt.words...)
			assert.Equal(t, server.CodeAck, ack.Code)
			assert.Equal(t, []string{"WHAT", MsgNeedsLoaded}, ack.Args)
			assert.Equal(t, StateEjected, p.State())
		})
	}
}

func TestEjectOnEjectedSucceeds(t *testing.T) {
	p, sink, _ := newTestPlayer()

	ack := run(p, "t", "eject")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, []string{"! EJECT"}, sink.lines())
	assert.Equal(t, StateEjected, p.State())
}

func TestLoadBroadcastsStateAndAcks(t *testing.T) {
	p, sink, _ := newTestPlayer()

	ack := run(p, "t1", "load", "/f.mp3")
	assert.Equal(t, "t1", ack.Tag)
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, []string{
		"! FLOAD /f.mp3",
		"! LEN 60000000",
		"! POS 0",
		"! STOP",
	}, sink.lines())
	assert.Equal(t, StateStopped, p.State())
}

func TestLoadEmptyPathIsClientError(t *testing.T) {
	p, sink, _ := newTestPlayer()

	ack := run(p, "t", "load", "")
	assert.Equal(t, []string{"WHAT", MsgLoadEmptyPath}, ack.Args)
	assert.Empty(t, sink.lines())
	assert.Equal(t, StateEjected, p.State())
}

func TestLoadFailureEjects(t *testing.T) {
	p, sink, loaded := newTestPlayer()

	run(p, "t1", "load", "/f.mp3")
	sink.clear()

	ack := run(p, "t2", "load", "/missing.mp3")
	assert.Equal(t, server.CodeAck, ack.Code)
	assert.Equal(t, "FAIL", ack.Args[0])
	assert.Equal(t, StateEjected, p.State())
	assert.Equal(t, []string{"! EJECT"}, sink.lines())
	assert.True(t, loaded["/f.mp3"].closed, "old file binned before the new load")
}

func TestLoadReplacesCurrentFile(t *testing.T) {
	p, _, loaded := newTestPlayer()

	run(p, "t1", "load", "/a.mp3")
	run(p, "t2", "load", "/b.mp3")

	assert.True(t, loaded["/a.mp3"].closed)
	assert.False(t, loaded["/b.mp3"].closed)
	assert.Equal(t, StateStopped, p.State())
}

func TestPlayStopCycle(t *testing.T) {
	p, sink, _ := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	sink.clear()

	ack := run(p, "t2", "play")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, []string{"! PLAY"}, sink.lines())
	assert.Equal(t, StatePlaying, p.State())

	// play is idempotent while playing.
	ack = run(p, "t3", "play")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, StatePlaying, p.State())

	sink.clear()
	ack = run(p, "t4", "stop")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, []string{"! STOP"}, sink.lines())
	assert.Equal(t, StateStopped, p.State())

	// stop is idempotent while stopped.
	ack = run(p, "t5", "stop")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, StateStopped, p.State())
}

func TestSeekWithinRange(t *testing.T) {
	p, sink, _ := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	sink.clear()

	ack := run(p, "t3", "pos", "5000000")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, []string{"! POS 5000000"}, sink.lines())
	assert.Equal(t, StateStopped, p.State())
}

func TestSeekWhilePlayingStaysPlaying(t *testing.T) {
	p, _, _ := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	run(p, "t2", "play")

	ack := run(p, "t3", "pos", "5000000")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, StatePlaying, p.State())
}

func TestSeekMalformedArgument(t *testing.T) {
	tests := []string{"", "abc", "12abc", "-5", "5s", " 5"}

	for _, arg := range tests {
		t.Run(fmt.Sprintf("%q", arg), func(t *testing.T) {
			p, sink, _ := newTestPlayer()
			run(p, "t1", "load", "/f.mp3")
			sink.clear()

			ack := run(p, "t2", "pos", arg)
			assert.Equal(t, []string{"WHAT", MsgSeekInvalidValue}, ack.Args)
			assert.Empty(t, sink.lines(), "state unchanged")
		})
	}
}

func TestSeekPastEndBehavesAsNaturalEOF(t *testing.T) {
	p, sink, _ := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	sink.clear()

	ack := run(p, "t4", "pos", "120000000")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, []string{"! END", "! STOP", "! POS 0"}, sink.lines())
	assert.Equal(t, StateStopped, p.State())
}

func TestNaturalEOF(t *testing.T) {
	p, sink, loaded := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	run(p, "t2", "play")

	file := loaded["/f.mp3"]
	file.state = audio.AtEnd
	file.pos = file.length
	sink.clear()

	p.Update()
	assert.Equal(t, []string{"! END", "! STOP", "! POS 0"}, sink.lines())
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, uint64(0), file.pos, "rewound, not ejected")

	// The file stays loaded and can be replayed.
	ack := run(p, "t3", "play")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, StatePlaying, p.State())
}

func TestEjectTearsDownPipeline(t *testing.T) {
	p, sink, loaded := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	run(p, "t2", "play")
	sink.clear()

	ack := run(p, "t3", "eject")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, []string{"! EJECT"}, sink.lines())
	assert.Equal(t, StateEjected, p.State())
	assert.True(t, loaded["/f.mp3"].closed)
}

func TestQuitIsTerminal(t *testing.T) {
	p, sink, _ := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	sink.clear()

	ack := run(p, "t2", "quit")
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)
	assert.Equal(t, []string{"! EJECT"}, sink.lines())
	assert.False(t, p.Running())
	assert.Equal(t, StateQuitting, p.State())

	// Everything is rejected from here on.
	for _, words := range [][]string{
		{"t3", "play"}, {"t3", "load", "/f.mp3"}, {"t3", "quit"},
	} {
		ack := p.RunCommand(1, words)
		assert.Equal(t, "FAIL", ack.Args[0])
		assert.Equal(t, MsgCmdClosing, ack.Args[1])
	}
}

func TestBadCommandShapes(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		args  []string
	}{
		{"empty line", nil, []string{"WHAT", MsgCmdShort}},
		{"tag only", []string{"t5"}, []string{"WHAT", MsgCmdShort}},
		{"unknown verb", []string{"t5", "dance"}, []string{"WHAT", MsgCmdInvalid}},
		{"load missing arg", []string{"t5", "load"}, []string{"WHAT", MsgCmdInvalid}},
		{"play with arg", []string{"t5", "play", "now"}, []string{"WHAT", MsgCmdInvalid}},
		{"pos extra arg", []string{"t5", "pos", "1", "2"}, []string{"WHAT", MsgCmdInvalid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPlayer()
			ack := run(p, tt.words...)
			assert.Equal(t, server.CodeAck, ack.Code)
			assert.Equal(t, tt.args, ack.Args)
			assert.Equal(t, StateEjected, p.State(), "state unchanged")
		})
	}
}

func TestAckEchoesTag(t *testing.T) {
	p, _, _ := newTestPlayer()

	ack := run(p, "weird tag", "eject")
	assert.Equal(t, "weird tag", ack.Tag)
	assert.Equal(t, "'weird tag' ACK OK Success", ack.Pack())
}

func TestDumpToRequestingClient(t *testing.T) {
	p, sink, _ := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	run(p, "t2", "play")
	sink.clear()

	ack := p.RunCommand(7, []string{"t3", "dump"})
	assert.Equal(t, []string{"OK", MsgSuccess}, ack.Args)

	for _, s := range sink.sent {
		assert.Equal(t, 7, s.id, "dump goes to the requesting client only")
	}
	assert.Equal(t, []string{
		"! FLOAD /f.mp3",
		"! LEN 60000000",
		"! POS 0",
		"! PLAY",
	}, sink.lines())
}

func TestWelcomeClient(t *testing.T) {
	p, sink, _ := newTestPlayer()

	p.WelcomeClient(3)

	assert.Equal(t, []string{
		"! OHAI 3 '" + MsgOhai + "'",
		"! IAMA player/file",
		"! EJECT",
		"! ACK OK Success",
	}, sink.lines())
	for _, s := range sink.sent {
		assert.Equal(t, 3, s.id)
	}
}

func TestPositionAnnouncementsThrottled(t *testing.T) {
	p, sink, loaded := newTestPlayer()
	run(p, "t1", "load", "/f.mp3")
	run(p, "t2", "play")

	file := loaded["/f.mp3"]
	sink.clear()

	// First update after load/play announces immediately.
	file.pos = 1000
	p.Update()
	require.Equal(t, []string{"! POS 1000"}, sink.lines())

	// Within one period: silence.
	file.pos = 500_000
	p.Update()
	assert.Equal(t, []string{"! POS 1000"}, sink.lines())

	// Period elapsed: announce again.
	file.pos = 1_001_000
	p.Update()
	assert.Equal(t, []string{"! POS 1000", "! POS 1001000"}, sink.lines())
}
