package stratum

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"miner/constants"
	"miner/control"
	"miner/types"
	"miner/utils"
)

// -----------------------------------------------------------------------------
// ░░ Fake Pool ░░
// -----------------------------------------------------------------------------

type fakePool struct {
	t  *testing.T
	ln net.Listener
}

func newFakePool(t *testing.T) *fakePool {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return &fakePool{t: t, ln: ln}
}

func (p *fakePool) addr() string { return p.ln.Addr().String() }

type poolConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func (p *fakePool) accept() *poolConn {
	p.t.Helper()
	conn, err := p.ln.Accept()
	require.NoError(p.t, err)
	p.t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return &poolConn{t: p.t, conn: conn, r: bufio.NewReader(conn)}
}

// expect reads one request, checks its envelope and returns the raw line.
func (c *poolConn) expect(method string) []byte {
	c.t.Helper()
	line, err := c.r.ReadBytes('\n')
	require.NoError(c.t, err)
	var req struct {
		ID      string `json:"id"`
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
	}
	require.NoError(c.t, sonnet.Unmarshal(line, &req))
	require.Equal(c.t, "1", req.ID)
	require.Equal(c.t, "2.0", req.JSONRPC)
	require.Equal(c.t, method, req.Method)
	return line
}

// paramsOf decodes a request's params object.
func paramsOf[P any](t *testing.T, line []byte) P {
	t.Helper()
	var w struct {
		Params P `json:"params"`
	}
	require.NoError(t, sonnet.Unmarshal(line, &w))
	return w.Params
}

func (c *poolConn) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *poolConn) handshake() {
	c.t.Helper()
	login := paramsOf[loginParams](c.t, c.expect("login"))
	require.Equal(c.t, "alice", login.Login)
	require.Equal(c.t, "", login.Pass)
	require.Equal(c.t, constants.MinerAgent, login.Agent)
	c.send(`{"id":"1","jsonrpc":"2.0","method":"login","result":"ok","error":null}`)
	c.expect("getjobtemplate")
}

func prePow(fill byte) string {
	return strings.Repeat(utils.EncodeLowerHex([]byte{fill}), constants.HeaderSize)
}

func waitJob(t *testing.T, slot *control.JobSlot) types.Job {
	t.Helper()
	select {
	case <-slot.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("no job delivered")
	}
	job, ok := slot.Take()
	require.True(t, ok)
	return job
}

// -----------------------------------------------------------------------------
// ░░ Full Session ░░
// -----------------------------------------------------------------------------

func TestSessionJobsAndSubmit(t *testing.T) {
	pool := newFakePool(t)
	var slot control.JobSlot
	c := New(pool.addr(), "alice", 31, &slot, Options{Keepalive: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	pc := pool.accept()
	pc.handshake()
	pc.send(`{"id":"1","jsonrpc":"2.0","method":"getjobtemplate","result":{"difficulty":1,"height":100,"job_id":7,"pre_pow":"` + prePow(0xab) + `"},"error":null}`)

	job := waitJob(t, &slot)
	require.Equal(t, uint64(100), job.Height)
	require.Equal(t, uint64(7), job.ID)
	require.Equal(t, byte(0xab), job.Header[0])
	require.Equal(t, byte(0xab), job.Header[constants.HeaderSize-1])

	pc.send(`{"jsonrpc":"2.0","method":"job","params":{"difficulty":1,"height":101,"job_id":8,"pre_pow":"` + prePow(0x01) + `"}}`)
	job = waitJob(t, &slot)
	require.Equal(t, uint64(101), job.Height)
	require.Equal(t, uint64(8), job.ID)

	share := types.Share{Height: 101, JobID: 8, Nonce: 12345}
	for i := range share.Solution {
		share.Solution[i] = uint32(i * 3)
	}
	require.NoError(t, c.Submit(share))

	got := paramsOf[submitParams](t, pc.expect("submit"))
	require.Equal(t, uint8(31), got.EdgeBits)
	require.Equal(t, uint64(101), got.Height)
	require.Equal(t, uint64(8), got.JobID)
	require.Equal(t, uint64(12345), got.Nonce)
	require.Equal(t, share.Solution[:], got.Pow)

	pc.send(`{"id":"1","jsonrpc":"2.0","method":"submit","result":"ok","error":null}`)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestInvalidJobIgnored(t *testing.T) {
	pool := newFakePool(t)
	var slot control.JobSlot
	c := New(pool.addr(), "alice", 31, &slot, Options{Keepalive: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	pc := pool.accept()
	pc.handshake()
	pc.send(`{"jsonrpc":"2.0","method":"job","params":{"height":0,"job_id":1,"pre_pow":"` + prePow(1) + `"}}`)
	pc.send(`{"jsonrpc":"2.0","method":"job","params":{"height":5,"job_id":2,"pre_pow":"` + strings.ToUpper(prePow(0xab)) + `"}}`)
	pc.send(`not json`)
	pc.send(`{"jsonrpc":"2.0","method":"job","params":{"height":6,"job_id":3,"pre_pow":"` + prePow(2) + `"}}`)

	job := waitJob(t, &slot)
	require.Equal(t, uint64(6), job.Height)
}

// -----------------------------------------------------------------------------
// ░░ Session Failures ░░
// -----------------------------------------------------------------------------

func TestLoginRejected(t *testing.T) {
	pool := newFakePool(t)
	var slot control.JobSlot
	c := New(pool.addr(), "alice", 31, &slot, Options{})

	errc := make(chan error, 1)
	go func() { errc <- c.session(context.Background()) }()

	pc := pool.accept()
	pc.expect("login")
	pc.send(`{"id":"1","jsonrpc":"2.0","method":"login","result":null,"error":{"code":-32500,"message":"login first"}}`)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrLoginRejected)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not fail")
	}
}

func TestSilentPoolTimesOut(t *testing.T) {
	pool := newFakePool(t)
	var slot control.JobSlot
	c := New(pool.addr(), "alice", 31, &slot, Options{Keepalive: time.Hour, Silence: 100 * time.Millisecond})

	errc := make(chan error, 1)
	go func() { errc <- c.session(context.Background()) }()

	pc := pool.accept()
	pc.handshake()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("silent pool not dropped")
	}
}

func TestDroppedSessionWithdrawsJob(t *testing.T) {
	pool := newFakePool(t)
	var slot control.JobSlot
	c := New(pool.addr(), "alice", 31, &slot, Options{Keepalive: time.Hour})

	errc := make(chan error, 1)
	go func() { errc <- c.session(context.Background()) }()

	pc := pool.accept()
	pc.handshake()
	pc.send(`{"jsonrpc":"2.0","method":"job","params":{"height":9,"job_id":4,"pre_pow":"` + prePow(3) + `"}}`)
	waitJob(t, &slot)
	require.False(t, slot.Withdrawn())

	pc.conn.Close()
	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("closed connection not noticed")
	}
	require.True(t, slot.Withdrawn())
	require.ErrorIs(t, c.Submit(types.Share{}), ErrNotConnected)
}

func TestLoginResponseTimeout(t *testing.T) {
	pool := newFakePool(t)
	var slot control.JobSlot
	c := New(pool.addr(), "alice", 31, &slot, Options{Receive: 100 * time.Millisecond})

	errc := make(chan error, 1)
	go func() { errc <- c.session(context.Background()) }()

	pc := pool.accept()
	pc.expect("login")

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("unanswered login not dropped")
	}
}

func TestOversizedLine(t *testing.T) {
	pool := newFakePool(t)
	var slot control.JobSlot
	c := New(pool.addr(), "alice", 31, &slot, Options{Keepalive: time.Hour})

	errc := make(chan error, 1)
	go func() { errc <- c.session(context.Background()) }()

	pc := pool.accept()
	pc.handshake()
	pc.send(strings.Repeat("x", constants.StratumResponseBufferSize+1))

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrLineTooLong)
	case <-time.After(5 * time.Second):
		t.Fatal("oversized line accepted")
	}
}

func TestKeepaliveSent(t *testing.T) {
	pool := newFakePool(t)
	var slot control.JobSlot
	c := New(pool.addr(), "alice", 31, &slot, Options{Keepalive: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.session(ctx)

	pc := pool.accept()
	pc.handshake()
	pc.expect("keepalive")
}

func TestSubmitWithoutConnection(t *testing.T) {
	var slot control.JobSlot
	c := New("127.0.0.1:1", "alice", 31, &slot, Options{})
	require.ErrorIs(t, c.Submit(types.Share{}), ErrNotConnected)
}

// -----------------------------------------------------------------------------
// ░░ Job Validation ░░
// -----------------------------------------------------------------------------

func TestParseJob(t *testing.T) {
	good := prePow(0x5a)
	cases := []struct {
		name string
		p    *jobParams
		ok   bool
	}{
		{"valid", &jobParams{Height: 1, JobID: 0, PrePow: good}, true},
		{"missing", nil, false},
		{"zero height", &jobParams{Height: 0, PrePow: good}, false},
		{"short", &jobParams{Height: 1, PrePow: good[:len(good)-2]}, false},
		{"long", &jobParams{Height: 1, PrePow: good + "00"}, false},
		{"uppercase", &jobParams{Height: 1, PrePow: strings.ToUpper(good)}, false},
		{"non-hex", &jobParams{Height: 1, PrePow: "zz" + good[2:]}, false},
	}
	for _, c := range cases {
		job, err := parseJob(c.p)
		if !c.ok {
			require.ErrorIs(t, err, ErrNoJob, c.name)
			continue
		}
		require.NoError(t, err, c.name)
		require.Equal(t, byte(0x5a), job.Header[10], c.name)
	}
}
