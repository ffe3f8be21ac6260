// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ STRATUM POOL SESSION
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Job Source + Share Sink over Line-Delimited JSON-RPC
//
// Description:
//   Connects to a pool, logs in, asks for the current job template and then keeps reading:
//   every getjobtemplate response or pushed job lands in the shared JobSlot. A keepalive goes
//   out every 10 seconds; a pool silent for 30 seconds is dropped and redialled after 5.
//   Submit writes a share on whatever connection is current.
//
// Design Principles:
//   - One reader goroutine and one keepalive goroutine per connection, joined by errgroup
//   - Every write holds the connection lock and carries its own deadline
//   - Messages are one JSON object per '\n'; a line longer than the buffer ends the session
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package stratum

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/sync/errgroup"

	"miner/constants"
	"miner/control"
	"miner/debug"
	"miner/types"
	"miner/utils"
)

var (
	ErrLoginRejected = errors.New("stratum: login rejected")
	ErrNoJob         = errors.New("stratum: malformed job")
	ErrTimeout       = errors.New("stratum: pool stopped responding")
	ErrNotConnected  = errors.New("stratum: not connected")
	ErrLineTooLong   = errors.New("stratum: response exceeds buffer")
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type request struct {
	ID      string `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type loginParams struct {
	Login string `json:"login"`
	Pass  string `json:"pass"`
	Agent string `json:"agent"`
}

type submitParams struct {
	EdgeBits uint8    `json:"edge_bits"`
	Height   uint64   `json:"height"`
	JobID    uint64   `json:"job_id"`
	Nonce    uint64   `json:"nonce"`
	Pow      []uint32 `json:"pow"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is decoded first to route a line by method.
type envelope struct {
	Method string    `json:"method"`
	Error  *rpcError `json:"error"`
}

type jobParams struct {
	Height uint64 `json:"height"`
	JobID  uint64 `json:"job_id"`
	PrePow string `json:"pre_pow"`
}

// jobMessage carries a job either as a getjobtemplate result or a pushed job's params.
type jobMessage struct {
	Result *jobParams `json:"result"`
	Params *jobParams `json:"params"`
}

// encode renders one request line.
func encode(method string, params any) ([]byte, error) {
	b, err := sonnet.Marshal(request{ID: "1", JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// parseJob validates a job payload. pre_pow must be exactly the header in
// lowercase hex and height must be non-zero.
func parseJob(p *jobParams) (types.Job, error) {
	if p == nil || p.Height == 0 {
		return types.Job{}, ErrNoJob
	}
	job := types.Job{Height: p.Height, ID: p.JobID}
	if !utils.DecodeLowerHex(job.Header[:], []byte(p.PrePow)) {
		return types.Job{}, fmt.Errorf("%w: bad pre_pow", ErrNoJob)
	}
	return job, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CLIENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Options tunes session timing. Zero fields take the package defaults.
type Options struct {
	Keepalive time.Duration
	Silence   time.Duration
	Reconnect time.Duration
	Timeout   time.Duration // dial and write deadline
	Receive   time.Duration // login response deadline
}

func (o Options) withDefaults() Options {
	if o.Keepalive == 0 {
		o.Keepalive = constants.KeepaliveInterval
	}
	if o.Silence == 0 {
		o.Silence = constants.NoResponseDisconnect
	}
	if o.Reconnect == 0 {
		o.Reconnect = constants.ReconnectDelay
	}
	if o.Timeout == 0 {
		o.Timeout = constants.SendTimeout
	}
	if o.Receive == 0 {
		o.Receive = constants.ReceiveTimeout
	}
	return o
}

// Client is a reconnecting pool session.
type Client struct {
	addr     string
	user     string
	edgeBits uint8
	jobs     *control.JobSlot
	opts     Options

	mu   sync.Mutex
	conn net.Conn
}

// New prepares a session for addr; jobs receives every valid job.
func New(addr, user string, edgeBits uint8, jobs *control.JobSlot, opts Options) *Client {
	return &Client{
		addr:     addr,
		user:     user,
		edgeBits: edgeBits,
		jobs:     jobs,
		opts:     opts.withDefaults(),
	}
}

// Run keeps a session alive until ctx ends or Shutdown is signalled.
func (c *Client) Run(ctx context.Context) error {
	for {
		debug.DropMessage("STRATUM", "Connecting to "+c.addr)
		err := c.session(ctx)
		if ctx.Err() != nil || control.Stopping() {
			return ctx.Err()
		}
		debug.DropError("STRATUM", err)
		debug.DropMessage("STRATUM", "Disconnected, retrying in "+c.opts.Reconnect.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.Reconnect):
		}
	}
}

// Submit sends a share on the current connection.
func (c *Client) Submit(share types.Share) error {
	line, err := encode("submit", submitParams{
		EdgeBits: c.edgeBits,
		Height:   share.Height,
		JobID:    share.JobID,
		Nonce:    share.Nonce,
		Pow:      share.Solution[:],
	})
	if err != nil {
		return err
	}
	return c.send(line)
}

// send writes one line under the connection lock.
func (c *Client) send(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.Timeout))
	if _, err := c.conn.Write(line); err != nil {
		return fmt.Errorf("stratum: send: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SESSION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// session runs one connection from dial to failure.
func (c *Client) session(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("stratum: dial: %w", err)
	}
	defer conn.Close()

	r := bufio.NewReaderSize(conn, constants.StratumResponseBufferSize)
	if err := c.login(conn, r); err != nil {
		return err
	}
	debug.DropMessage("STRATUM", "Logged in")

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		// Shares for the current job could no longer be submitted.
		c.jobs.Withdraw()
	}()

	line, err := encode("getjobtemplate", nil)
	if err != nil {
		return err
	}
	if err := c.send(line); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Unblock the reader once the session is over.
		<-gctx.Done()
		conn.Close()
		return nil
	})
	g.Go(func() error { return c.keepalive(gctx) })
	g.Go(func() error { return c.read(conn, r) })
	return g.Wait()
}

// login sends the login request and waits for a response with a null error.
func (c *Client) login(conn net.Conn, r *bufio.Reader) error {
	line, err := encode("login", loginParams{Login: c.user, Pass: "", Agent: constants.MinerAgent})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(c.opts.Timeout))
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("stratum: login: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.opts.Receive))
	resp, err := readLine(r)
	if err != nil {
		return err
	}
	var env envelope
	if err := sonnet.Unmarshal(resp, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginRejected, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%w: %s", ErrLoginRejected, env.Error.Message)
	}
	return nil
}

// keepalive pings the pool until ctx ends.
func (c *Client) keepalive(ctx context.Context) error {
	line, err := encode("keepalive", nil)
	if err != nil {
		return err
	}
	t := time.NewTicker(c.opts.Keepalive)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := c.send(line); err != nil {
				return err
			}
		}
	}
}

// read dispatches pool lines until the connection fails or goes silent.
func (c *Client) read(conn net.Conn, r *bufio.Reader) error {
	for {
		conn.SetReadDeadline(time.Now().Add(c.opts.Silence))
		line, err := readLine(r)
		if err != nil {
			return err
		}
		c.handle(line)
	}
}

// handle routes one pool line. Malformed lines are logged and skipped.
func (c *Client) handle(line []byte) {
	var env envelope
	if err := sonnet.Unmarshal(line, &env); err != nil {
		debug.DropMessage("STRATUM", "Unreadable response")
		return
	}

	switch env.Method {
	case "getjobtemplate", "job":
		if env.Error != nil {
			debug.DropMessage("STRATUM", "Job request failed: "+env.Error.Message)
			return
		}
		var msg jobMessage
		if err := sonnet.Unmarshal(line, &msg); err != nil {
			debug.DropError("STRATUM", err)
			return
		}
		p := msg.Params
		if env.Method == "getjobtemplate" {
			p = msg.Result
		}
		job, err := parseJob(p)
		if err != nil {
			debug.DropError("STRATUM", err)
			return
		}
		c.jobs.Put(job)
		debug.DropMessage("STRATUM", "Got new job from stratum server, height "+utils.Utoa(job.Height))

	case "submit":
		if env.Error != nil {
			debug.DropMessage("STRATUM", "Share rejected: "+env.Error.Message)
			return
		}
		debug.DropMessage("STRATUM", "Share accepted")
	}
}

// readLine returns the next line without its terminator.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	switch {
	case err == nil:
		return line[:len(line)-1], nil
	case errors.Is(err, bufio.ErrBufferFull):
		return nil, ErrLineTooLong
	case errors.Is(err, net.ErrClosed):
		return nil, err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil, ErrTimeout
	}
	return nil, fmt.Errorf("stratum: receive: %w", err)
}
