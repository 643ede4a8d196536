package chord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chordkv/internal/ring"

	"go.uber.org/zap"
)

// Timeouts for the peer RPC client, per spec.md §4.C5.
const (
	requestTimeout     = 3 * time.Second
	connectTimeout     = 500 * time.Millisecond
	idleConnTimeout    = 30 * time.Second
	maxIdleConnsPerHost = 10
)

// Client issues the internal overlay RPCs against peer nodes over HTTP,
// mapping transport failures and simulated-crash responses to distinct
// error values the caller can recover from locally (spec.md §7).
//
// Grounded on the teacher's HTTPTransport fast/slow *http.Client split
// (src/internal/transport/client.go); generalized into one client carrying
// the single timeout budget spec.md §4.C5 specifies, since this spec does
// not distinguish "authority" vs "maintenance" RPC timeouts the way the
// teacher's two-client split did.
type Client struct {
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient builds a Client with the fixed timeout budget spec.md §4.C5
// specifies.
func NewClient(log *zap.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		IdleConnTimeout:     idleConnTimeout,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		log: log,
	}
}

func (c *Client) do(ctx context.Context, method, targetURL string, body []byte) (*http.Response, error) {
	var reqBody *bytes.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, targetURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("rpc failed", zap.String("url", targetURL), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		return nil, ErrPeerCrashed
	}
	return resp, nil
}

func decodeNode(r io.Reader) (ring.Node, error) {
	var n ring.Node
	if err := json.NewDecoder(r).Decode(&n); err != nil {
		return ring.Node{}, fmt.Errorf("%w: malformed response body: %v", ErrPeerUnreachable, err)
	}
	return n, nil
}

// Ping reports whether addr answers /internal/ping with a non-503 2xx.
func (c *Client) Ping(ctx context.Context, addr ring.PeerAddr) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, addr.URL()+"/internal/ping", nil)
	if err != nil {
		if err == ErrPeerCrashed {
			return false, nil
		}
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// GetSuccessor fetches addr's successor.
func (c *Client) GetSuccessor(ctx context.Context, addr ring.PeerAddr) (ring.Node, error) {
	resp, err := c.do(ctx, http.MethodGet, addr.URL()+"/internal/successor", nil)
	if err != nil {
		return ring.Node{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ring.Node{}, fmt.Errorf("%w: status %d", ErrPeerUnreachable, resp.StatusCode)
	}
	return decodeNode(resp.Body)
}

// GetPredecessor fetches addr's predecessor.
func (c *Client) GetPredecessor(ctx context.Context, addr ring.PeerAddr) (ring.Node, error) {
	resp, err := c.do(ctx, http.MethodGet, addr.URL()+"/internal/predecessor", nil)
	if err != nil {
		return ring.Node{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ring.Node{}, fmt.Errorf("%w: status %d", ErrPeerUnreachable, resp.StatusCode)
	}
	return decodeNode(resp.Body)
}

// FindSuccessor asks seed to resolve id, carrying the forward hop count.
func (c *Client) FindSuccessor(ctx context.Context, seed ring.PeerAddr, id ring.Identifier, hops int) (ring.Node, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatUint(uint64(id), 10))
	q.Set("hops", strconv.Itoa(hops))
	target := seed.URL() + "/internal/find-successor?" + q.Encode()

	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ring.Node{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ring.Node{}, fmt.Errorf("%w: status %d", ErrPeerUnreachable, resp.StatusCode)
	}
	return decodeNode(resp.Body)
}

// Notify tells addr that me might be its new predecessor.
func (c *Client) Notify(ctx context.Context, addr ring.PeerAddr, me ring.Node) error {
	body, err := json.Marshal(me)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	resp, err := c.do(ctx, http.MethodPost, addr.URL()+"/internal/notify", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrPeerUnreachable, resp.StatusCode)
	}
	return nil
}

// SetSuccessor instructs addr to adopt n as its successor.
func (c *Client) SetSuccessor(ctx context.Context, addr ring.PeerAddr, n ring.Node) error {
	return c.setLink(ctx, addr.URL()+"/internal/set-successor", n)
}

// SetPredecessor instructs addr to adopt n as its predecessor.
func (c *Client) SetPredecessor(ctx context.Context, addr ring.PeerAddr, n ring.Node) error {
	return c.setLink(ctx, addr.URL()+"/internal/set-predecessor", n)
}

func (c *Client) setLink(ctx context.Context, targetURL string, n ring.Node) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	resp, err := c.do(ctx, http.MethodPost, targetURL, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusRequestTimeout:
		return ErrLockTimeout
	default:
		return fmt.Errorf("%w: status %d", ErrPeerUnreachable, resp.StatusCode)
	}
}
