package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"chordkv/internal/chord"
	"chordkv/internal/ring"
	"chordkv/internal/store"

	"go.uber.org/zap"
)

// testNode bundles one running chord node's HTTP surface for use across the
// end-to-end scenarios spec.md §8 describes.
type testNode struct {
	Addr  ring.PeerAddr
	State *chord.State
	Store *store.Store
}

func startTestNode(t *testing.T, m, hopLimit int, period time.Duration) *testNode {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	tcpAddr := ln.Addr().(*net.TCPAddr)
	addr := ring.PeerAddr{Host: "127.0.0.1", Port: uint16(tcpAddr.Port)}
	me := ring.NewNode(addr, m)

	log := zap.NewNop()
	client := chord.NewClient(log)
	state := chord.New(me, m, client, log)
	st := store.New()
	srv := New(addr.Label(), state, st, m, hopLimit, log)

	go http.Serve(ln, srv.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	state.RunMaintenance(ctx, period)

	t.Cleanup(func() {
		cancel()
		ln.Close()
	})

	return &testNode{Addr: addr, State: state, Store: st}
}

func (n *testNode) url(path string) string { return n.Addr.URL() + path }

func httpGet(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func httpPut(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("building PUT %s: %v", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", url, err)
	}
	return resp
}

func httpPost(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBodyNode(t *testing.T, resp *http.Response) ring.Node {
	t.Helper()
	defer resp.Body.Close()
	var n ring.Node
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		t.Fatalf("decoding node body: %v", err)
	}
	return n
}

// Scenario 1: singleton PUT/GET/404, per spec.md §8.
func TestSingletonPutGet(t *testing.T) {
	n := startTestNode(t, 16, 32, 200*time.Millisecond)

	if resp := httpPut(t, n.url("/storage/foo"), "bar"); resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /storage/foo: status = %d, want 200", resp.StatusCode)
	}

	resp := httpGet(t, n.url("/storage/foo"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /storage/foo: status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "bar" {
		t.Fatalf("GET /storage/foo body = %q, want %q", body, "bar")
	}

	missing := httpGet(t, n.url("/storage/missing"))
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /storage/missing: status = %d, want 404", missing.StatusCode)
	}
}

// Scenario 2: two-node join converges to a 2-cycle, per spec.md §8.
func TestTwoNodeJoinConverges(t *testing.T) {
	period := 80 * time.Millisecond
	a := startTestNode(t, 16, 32, period)
	b := startTestNode(t, 16, 32, period)

	resp := httpPost(t, b.url("/join?nprime="+a.Addr.Label()))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status = %d, want 200", resp.StatusCode)
	}

	time.Sleep(6 * period)

	aSucc := decodeBodyNode(t, httpGet(t, a.url("/internal/successor")))
	bSucc := decodeBodyNode(t, httpGet(t, b.url("/internal/successor")))

	aNode := ring.NewNode(a.Addr, 16)
	bNode := ring.NewNode(b.Addr, 16)

	if !aSucc.Equal(bNode) {
		t.Errorf("A's successor = %+v, want B (%+v)", aSucc, bNode)
	}
	if !bSucc.Equal(aNode) {
		t.Errorf("B's successor = %+v, want A (%+v)", bSucc, aNode)
	}
}

// Scenario 5: a simulated crash makes the crashed node answer 503 while the
// rest of a small ring keeps serving, per spec.md §8.
func TestSimulatedCrashReturns503(t *testing.T) {
	period := 80 * time.Millisecond
	a := startTestNode(t, 16, 32, period)
	b := startTestNode(t, 16, 32, period)

	resp := httpPost(t, b.url("/join?nprime="+a.Addr.Label()))
	resp.Body.Close()
	time.Sleep(6 * period)

	crashResp := httpPost(t, b.url("/sim-crash"))
	crashResp.Body.Close()
	if crashResp.StatusCode != http.StatusOK {
		t.Fatalf("sim-crash: status = %d, want 200", crashResp.StatusCode)
	}

	getResp := httpGet(t, b.url("/helloworld"))
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("crashed node GET: status = %d, want 503", getResp.StatusCode)
	}

	okResp := httpGet(t, a.url("/helloworld"))
	defer okResp.Body.Close()
	if okResp.StatusCode != http.StatusOK {
		t.Fatalf("healthy node GET: status = %d, want 200", okResp.StatusCode)
	}

	recoverResp := httpPost(t, b.url("/sim-recover"))
	defer recoverResp.Body.Close()
	if recoverResp.StatusCode != http.StatusOK {
		t.Fatalf("sim-recover: status = %d, want 200", recoverResp.StatusCode)
	}
}

// Scenario 6: a pathological self-pointing ring terminates with 502 instead
// of forwarding forever, per spec.md §8.
func TestHopLimitExceededReturns502(t *testing.T) {
	const m = 16
	const hopLimit = 3
	n := startTestNode(t, m, hopLimit, time.Hour) // no maintenance interference

	// Shrink the owned interval down to the single point id == me.id, so
	// almost every key is not locally owned, while successor still points
	// at self: every forward this node performs lands back on itself.
	me := n.State.Me()
	justBefore := ring.Node{
		ID:   ring.Add(me.ID, ring.Mask(m), m), // me.id - 1 (mod 2^m)
		Addr: ring.PeerAddr{Host: "127.0.0.1", Port: 65000},
	}
	n.State.SetPredecessor(justBefore)

	resp := httpGet(t, n.url("/storage/some-key-nobody-owns"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("GET with pathological ring: status = %d, want 502", resp.StatusCode)
	}
}

// Graceful leave: the leaver's neighbors splice together, per spec.md §8
// scenario 4 (here exercised with a 2-node ring, the minimal case that still
// demonstrates the splice).
func TestLeaveRestoresSingletons(t *testing.T) {
	period := 80 * time.Millisecond
	a := startTestNode(t, 16, 32, period)
	b := startTestNode(t, 16, 32, period)

	httpPost(t, b.url("/join?nprime="+a.Addr.Label())).Body.Close()
	time.Sleep(6 * period)

	leaveResp := httpPost(t, b.url("/leave"))
	defer leaveResp.Body.Close()
	if leaveResp.StatusCode != http.StatusOK {
		t.Fatalf("leave: status = %d, want 200", leaveResp.StatusCode)
	}

	time.Sleep(2 * period)

	aNode := ring.NewNode(a.Addr, 16)
	aSucc := decodeBodyNode(t, httpGet(t, a.url("/internal/successor")))
	if !aSucc.Equal(aNode) {
		t.Errorf("after B's departure, A's successor = %+v, want A itself (%+v)", aSucc, aNode)
	}
}
