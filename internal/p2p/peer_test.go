package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/nac-codes/Block-Bard/internal/chain"
)

// waitFor polls check until it returns true or the deadline elapses.
func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestIsSelfAddressDoesNotMatchOnPortAlone(t *testing.T) {
	p := NewPeer("10.0.0.5:9000", "", chain.New())

	if !p.isSelfAddress("10.0.0.5:9000") {
		t.Fatal("exact listen address should be self")
	}
	if p.isSelfAddress("10.0.0.6:9000") {
		t.Fatal("a different host sharing this node's port must not be treated as self")
	}
}

func TestIsSelfAddressUsesPublicIPForWildcardBind(t *testing.T) {
	t.Setenv("BLOCKBARD_PUBLIC_IP", "203.0.113.7")
	p := NewPeer("0.0.0.0:9000", "", chain.New())

	if !p.isSelfAddress("203.0.113.7:9000") {
		t.Fatal("advertised public IP:port should be self for a wildcard bind")
	}
	if p.isSelfAddress("203.0.113.8:9000") {
		t.Fatal("a different host on the same port must not be treated as self")
	}
}

func TestTwoPeersConvergeOnLongestChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bcA := chain.New()
	peerA := NewPeer("127.0.0.1:0", "", bcA)
	if err := peerA.Start(ctx); err != nil {
		t.Fatalf("peerA.Start returned %v", err)
	}
	defer peerA.Stop()
	addrA := peerA.listener.Addr().String()
	peerA.nodeAddress = addrA

	// Mine two extra blocks on peer A before peer B ever joins, so A's
	// chain is strictly longer.
	for i := 0; i < 2; i++ {
		var block *chain.Block
		peerA.WithBlockchain(func(bc *chain.Blockchain) {
			block = bc.CreateBlock("more story", "Alice", "main")
		})
		block.Mine()
		peerA.WithBlockchain(func(bc *chain.Blockchain) {
			if err := bc.AddBlock(block); err != nil {
				t.Fatalf("AddBlock returned %v", err)
			}
		})
	}

	bcB := chain.New()
	peerB := NewPeer("127.0.0.1:0", "", bcB)
	if err := peerB.Start(ctx); err != nil {
		t.Fatalf("peerB.Start returned %v", err)
	}
	defer peerB.Stop()
	peerB.nodeAddress = peerB.listener.Addr().String()

	if err := peerB.ConnectToPeer(PeerInfo{Address: addrA}); err != nil {
		t.Fatalf("ConnectToPeer returned %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		var length int
		peerB.WithBlockchain(func(bc *chain.Blockchain) {
			length = len(bc.Blocks)
		})
		return length == 3
	})
}
