// Package p2p implements BlockBard's gossip layer: a TCP listener per
// node, a known-peers set, and the handful of request/broadcast
// operations that keep every node's chain.Blockchain converging on the
// longest valid chain.
package p2p

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/nac-codes/Block-Bard/internal/chain"
	"github.com/nac-codes/Block-Bard/internal/wire"
)

// PeerInfo identifies a gossip participant by address. IsTracker marks
// the well-known bootstrap peer a node was seeded with, if any.
type PeerInfo struct {
	Address   string `json:"address"`
	IsTracker bool   `json:"is_tracker"`
}

// Peer owns a node's listener, its view of the shared blockchain, and
// its known-peers set. All exported methods are safe for concurrent use.
type Peer struct {
	nodeAddress    string
	trackerAddress string

	chainMu    sync.Mutex
	blockchain *chain.Blockchain

	peersMu    sync.Mutex
	knownPeers map[string]PeerInfo

	listener net.Listener
}

// NewPeer constructs a Peer bound to nodeAddress (a "host:port" string;
// host may be empty/0.0.0.0 to listen on all interfaces), sharing bc.
// trackerAddress may be empty.
func NewPeer(nodeAddress, trackerAddress string, bc *chain.Blockchain) *Peer {
	return &Peer{
		nodeAddress:    nodeAddress,
		trackerAddress: trackerAddress,
		blockchain:     bc,
		knownPeers:     make(map[string]PeerInfo),
	}
}

// WithBlockchain calls fn with the shared chain, holding p's chain mutex
// for the duration of fn.
func (p *Peer) WithBlockchain(fn func(bc *chain.Blockchain)) {
	p.chainMu.Lock()
	defer p.chainMu.Unlock()
	fn(p.blockchain)
}

// Start binds the listener, spawns the accept loop, and — if a tracker
// address was configured — registers with it and requests its chain and
// its peer list. Without a tracker it returns once listening has begun;
// with one it first dials the tracker, sends the requests and waits one
// second for the initial sync. The accept loop and the reply handlers
// keep running in background goroutines.
func (p *Peer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", p.nodeAddress)
	if err != nil {
		return fmt.Errorf("p2p: listen on %s: %w", p.nodeAddress, err)
	}
	p.listener = listener

	log.Printf("📡 Listening for peers on %s", listener.Addr())

	go p.acceptLoop(ctx)

	if p.trackerAddress != "" {
		tracker := PeerInfo{Address: p.trackerAddress, IsTracker: true}
		if err := p.ConnectToPeer(tracker); err != nil {
			log.Printf("⚠️  Could not reach tracker %s: %v", p.trackerAddress, err)
		} else {
			p.RequestPeers()
			time.Sleep(time.Second)
		}
	}

	return nil
}

// Stop closes the listener, unblocking acceptLoop.
func (p *Peer) Stop() error {
	if p.listener == nil {
		return nil
	}
	return p.listener.Close()
}

func (p *Peer) acceptLoop(ctx context.Context) {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("⚠️  Accept failed: %v", err)
			return
		}
		go p.handleConnection(conn)
	}
}

// advertisedAddress picks the address this node should hand out to
// identify itself to remote, the peer at the other end of a connection
// we just dialed. It's a LAN-only heuristic: if nodeAddress has a
// concrete (non-wildcard) host, use it; else fall back to
// BLOCKBARD_PUBLIC_IP; else fall back to remote's own IP (the host we
// dialed), paired with our listen port.
func (p *Peer) advertisedAddress(remote net.Addr) string {
	host, port, err := net.SplitHostPort(p.nodeAddress)
	if err == nil && host != "" && host != "0.0.0.0" && host != "::" {
		return net.JoinHostPort(host, port)
	}

	if publicIP := os.Getenv("BLOCKBARD_PUBLIC_IP"); publicIP != "" {
		return net.JoinHostPort(publicIP, port)
	}

	if tcpAddr, ok := remote.(*net.TCPAddr); ok {
		return net.JoinHostPort(tcpAddr.IP.String(), port)
	}

	return p.nodeAddress
}

// ConnectToPeer dials info, registers it as known, sends our own
// identity, and requests its current chain. It is a no-op if info is
// already known or is this node's own address.
func (p *Peer) ConnectToPeer(info PeerInfo) error {
	if p.isSelfAddress(info.Address) {
		return nil
	}

	p.peersMu.Lock()
	if _, known := p.knownPeers[info.Address]; known {
		p.peersMu.Unlock()
		return nil
	}
	p.knownPeers[info.Address] = info
	p.peersMu.Unlock()

	conn, err := net.DialTimeout("tcp", info.Address, 5*time.Second)
	if err != nil {
		return fmt.Errorf("p2p: dial %s: %w", info.Address, err)
	}
	defer conn.Close()

	self := PeerInfo{Address: p.advertisedAddress(conn.RemoteAddr())}
	msg, err := wire.NewMessage(wire.MessageTypeNewPeer, self)
	if err != nil {
		return err
	}
	if err := wire.Send(conn, msg); err != nil {
		return fmt.Errorf("p2p: send NewPeer to %s: %w", info.Address, err)
	}

	log.Printf("🤝 Connected to peer %s", info.Address)

	go p.requestBlocksFrom(info.Address)

	return nil
}

// BroadcastBlock sends block to every known peer over a fresh
// connection, pacing sends so a burst of peers doesn't saturate the
// local socket table. Failures are logged and otherwise ignored: a
// peer that's down now will catch up on its next GetBlocks round trip.
func (p *Peer) BroadcastBlock(block *chain.Block) {
	msg, err := wire.NewMessage(wire.MessageTypeNewBlock, block)
	if err != nil {
		log.Printf("⚠️  Could not encode block for broadcast: %v", err)
		return
	}

	for _, info := range p.snapshotPeers() {
		if p.isSelfAddress(info.Address) {
			continue
		}
		if err := p.sendOneShot(info.Address, msg); err != nil {
			log.Printf("⚠️  Broadcast to %s failed: %v", info.Address, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// RequestPeers asks the tracker (if any) for its known-peers set. The
// connection is handed to a background connection handler, which merges
// the tracker's Peers reply into the known-peers set.
func (p *Peer) RequestPeers() {
	if p.trackerAddress == "" {
		return
	}
	msg := wire.EmptyMessage(wire.MessageTypeGetPeers)

	conn, err := net.DialTimeout("tcp", p.trackerAddress, 5*time.Second)
	if err != nil {
		log.Printf("⚠️  GetPeers to tracker failed: %v", err)
		return
	}
	if err := wire.Send(conn, msg); err != nil {
		conn.Close()
		log.Printf("⚠️  GetPeers to tracker failed: %v", err)
		return
	}

	go p.handleConnection(conn)
}

func (p *Peer) requestBlocksFrom(address string) {
	msg := wire.EmptyMessage(wire.MessageTypeGetBlocks)

	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		log.Printf("⚠️  GetBlocks dial to %s failed: %v", address, err)
		return
	}
	if err := wire.Send(conn, msg); err != nil {
		conn.Close()
		log.Printf("⚠️  GetBlocks send to %s failed: %v", address, err)
		return
	}

	p.handleConnection(conn)
}

// sendOneShot dials address, sends msg, and closes the connection without
// reading any reply. Callers that want the response (RequestPeers,
// requestBlocksFrom) keep the connection open and hand it to
// handleConnection instead.
func (p *Peer) sendOneShot(address string, msg wire.Message) error {
	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	return wire.Send(conn, msg)
}

// Peers returns a snapshot of this node's known-peers set.
func (p *Peer) Peers() []PeerInfo {
	return p.snapshotPeers()
}

func (p *Peer) snapshotPeers() []PeerInfo {
	p.peersMu.Lock()
	defer p.peersMu.Unlock()

	peers := make([]PeerInfo, 0, len(p.knownPeers))
	for _, info := range p.knownPeers {
		peers = append(peers, info)
	}
	return peers
}

func (p *Peer) addKnownPeer(info PeerInfo) {
	if p.isSelfAddress(info.Address) {
		return
	}
	p.peersMu.Lock()
	defer p.peersMu.Unlock()
	p.knownPeers[info.Address] = info
}

func (p *Peer) mergeKnownPeers(infos []PeerInfo) {
	p.peersMu.Lock()
	defer p.peersMu.Unlock()
	for _, info := range infos {
		if p.isSelfAddress(info.Address) {
			continue
		}
		p.knownPeers[info.Address] = info
	}
}

// isSelfAddress reports whether addr names this node. It compares against
// the exact listen address and, for a wildcard bind, the concrete address
// this node would itself advertise via BLOCKBARD_PUBLIC_IP — never a bare
// port suffix, which would wrongly treat any other host sharing this
// node's port as self and silently drop legitimate peers on a same-port
// multi-host LAN.
func (p *Peer) isSelfAddress(addr string) bool {
	if addr == p.nodeAddress {
		return true
	}

	host, port, err := net.SplitHostPort(p.nodeAddress)
	if err != nil || (host != "" && host != "0.0.0.0" && host != "::") {
		return false
	}

	publicIP := os.Getenv("BLOCKBARD_PUBLIC_IP")
	if publicIP == "" {
		return false
	}
	return addr == net.JoinHostPort(publicIP, port)
}
