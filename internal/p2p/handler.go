package p2p

import (
	"errors"
	"io"
	"log"
	"net"

	"github.com/nac-codes/Block-Bard/internal/chain"
	"github.com/nac-codes/Block-Bard/internal/wire"
)

// handleConnection services one peer connection until it's closed,
// dispatching each incoming message by its MessageType. A connection
// ending mid-read is treated as an orderly disconnect, not an error.
func (p *Peer) handleConnection(conn net.Conn) {
	defer conn.Close()

	for {
		msg, err := wire.Receive(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			log.Printf("⚠️  Receive from %s failed: %v", conn.RemoteAddr(), err)
			return
		}

		if err := p.dispatch(conn, msg); err != nil {
			log.Printf("⚠️  Handling %s from %s failed: %v", msg.MessageType, conn.RemoteAddr(), err)
		}
	}
}

func (p *Peer) dispatch(conn net.Conn, msg wire.Message) error {
	switch msg.MessageType {
	case wire.MessageTypeNewBlock:
		return p.handleNewBlock(msg)
	case wire.MessageTypeGetBlocks:
		return p.handleGetBlocks(conn)
	case wire.MessageTypeBlocks:
		return p.handleBlocks(msg)
	case wire.MessageTypeNewPeer:
		return p.handleNewPeer(msg)
	case wire.MessageTypeGetPeers:
		return p.handleGetPeers(conn)
	case wire.MessageTypePeers:
		return p.handlePeers(msg)
	default:
		log.Printf("⚠️  Unknown message type %s from %s", msg.MessageType, conn.RemoteAddr())
		return nil
	}
}

func (p *Peer) handleNewBlock(msg wire.Message) error {
	var block chain.Block
	if err := msg.Decode(&block); err != nil {
		return err
	}

	var addErr error
	p.WithBlockchain(func(bc *chain.Blockchain) {
		addErr = bc.AddBlock(&block)
	})
	if addErr != nil {
		log.Printf("⚠️  Rejected block #%d: %v", block.Index, addErr)
		return nil
	}

	log.Printf("📖 Accepted block #%d from the network", block.Index)
	return nil
}

func (p *Peer) handleGetBlocks(conn net.Conn) error {
	var blocks []*chain.Block
	p.WithBlockchain(func(bc *chain.Blockchain) {
		blocks = bc.Blocks
	})

	reply, err := wire.NewMessage(wire.MessageTypeBlocks, blocks)
	if err != nil {
		return err
	}
	return wire.Send(conn, reply)
}

// handleBlocks replaces the local chain if the incoming chain is both
// longer and fully valid. Difficulty parameters are deliberately kept
// from the local chain rather than taken from the peer's: a malicious or
// out-of-date peer should not be able to push its own retargeting state
// onto this node.
func (p *Peer) handleBlocks(msg wire.Message) error {
	var blocks []*chain.Block
	if err := msg.Decode(&blocks); err != nil {
		return err
	}
	if len(blocks) == 0 {
		return nil
	}

	candidate := &chain.Blockchain{Blocks: blocks}

	var replaced bool
	p.WithBlockchain(func(bc *chain.Blockchain) {
		if len(blocks) <= len(bc.Blocks) {
			return
		}
		if !candidate.IsValidChain() {
			return
		}
		bc.ReplaceBlocks(blocks)
		replaced = true
	})

	if replaced {
		log.Printf("🔀 Replaced local chain with a longer valid chain (%d blocks)", len(blocks))
	}
	return nil
}

func (p *Peer) handleNewPeer(msg wire.Message) error {
	var info PeerInfo
	if err := msg.Decode(&info); err != nil {
		return err
	}
	p.addKnownPeer(info)
	log.Printf("👋 Learned about peer %s", info.Address)
	return nil
}

func (p *Peer) handleGetPeers(conn net.Conn) error {
	reply, err := wire.NewMessage(wire.MessageTypePeers, p.snapshotPeers())
	if err != nil {
		return err
	}
	return wire.Send(conn, reply)
}

func (p *Peer) handlePeers(msg wire.Message) error {
	var infos []PeerInfo
	if err := msg.Decode(&infos); err != nil {
		return err
	}
	p.mergeKnownPeers(infos)
	return nil
}
