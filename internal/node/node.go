// Package node wires together chain, mining, p2p, and storage into the
// long-running process a BlockBard node actually runs: a mining loop, a
// periodic save loop, and graceful shutdown on SIGINT/SIGTERM.
package node

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nac-codes/Block-Bard/internal/api"
	"github.com/nac-codes/Block-Bard/internal/chain"
	"github.com/nac-codes/Block-Bard/internal/config"
	"github.com/nac-codes/Block-Bard/internal/mining"
	"github.com/nac-codes/Block-Bard/internal/p2p"
	"github.com/nac-codes/Block-Bard/internal/storage"
)

const (
	saveInterval   = 30 * time.Second
	mineInterval   = 5 * time.Second
	mineTimeout    = 60 * time.Second
	shutdownWindow = 5 * time.Second
)

// Node is a running BlockBard peer: it owns the shared chain, the
// gossip layer, and the background loops that mine new blocks and
// persist the chain to disk.
type Node struct {
	id      string
	cfg     config.Config
	storage *storage.ChainStorage
	peer    *p2p.Peer
}

// New constructs a Node listening on listenAddr (a "host:port" string),
// optionally seeded from trackerAddr, identified in mined block content
// by id.
func New(id, listenAddr, trackerAddr string, cfg config.Config) (*Node, error) {
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	bc, err := store.Load()
	if err != nil {
		return nil, err
	}

	peer := p2p.NewPeer(listenAddr, trackerAddr, bc)

	return &Node{
		id:      id,
		cfg:     cfg,
		storage: store,
		peer:    peer,
	}, nil
}

// Run starts the node and blocks until ctx is cancelled, a SIGINT/SIGTERM
// is received, or one of its background loops returns an error (which
// stops the others), then shuts down gracefully, saving the chain one
// last time before returning.
func (n *Node) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := n.peer.Start(ctx); err != nil {
		return fmt.Errorf("node: start peer: %w", err)
	}
	defer n.peer.Stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return n.saveLoop(groupCtx) })
	group.Go(func() error { return n.mineLoop(groupCtx) })
	if n.cfg.StatusAddr != "" {
		statusServer := api.New(n.cfg.StatusAddr, n.id, n.peer)
		group.Go(func() error { return statusServer.Start(groupCtx) })
	}

	err := group.Wait()
	if err != nil && ctx.Err() == nil {
		log.Printf("⚠️  Node loop exited with error: %v", err)
	}

	n.finalSave()
	return nil
}

func (n *Node) saveLoop(ctx context.Context) error {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var snapshot *chain.Blockchain
			n.peer.WithBlockchain(func(bc *chain.Blockchain) {
				snapshot = bc.Clone()
			})
			if err := n.storage.Save(snapshot); err != nil {
				log.Printf("⚠️  Periodic save failed: %v", err)
			}
		}
	}
}

func (n *Node) mineLoop(ctx context.Context) error {
	blocksMined := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var candidate *chain.Block
		n.peer.WithBlockchain(func(bc *chain.Blockchain) {
			content := fmt.Sprintf("This is block #%d on BlockBard, mined by node %s", bc.GetLatestBlock().Index+1, n.id)
			candidate = bc.CreateBlock(content, "Node-"+n.id, "main")
		})

		mineCtx, cancel := context.WithTimeout(ctx, mineTimeout)
		mined, err := mining.Mine(mineCtx, candidate)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("⛏️  Mining attempt timed out before finding a valid nonce")
		} else {
			var addErr error
			n.peer.WithBlockchain(func(bc *chain.Blockchain) {
				addErr = bc.AddBlock(mined)
			})
			if addErr != nil {
				log.Printf("⚠️  Mined block rejected locally: %v", addErr)
			} else {
				blocksMined++
				log.Printf("🎉 Block #%d successfully mined (total mined this session: %d)", mined.Index, blocksMined)
				n.peer.BroadcastBlock(mined)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(mineInterval):
		}
	}
}

func (n *Node) finalSave() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWindow)
	defer cancel()

	done := make(chan struct{})
	go func() {
		var snapshot *chain.Blockchain
		n.peer.WithBlockchain(func(bc *chain.Blockchain) {
			snapshot = bc.Clone()
		})
		if err := n.storage.Save(snapshot); err != nil {
			log.Printf("⚠️  Final save failed: %v", err)
		} else {
			log.Printf("💾 Chain saved before exit")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("⚠️  Final save did not complete within the shutdown window")
	}
}
