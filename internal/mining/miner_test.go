package mining

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nac-codes/Block-Bard/internal/chain"
)

func TestMineSatisfiesDifficulty(t *testing.T) {
	block := chain.NewBlock(1, chain.Genesis().Hash, chain.BlockData{
		Content: "c", Author: "a", BranchID: "main",
	}, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mined, err := Mine(ctx, block)
	if err != nil {
		t.Fatalf("Mine returned %v", err)
	}
	if !strings.HasPrefix(mined.Hash, "00") {
		t.Fatalf("mined hash = %s, want prefix 00", mined.Hash)
	}
	if !mined.IsValid() {
		t.Fatal("mined block should be valid")
	}
}

func TestMineRespectsCancellation(t *testing.T) {
	block := chain.NewBlock(1, chain.Genesis().Hash, chain.BlockData{
		Content: "c", Author: "a", BranchID: "main",
	}, 64) // unreasonably high difficulty, won't be found before cancellation

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Mine(ctx, block)
	if err == nil {
		t.Fatal("expected Mine to return an error after cancellation")
	}
}
