package chain

import (
	"errors"
	"testing"
)

func TestNewBlockchainHasGenesis(t *testing.T) {
	bc := New()

	if len(bc.Blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(bc.Blocks))
	}
	if bc.CurrentDifficulty != 1 {
		t.Fatalf("current difficulty = %d, want 1", bc.CurrentDifficulty)
	}
	if got := bc.Branches["main"]; len(got) != 1 || got[0] != 0 {
		t.Fatalf("main branch = %v, want [0]", got)
	}
}

func TestAddBlock(t *testing.T) {
	bc := New()
	block := bc.CreateBlock("Once more unto the breach", "Alice", "main")
	block.Mine()

	if err := bc.AddBlock(block); err != nil {
		t.Fatalf("AddBlock returned %v", err)
	}
	if len(bc.Blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(bc.Blocks))
	}
	if got := bc.Branches["main"]; len(got) != 2 || got[1] != 1 {
		t.Fatalf("main branch = %v, want [0 1]", got)
	}
}

func TestAddBlockRejectsOutOfSequenceIndex(t *testing.T) {
	bc := New()
	block := bc.CreateBlock("c", "a", "main")
	block.Mine()
	block.Index = 5
	block.Hash = block.CalculateHash()

	err := bc.AddBlock(block)
	var seqErr *IndexOutOfSequenceError
	if !errors.As(err, &seqErr) {
		t.Fatalf("error = %v, want *IndexOutOfSequenceError", err)
	}
}

func TestIsValidChainDetectsTamper(t *testing.T) {
	bc := New()
	block := bc.CreateBlock("c", "a", "main")
	block.Mine()
	if err := bc.AddBlock(block); err != nil {
		t.Fatalf("AddBlock returned %v", err)
	}

	if !bc.IsValidChain() {
		t.Fatal("freshly built chain should be valid")
	}

	bc.Blocks[1].Data.Content = "tampered"
	if bc.IsValidChain() {
		t.Fatal("chain with tampered block should be invalid")
	}
}

func TestCreateBranchBlock(t *testing.T) {
	bc := New()

	branchBlock, err := bc.CreateBranchBlock("A dragon appears", "Bob", "Fantasy", "a fantastical detour", 0)
	if err != nil {
		t.Fatalf("CreateBranchBlock returned %v", err)
	}
	branchBlock.Mine()

	if err := bc.AddBlock(branchBlock); err != nil {
		t.Fatalf("AddBlock returned %v", err)
	}
	if branchBlock.Data.BranchID != "branch_fantasy" {
		t.Fatalf("branch id = %q, want branch_fantasy", branchBlock.Data.BranchID)
	}
	if got := bc.Branches["branch_fantasy"]; len(got) != 1 || got[0] != 1 {
		t.Fatalf("branch_fantasy branch = %v, want [1]", got)
	}
	if branchBlock.Difficulty != 2 {
		t.Fatalf("branch block difficulty = %d, want 2", branchBlock.Difficulty)
	}
}

func TestAddBlockRejectsUnknownBranch(t *testing.T) {
	bc := New()
	block := bc.CreateBlock("c", "a", "nonexistent")
	block.Mine()

	err := bc.AddBlock(block)
	if _, ok := err.(*BranchNotFoundError); !ok {
		t.Fatalf("error = %v, want *BranchNotFoundError", err)
	}
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	bc := New()
	block := bc.CreateBlock("c", "a", "main")
	block.Mine()
	if err := bc.AddBlock(block); err != nil {
		t.Fatalf("AddBlock returned %v", err)
	}

	clone := bc.Clone()

	extra := bc.CreateBlock("more", "a", "main")
	extra.Mine()
	if err := bc.AddBlock(extra); err != nil {
		t.Fatalf("AddBlock returned %v", err)
	}

	if len(clone.Blocks) != 2 {
		t.Fatalf("clone len(blocks) = %d, want 2 (should not see the post-clone append)", len(clone.Blocks))
	}
	if len(bc.Blocks) != 3 {
		t.Fatalf("original len(blocks) = %d, want 3", len(bc.Blocks))
	}

	clone.Branches["main"][0] = 99
	if bc.Branches["main"][0] == 99 {
		t.Fatal("mutating clone's branch index mutated the original")
	}
}

func TestRebuildBranchesIsIdempotent(t *testing.T) {
	bc := New()
	block := bc.CreateBlock("c", "a", "main")
	block.Mine()
	if err := bc.AddBlock(block); err != nil {
		t.Fatalf("AddBlock returned %v", err)
	}

	bc.RebuildBranches()
	first := bc.Branches["main"]
	bc.RebuildBranches()
	second := bc.Branches["main"]

	if len(first) != len(second) {
		t.Fatalf("rebuild not idempotent: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("rebuild not idempotent: %v vs %v", first, second)
		}
	}
}
