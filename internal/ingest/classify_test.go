package ingest

import (
	"testing"

	"github.com/mr-tron/base58"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/decoder"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

func TestIsSwapByLogHeuristic(t *testing.T) {
	tx := &domain.Transaction{LogMessages: []string{"Program log: Instruction: Swap", "Program log: SwapExecuted"}}
	if !isSwap(tx, "program1") {
		t.Fatal("expected log heuristic to classify as swap")
	}
}

func TestIsSwapByInstructionDiscriminator(t *testing.T) {
	disc := decoder.Discriminator("swap")
	data := base58.Encode(disc[:])
	tx := &domain.Transaction{
		AccountKeys: []domain.PubKey{"program1"},
		Instructions: []domain.CompiledInstruction{
			{ProgramIDIndex: 0, Data: data},
		},
	}
	if !isSwap(tx, "program1") {
		t.Fatal("expected instruction-discriminator scan to classify as swap")
	}
}

func TestIsSwapFalseForUnrelatedTransaction(t *testing.T) {
	tx := &domain.Transaction{
		LogMessages: []string{"Program log: Instruction: Transfer"},
		AccountKeys: []domain.PubKey{"program1"},
		Instructions: []domain.CompiledInstruction{
			{ProgramIDIndex: 0, Data: "notaswap"},
		},
	}
	if isSwap(tx, "program1") {
		t.Fatal("expected non-swap transaction to not classify as a swap")
	}
}

func TestIsSwapIgnoresInstructionsFromOtherPrograms(t *testing.T) {
	disc := decoder.Discriminator("swap")
	data := base58.Encode(disc[:])
	tx := &domain.Transaction{
		AccountKeys: []domain.PubKey{"other-program"},
		Instructions: []domain.CompiledInstruction{
			{ProgramIDIndex: 0, Data: data},
		},
	}
	if isSwap(tx, "program1") {
		t.Fatal("expected a matching discriminator from a different program to be ignored")
	}
}
