package ingest

import (
	"encoding/base64"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/decoder"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// swapLogMarkers are log-string heuristics: any log line containing
// one of these (case-insensitive) is sufficient, on its own, to
// classify a transaction as a swap.
var swapLogMarkers = []string{
	"swapexecuted",
	"instruction: swap",
}

// SwapInstructionNames are additional known swap instruction names
// whose log line ("Instruction: <Name>") also counts as a swap
// marker, and whose discriminator is checked during the instruction
// scan below. Operators extend this for programs with differently
// named swap entry points.
var SwapInstructionNames = []string{"swap", "swapExactIn", "swapExactOut"}

// isSwap classifies a transaction as a swap when either a log-message
// heuristic or an instruction-discriminator scan says so.
func isSwap(tx *domain.Transaction, programID domain.PubKey) bool {
	if logHeuristicSaysSwap(tx.LogMessages) {
		return true
	}
	return instructionScanSaysSwap(tx, programID)
}

func logHeuristicSaysSwap(logs []string) bool {
	for _, line := range logs {
		l := strings.ToLower(line)
		for _, marker := range swapLogMarkers {
			if strings.Contains(l, marker) {
				return true
			}
		}
		for _, name := range SwapInstructionNames {
			if strings.Contains(l, strings.ToLower("instruction: "+name)) {
				return true
			}
		}
	}
	return false
}

func instructionScanSaysSwap(tx *domain.Transaction, programID domain.PubKey) bool {
	discs := swapDiscriminators()
	for _, ix := range tx.Instructions {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(tx.AccountKeys) {
			continue
		}
		if tx.AccountKeys[ix.ProgramIDIndex] != programID {
			continue
		}
		data := decodeInstructionData(ix.Data)
		if len(data) < 8 {
			continue
		}
		var first8 [8]byte
		copy(first8[:], data[:8])
		if _, ok := discs[first8]; ok {
			return true
		}
	}
	return false
}

func swapDiscriminators() map[[8]byte]struct{} {
	out := make(map[[8]byte]struct{}, len(SwapInstructionNames))
	for _, name := range SwapInstructionNames {
		out[decoder.Discriminator(name)] = struct{}{}
	}
	return out
}

// decodeInstructionData tries base58 first, then base64, since the
// encoding isn't reliably tagged by every RPC response shape.
func decodeInstructionData(s string) []byte {
	if s == "" {
		return nil
	}
	if raw, err := base58.Decode(s); err == nil {
		return raw
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw
	}
	return nil
}
