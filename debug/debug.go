// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Operator-facing log lines (alloc-light)
//
// Purpose:
//   - Reports job changes, trimming/search progress, solutions and I/O failures.
//   - Used only in cold paths: between attempts, on progress changes, on errors.
//
// Notes:
//   - Avoids fmt.Sprintf; one write(2) per line.
//
// ⚠️ Never invoke from the trim or search inner loops.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "miner/utils"

// DropError logs prefix and err as a single line. A nil err logs the bare
// prefix, which is how tagged warnings without a cause are emitted.
//
//go:nosplit
//go:inline
//go:registerparams
func DropError(prefix string, err error) {
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
		return
	}
	utils.PrintWarning(prefix + "\n")
}

// DropMessage logs a tagged informational line.
//
//go:nosplit
//go:inline
//go:registerparams
func DropMessage(prefix, message string) {
	utils.PrintWarning(prefix + ": " + message + "\n")
}
