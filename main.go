// ════════════════════════════════════════════════════════════════════════════════════════════════
// Cuckatoo Miner - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Command Tree & System Orchestration
//
// Description:
//   mine   runs the stratum session and the mining loop until interrupted.
//   solve  runs one attempt for a header and nonce and prints the cycle, if any.
//   verify checks a 42-edge solution against a header and nonce.
//   shares lists the solutions recorded in the ledger for one job.
//
// Architecture:
//   - Phase 1: Load configuration and open the bitmap file and ledger
//   - Phase 2: Stratum session and mining loop run side by side under one errgroup
//   - Phase 3: SIGINT/SIGTERM cancels both and sets the global shutdown flag
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"miner/bitmap"
	"miner/config"
	"miner/constants"
	"miner/control"
	"miner/debug"
	"miner/graph"
	"miner/miner"
	"miner/sharelog"
	"miner/solver"
	"miner/stratum"
	"miner/trimmer"
	"miner/types"
	"miner/utils"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// COMMAND TREE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

var (
	configPath string
	legacyPath string
	headerHex  string
	nonce      uint64
	profile    string
	powList    string
	bitmapPath string
	dbPath     string
	jobID      uint64

	rootCmd = &cobra.Command{
		Use:           "miner",
		Short:         "Cuckatoo proof-of-work miner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	mineCmd = &cobra.Command{
		Use:   "mine",
		Short: "Connect to the stratum pool and mine until interrupted",
		RunE:  runMine,
	}

	solveCmd = &cobra.Command{
		Use:   "solve",
		Short: "Run one solve attempt for a header and nonce",
		RunE:  runSolve,
	}

	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Check a 42-cycle solution for a header and nonce",
		RunE:  runVerify,
	}

	sharesCmd = &cobra.Command{
		Use:   "shares",
		Short: "List solutions recorded for a job",
		RunE:  runShares,
	}
)

func init() {
	mineCmd.Flags().StringVar(&configPath, "config", constants.ConfigFile, "YAML configuration file")
	mineCmd.Flags().StringVar(&legacyPath, "legacy", "", "two-line stratum settings file (overrides --config)")

	for _, c := range []*cobra.Command{solveCmd, verifyCmd} {
		c.Flags().StringVar(&headerHex, "header", "", "pre-proof-of-work header as hex")
		c.Flags().Uint64Var(&nonce, "nonce", 0, "nonce")
		c.Flags().StringVar(&profile, "profile", graph.Cuckatoo18.Name, "graph profile (cuckatoo18 | cuckatoo31)")
		c.MarkFlagRequired("header")
	}
	solveCmd.Flags().StringVar(&bitmapPath, "bitmap", constants.EdgesBitmapFile, "edge bitmap file for cuckatoo31")
	verifyCmd.Flags().StringVar(&powList, "pow", "", "comma-separated edge indices")
	verifyCmd.MarkFlagRequired("pow")

	sharesCmd.Flags().StringVar(&dbPath, "db", constants.DatabaseFile, "solution ledger")
	sharesCmd.Flags().Uint64Var(&jobID, "job", 0, "job id")

	rootCmd.AddCommand(mineCmd, solveCmd, verifyCmd, sharesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		debug.DropError("FATAL", err)
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MINE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func runMine(cmd *cobra.Command, _ []string) error {
	// PHASE 1: configuration and storage
	debug.DropMessage("INIT", "Loading configuration")
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params := cfg.Params()
	debug.DropMessage("INIT", "Pool "+cfg.Stratum.Address+", graph "+params.Name+", "+utils.Itoa(params.TrimmingRounds)+" trimming rounds")

	store, err := bitmap.OpenFile(cfg.Storage.BitmapPath, params)
	if err != nil {
		return err
	}
	defer store.Close()

	ledger, err := sharelog.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	s := solver.New(params, cfg.TrimScratch(), store)
	s.TrimProgress = miner.LogProgress("TRIM", "Trimming")
	s.SearchProgress = miner.LogProgress("SEARCH", "Searching")

	// PHASE 2: session and loop
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		debug.DropMessage("SIGNAL", "Shutting down")
		control.Shutdown()
	}()

	var slot control.JobSlot
	client := stratum.New(cfg.Stratum.Address, cfg.Stratum.Username, params.EdgeBits, &slot, stratum.Options{})
	m := miner.New(&slot, s, client, ledger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error { return m.Run(gctx) })

	err = g.Wait()

	// PHASE 3: report
	if total, found, cerr := ledger.Attempts(); cerr == nil {
		debug.DropMessage("SUMMARY", utils.Itoa(total)+" attempts, "+utils.Itoa(found)+" solutions")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func loadConfig() (config.Config, error) {
	if legacyPath != "" {
		return config.LoadLegacy(legacyPath)
	}
	return config.Load(configPath)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SOLVE / VERIFY
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func runSolve(cmd *cobra.Command, _ []string) error {
	header, params, err := headerAndProfile()
	if err != nil {
		return err
	}

	var store bitmap.Store
	if params.BitmapBytes() <= constants.Cuckatoo18LocalRAMSize {
		store = bitmap.NewMemStore(params.BitmapBytes())
	} else {
		f, err := bitmap.OpenFile(bitmapPath, params)
		if err != nil {
			return err
		}
		defer f.Close()
		store = f
	}

	s := solver.New(params, trimmer.DefaultScratch(params), store)
	s.TrimProgress = miner.LogProgress("TRIM", "Trimming")
	sol, ok, err := s.Solve(&header, nonce)
	if err != nil {
		return err
	}
	debug.DropMessage("SEARCH", utils.Itoa(s.SearchedEdges())+" edges searched")
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "no solution")
		return nil
	}
	fmt.Fprintln(out, formatPow(sol[:]))
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	header, params, err := headerAndProfile()
	if err != nil {
		return err
	}
	pow, err := parsePow(powList)
	if err != nil {
		return err
	}
	if err := solver.Verify(&header, nonce, params, pow); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return nil
}

func runShares(cmd *cobra.Command, _ []string) error {
	ledger, err := sharelog.Open(dbPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	shares, err := ledger.Solutions(jobID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, sh := range shares {
		fmt.Fprintln(out, utils.Utoa(sh.Height), utils.Utoa(sh.Nonce), formatPow(sh.Solution[:]))
	}
	return nil
}

func headerAndProfile() (types.Header, graph.Params, error) {
	var h types.Header
	p, ok := graph.Profile(profile)
	if !ok {
		return h, p, fmt.Errorf("%w: %q", config.ErrUnknownProfile, profile)
	}
	if !utils.DecodeLowerHex(h[:], []byte(strings.ToLower(headerHex))) {
		return h, p, fmt.Errorf("header must be %d hex characters", 2*constants.HeaderSize)
	}
	return h, p, nil
}

func formatPow(pow []uint32) string {
	parts := make([]string, len(pow))
	for i, e := range pow {
		parts[i] = utils.Utoa(uint64(e))
	}
	return strings.Join(parts, ",")
}

func parsePow(s string) ([]uint32, error) {
	fields := strings.Split(s, ",")
	pow := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("pow: %w", err)
		}
		pow = append(pow, uint32(v))
	}
	return pow, nil
}
