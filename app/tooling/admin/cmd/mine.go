package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/block"
	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
	"github.com/spf13/cobra"
)

func newMineCmd() *cobra.Command {
	var (
		owner       string
		index       uint64
		timestamp   int64
		difficulty  uint
		bytesTarget bool
		maxAttempts uint64
		timeout     time.Duration
	)

	mineCmd := &cobra.Command{
		Use:   "mine tx...",
		Short: "Solve the proof of work for a block outside of a node.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if timestamp == 0 {
				timestamp = time.Now().UTC().Unix()
			}

			b, err := block.New(index, owner, timestamp, args, 0, hashing.Hash{})
			if err != nil {
				return err
			}

			target := pow.BitTarget
			if bytesTarget {
				target = pow.ByteTarget
			}

			p, err := pow.New(b, difficulty, pow.WithTarget(target), pow.WithMaxAttempts(maxAttempts))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			sol, err := p.Solve(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "input: %s\n", p.Input(sol.Nonce))
			fmt.Fprintf(out, "nonce: %d\n", sol.Nonce)
			fmt.Fprintf(out, "hash: %s\n", sol.Hash)
			fmt.Fprintf(out, "attempts: %d\n", sol.Attempts)
			fmt.Fprintf(out, "elapsed: %s\n", time.Since(start))
			return nil
		},
	}

	mineCmd.Flags().StringVarP(&owner, "owner", "o", "miner1", "Owner of the block.")
	mineCmd.Flags().Uint64VarP(&index, "index", "i", 1, "Index of the block.")
	mineCmd.Flags().Int64Var(&timestamp, "timestamp", 0, "Timestamp of the block, now when zero.")
	mineCmd.Flags().UintVarP(&difficulty, "difficulty", "d", 8, "Leading zero bits required.")
	mineCmd.Flags().BoolVar(&bytesTarget, "bytes", false, "Require difficulty/8 whole zero bytes instead of bits.")
	mineCmd.Flags().Uint64Var(&maxAttempts, "max-attempts", pow.DefaultMaxAttempts, "Maximum nonces to try.")
	mineCmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop searching after this long.")

	return mineCmd
}
