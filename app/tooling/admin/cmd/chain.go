package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/business/sys/store"
	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
	"github.com/spf13/cobra"
)

func newChainCmd() *cobra.Command {
	var (
		path          string
		verify        bool
		maxDifficulty uint
		targetName    string
	)

	chainCmd := &cobra.Command{
		Use:   "chain",
		Short: "Print the chain document written by a node.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var chain []ledger.Record
			if err := store.ReadChain(path, &chain); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, rec := range chain {
				fmt.Fprintf(out, "BLOCK %d: %s owner[%s] difficulty[%d] nonce[%d] txs[%d]\n",
					rec.Block.Index(), hashing.Encode(rec.Hash), rec.Block.Owner(), rec.Difficulty, rec.Block.Proof(), len(rec.Block.Transactions()))
			}
			fmt.Fprintf(out, "length: %d\n", len(chain))

			if verify {
				target, err := pow.ParseTarget(targetName)
				if err != nil {
					return err
				}

				if err := ledger.ValidateChain(chain, maxDifficulty, target); err != nil {
					return err
				}
				fmt.Fprintln(out, "chain is valid")
			}

			return nil
		},
	}

	chainCmd.Flags().StringVarP(&path, "path", "p", "zblock/chain.json", "Path to the chain document.")
	chainCmd.Flags().BoolVar(&verify, "verify", false, "Validate every block of the chain.")
	chainCmd.Flags().UintVar(&maxDifficulty, "max-difficulty", 24, "Difficulty cap the node mined with.")
	chainCmd.Flags().StringVar(&targetName, "target", "bits", "Target rule the node mined with, bits or bytes.")

	return chainCmd
}

func newStatusCmd() *cobra.Command {
	var url string

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status of a running node.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/v1/node/status", nil)
			if err != nil {
				return err
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("node returned %s", resp.Status)
			}

			var status map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return err
			}

			data, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	statusCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")

	return statusCmd
}
