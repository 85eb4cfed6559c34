package cmd

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/spf13/cobra"
)

func newMerkleCmd() *cobra.Command {
	merkleCmd := &cobra.Command{
		Use:   "merkle",
		Short: "Compute merkle roots and proofs",
	}

	merkleRootCmd := &cobra.Command{
		Use:   "root tx...",
		Short: "Print the merkle root of the transactions.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := buildTree(args)
			if err != nil {
				return err
			}

			root, err := tree.Root()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, level := range tree.Levels() {
				fmt.Fprintf(out, "level %d: %v\n", i, level)
			}
			fmt.Fprintf(out, "rounds: %d\n", tree.Rounds())
			fmt.Fprintf(out, "root: %s\n", root)
			return nil
		},
	}

	var tx string
	proofCmd := &cobra.Command{
		Use:   "proof --tx tx tx...",
		Short: "Print the merkle proof of a transaction.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := buildTree(args)
			if err != nil {
				return err
			}

			root, err := tree.Root()
			if err != nil {
				return err
			}

			proof, order, err := tree.Proof(tx)
			if err != nil {
				return err
			}

			if err := merkle.VerifyProof(root, tx, proof, order); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "root: %s\n", root)
			for i := range proof {
				fmt.Fprintf(out, "proof %d: %s order[%d]\n", i, proof[i], order[i])
			}
			return nil
		},
	}
	proofCmd.Flags().StringVarP(&tx, "tx", "t", "", "Transaction to prove.")
	proofCmd.MarkFlagRequired("tx")

	merkleCmd.AddCommand(merkleRootCmd, proofCmd)
	return merkleCmd
}

func buildTree(txs []string) (*merkle.Tree, error) {
	tree := merkle.NewTree(txs)
	if err := tree.Build(); err != nil {
		return nil, err
	}
	return tree, nil
}
