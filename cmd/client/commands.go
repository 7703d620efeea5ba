package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream committed transactions as JSON lines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for {
			select {
			case ev := <-c.Events():
				if err := enc.Encode(ev); err != nil {
					return err
				}
			case <-c.Err():
				return nil
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the factory configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		cfg, err := c.Config(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin:        %s\npool code id: %d\n", cfg.Admin, cfg.PoolCodeID)
		return nil
	},
}

var poolsLimit uint32

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List resolved pools in id order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tADDRESS")
		var startAfter *uint64
		for {
			page, err := c.Pools(cmd.Context(), startAfter, &poolsLimit)
			if err != nil {
				return err
			}
			if len(page) == 0 {
				break
			}
			for _, p := range page {
				fmt.Fprintf(w, "%d\t%s\n", p.PoolID, p.PoolAddr)
			}
			last := page[len(page)-1].PoolID
			startAfter = &last
		}
		return w.Flush()
	},
}

var createPoolAdmin string

var createPoolCmd = &cobra.Command{
	Use:   "create-pool <title>",
	Short: "Spawn a pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		id, addr, err := c.CreatePool(cmd.Context(), createPoolAdmin, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pool %d at %s\n", id, addr.Hex())
		return nil
	},
}

var redirectCmd = &cobra.Command{
	Use:   "redirect <pool-id> <coins>",
	Short: "Forward coins (e.g. 100token,2atom) to a pool by id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("pool id %q: %w", args[0], err)
		}
		coins, err := engine.ParseCoins(args[1])
		if err != nil {
			return err
		}
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		res, err := c.RedirectFunds(cmd.Context(), id, coins)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "redirected %s to pool %d at height %d\n", coins, id, res.Height)
		return nil
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <pool-address> <recipient>",
	Short: "Release a pool's whole balance (pool admin only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) || !common.IsHexAddress(args[1]) {
			return fmt.Errorf("withdraw needs a pool address and a recipient address")
		}
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		res, err := c.WithdrawFunds(cmd.Context(), common.HexToAddress(args[0]), common.HexToAddress(args[1]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "withdrawn at height %d\n", res.Height)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show an account balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("%q is not an address", args[0])
		}
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		coins, err := c.Balance(cmd.Context(), common.HexToAddress(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), coins.String())
		return nil
	},
}

func init() {
	poolsCmd.Flags().Uint32Var(&poolsLimit, "page-size", 30, "Pools fetched per request")
	createPoolCmd.Flags().StringVar(&createPoolAdmin, "admin", "", "Pool admin (defaults to the factory admin)")
	rootCmd.AddCommand(watchCmd, configCmd, poolsCmd, createPoolCmd, redirectCmd, withdrawCmd, balanceCmd)
}
