package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marwen-abid/stellar-payments-go/client"
)

func newAssetCmd(a *app) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Define, trust and issue custom assets",
	}
	assetCmd.AddCommand(newAssetCreateCmd(a), newAssetTrustCmd(a), newAssetIssueCmd(a))
	return assetCmd
}

func newAssetCreateCmd(a *app) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Define an asset issued by the active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			issuer, err := a.activePublicKey(ctx, nil)
			if err != nil {
				return err
			}
			info, err := a.client.CreateAsset(ctx, code, issuer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Asset %s:%s (%s)\n", info.AssetCode, info.Issuer, info.AssetType)
			fmt.Fprintln(cmd.OutOrStdout(), "Holders must trust it before it can be issued to them.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&code, "code", "c", "", "asset code (1-12 alphanumeric characters)")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newAssetTrustCmd(a *app) *cobra.Command {
	var params client.TrustParams

	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Add a trustline from the active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			secret, err := a.activeSecret(ctx)
			if err != nil {
				return err
			}
			params.SecretKey = secret
			result, err := a.client.TrustAsset(ctx, params)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), "Trustline established", result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&params.AssetCode, "code", "c", "", "asset code")
	cmd.Flags().StringVar(&params.IssuerPublicKey, "issuer", "", "issuer public key")
	cmd.Flags().StringVar(&params.Limit, "limit", "", "trustline limit (default: maximum)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("issuer")
	return cmd
}

func newAssetIssueCmd(a *app) *cobra.Command {
	var params client.IssueParams

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an asset from the active account to a holder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			secret, err := a.activeSecret(ctx)
			if err != nil {
				return err
			}
			params.IssuerSecretKey = secret
			result, err := a.client.IssueAsset(ctx, params)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), "Asset issued", result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&params.AssetCode, "code", "c", "", "asset code")
	cmd.Flags().StringVarP(&params.DestinationPublicKey, "to", "t", "", "holder public key")
	cmd.Flags().StringVarP(&params.Amount, "amount", "a", "", "amount to issue")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
