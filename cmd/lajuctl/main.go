package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"laju/internal/app"
	"laju/internal/config"
	"laju/internal/identity"
	"laju/internal/quote"
	"laju/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lajuctl",
		Short:        "Laju operator tooling",
		SilenceUsage: true,
	}
	root.AddCommand(newHashPasswordCmd(), newQuoteCmd(), newImportUsersCmd(), newAddUserCmd())
	return root
}

// readSecret returns flag when set, otherwise the first line of stdin.
func readSecret(in io.Reader, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password given")
	}
	return line, nil
}

func newHashPasswordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the Argon2id hash of a password (read from stdin unless --password is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			hash, err := identity.NewArgon2Hasher(identity.DefaultParams).HashPassword(cmd.Context(), pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password to hash")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	var (
		tier      string
		weight    string
		declared  string
		insurance bool
		method    string
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a shipment with the configured tariff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			engine, err := quote.NewEngine(cfg.QuoteRates())
			if err != nil {
				return err
			}
			req, err := buildRequest(tier, weight, declared, insurance, method)
			if err != nil {
				return err
			}
			res, err := engine.Quote(req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-16s %s\n", "Base fee", res.BaseFee)
			fmt.Fprintf(out, "%-16s %s\n", "Insurance", res.InsuranceFee)
			fmt.Fprintf(out, "%-16s %s\n", "COD surcharge", res.CODSurcharge)
			fmt.Fprintf(out, "%-16s %s\n", "Total payable", res.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "", "Service tier: Express, Cargo or Food")
	cmd.Flags().StringVar(&weight, "weight", "", "Weight in kg, e.g. 2.5")
	cmd.Flags().StringVar(&declared, "declared", "", "Declared value in rupiah, e.g. 1.000.000")
	cmd.Flags().BoolVar(&insurance, "insurance", false, "Insure the package")
	cmd.Flags().StringVar(&method, "method", "Prepaid", "Payment method: COD or Prepaid")
	_ = cmd.MarkFlagRequired("tier")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

func buildRequest(tier, weight, declared string, insurance bool, method string) (quote.ShipmentRequest, error) {
	t, err := quote.ParseTier(tier)
	if err != nil {
		return quote.ShipmentRequest{}, err
	}
	w, err := quote.ParseWeightKg(weight)
	if err != nil {
		return quote.ShipmentRequest{}, err
	}
	m, err := quote.ParsePaymentMethod(method)
	if err != nil {
		return quote.ShipmentRequest{}, err
	}
	req := quote.ShipmentRequest{Tier: t, Weight: w, InsuranceRequested: insurance, PaymentMethod: m}
	if strings.TrimSpace(declared) != "" {
		v, err := quote.ParseMoney(declared)
		if err != nil {
			return quote.ShipmentRequest{}, err
		}
		req.DeclaredValue = &v
	}
	return req, nil
}

func openStore(ctx context.Context) (app.Store, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return app.OpenStore(ctx, cfg)
}

func newImportUsersCmd() *cobra.Command {
	var (
		file           string
		usernameColumn string
	)
	cmd := &cobra.Command{
		Use:   "import-users",
		Short: "Import a legacy User sheet (.xls or .xlsx) with plain-text passwords",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := store.ReadRows(f, file)
			if err != nil {
				return err
			}
			legacy, err := store.ParseLegacyUsers(rows, usernameColumn)
			if err != nil {
				return err
			}

			st, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			rep, err := app.ImportUsers(cmd.Context(), st, identity.NewArgon2Hasher(identity.DefaultParams), legacy)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d users\n", rep.Imported)
			for _, u := range rep.Skipped {
				fmt.Fprintf(out, "skipped %s: password shorter than %d characters\n", u, identity.MinPasswordLength)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Legacy workbook to import")
	cmd.Flags().StringVar(&usernameColumn, "username-column", "Username", "Header of the login column (old sheets use Nama)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newAddUserCmd() *cobra.Command {
	var u identity.UserRecord
	var password string
	cmd := &cobra.Command{
		Use:   "add-user",
		Short: "Create or replace an operator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(u.Username) == "" {
				return fmt.Errorf("--username is required")
			}
			pw, err := readSecret(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			hash, err := identity.NewArgon2Hasher(identity.DefaultParams).HashPassword(cmd.Context(), pw)
			if err != nil {
				return err
			}
			u.PasswordHash = hash

			st, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			if err := st.PutUser(cmd.Context(), u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved user %s\n", u.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Username, "username", "", "Login name")
	cmd.Flags().StringVar(&u.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&u.Branch, "branch", "", "Branch office")
	cmd.Flags().StringVar(&u.Role, "role", "operator", "Role")
	cmd.Flags().StringVar(&password, "password", "", "Password (read from stdin when empty)")
	return cmd
}
