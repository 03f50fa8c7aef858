package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mapslot/territory-engine/pkg/client"
)

func newPreviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <territory-id> <slot>",
		Short: "Preview the purchasable remainder of a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			preview, err := cliCtx.Client.PreviewSlot(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, preview, func(w io.Writer) {
				fmt.Fprintf(w, "Territory:  %s (v%d)\n", preview.TerritoryID, preview.TerritoryVersion)
				fmt.Fprintf(w, "Slot:       %s\n", preview.Slot)
				if preview.SoldOut {
					fmt.Fprintf(w, "Status:     unavailable (%s)\n", preview.Reason)
					return
				}
				fmt.Fprintf(w, "Available:  %.4f km2\n", preview.AreaKm2)
				if preview.Quote != nil {
					fmt.Fprintf(w, "Price:      %s %s per billing period\n", preview.Quote.Amount, preview.Quote.Currency)
				}
			})
		},
	}
}

func newReserveCommand() *cobra.Command {
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "reserve <territory-id> <slot>",
		Short: "Reserve the entire current remainder of a slot",
		Long:  "Reserve the entire current remainder of a slot for this tenant.\nThe reservation is provisional until payment is confirmed.  Pass the\nsame --idempotency-key to retry safely; the server replays the\noriginal result instead of double-booking.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if idempotencyKey == "" {
				idempotencyKey = uuid.New().String()
			}

			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			res, err := cliCtx.Client.Reserve(ctx, args[0], args[1], idempotencyKey)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.IsConflict() {
					return fmt.Errorf("slot %q was taken before the reservation committed; preview again (%s)", args[1], apiErr.Message)
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, res, func(w io.Writer) {
				if res.Idempotent {
					fmt.Fprintln(w, "Replayed earlier reservation for this idempotency key.")
				}
				printSponsorship(w, &res.Sponsorship)
				fmt.Fprintf(w, "Idempotency-Key: %s\n", idempotencyKey)
			})
		},
	}

	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "idempotency key (generated when omitted)")
	return cmd
}

func newSponsorshipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sponsorship",
		Short: "Manage sponsorships",
	}
	cmd.AddCommand(
		newSponsorshipGetCommand(),
		newSponsorshipListCommand(),
		newSponsorshipCancelCommand(),
	)
	return cmd
}

func printSponsorship(w io.Writer, sp *client.Sponsorship) {
	fmt.Fprintf(w, "ID:        %s\n", sp.ID)
	fmt.Fprintf(w, "Territory: %s (v%d)\n", sp.TerritoryID, sp.TerritoryVersion)
	fmt.Fprintf(w, "Slot:      %s\n", sp.Slot)
	fmt.Fprintf(w, "Status:    %s\n", sp.Status)
	fmt.Fprintf(w, "Area:      %.4f km2\n", sp.AreaKm2)
	fmt.Fprintf(w, "Price:     %s %s\n", sp.Price, sp.Currency)
	if sp.PeriodStart != "" {
		fmt.Fprintf(w, "Period:    %s .. %s\n", sp.PeriodStart, sp.PeriodEnd)
	}
}

func newSponsorshipGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <sponsorship-id>",
		Short: "Show one sponsorship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			sp, err := cliCtx.Client.GetSponsorship(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, sp, func(w io.Writer) {
				printSponsorship(w, sp)
			})
		},
	}
}

func newSponsorshipListCommand() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tenant's sponsorships",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			list, err := cliCtx.Client.ListSponsorships(ctx, page, pageSize)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, list, func(w io.Writer) {
				fmt.Fprintf(w, "%-38s %-12s %-20s %-10s %s\n", "ID", "SLOT", "STATUS", "AREA_KM2", "PRICE")
				for _, sp := range list.Items {
					fmt.Fprintf(w, "%-38s %-12s %-20s %-10.4f %s %s\n",
						sp.ID, sp.Slot, sp.Status, sp.AreaKm2, sp.Price, sp.Currency)
				}
				fmt.Fprintf(w, "\n%d of %d sponsorships\n", len(list.Items), list.Total)
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "results per page")
	return cmd
}

func newSponsorshipCancelCommand() *cobra.Command {
	var immediate bool

	cmd := &cobra.Command{
		Use:   "cancel <sponsorship-id>",
		Short: "Cancel a sponsorship",
		Long:  "Cancel a sponsorship.  By default the sponsorship keeps its\ngeometry until the end of the paid period.  With --immediate the\ngeometry is released right away and availability recomputes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			sp, err := cliCtx.Client.CancelSponsorship(ctx, args[0], immediate)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, sp, func(w io.Writer) {
				printSponsorship(w, sp)
			})
		},
	}

	cmd.Flags().BoolVar(&immediate, "immediate", false, "release the geometry now instead of at period end")
	return cmd
}
