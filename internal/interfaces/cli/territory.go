package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mapslot/territory-engine/pkg/client"
)

func newTerritoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "territory",
		Short: "Manage territories",
	}
	cmd.AddCommand(
		newTerritoryCreateCommand(),
		newTerritoryGetCommand(),
		newTerritoryListCommand(),
		newTerritoryRedrawCommand(),
		newTerritoryDeleteCommand(),
	)
	return cmd
}

// readGeometry loads a GeoJSON geometry from --geometry or --geometry-file.
func readGeometry(inline, file string) (json.RawMessage, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("--geometry and --geometry-file are mutually exclusive")
	case inline != "":
		return json.RawMessage(inline), nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read geometry file: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("a boundary is required; pass --geometry or --geometry-file")
	}
}

func printTerritory(w io.Writer, ter *client.Territory) {
	fmt.Fprintf(w, "ID:       %s\n", ter.ID)
	fmt.Fprintf(w, "Name:     %s\n", ter.Name)
	fmt.Fprintf(w, "Version:  %d\n", ter.Version)
	fmt.Fprintf(w, "Area:     %.4f km2\n", ter.AreaKm2)
}

func newTerritoryCreateCommand() *cobra.Command {
	var name, geometry, geometryFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new territory from a GeoJSON boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			boundary, err := readGeometry(geometry, geometryFile)
			if err != nil {
				return err
			}

			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			ter, err := cliCtx.Client.CreateTerritory(ctx, name, boundary)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, ter, func(w io.Writer) {
				printTerritory(w, ter)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "territory display name")
	cmd.Flags().StringVar(&geometry, "geometry", "", "inline GeoJSON geometry")
	cmd.Flags().StringVar(&geometryFile, "geometry-file", "", "path to a GeoJSON geometry file")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTerritoryGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <territory-id>",
		Short: "Show one territory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			ter, err := cliCtx.Client.GetTerritory(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, ter, func(w io.Writer) {
				printTerritory(w, ter)
			})
		},
	}
}

func newTerritoryListCommand() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tenant's territories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			list, err := cliCtx.Client.ListTerritories(ctx, page, pageSize)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, list, func(w io.Writer) {
				fmt.Fprintf(w, "%-38s %-24s %-8s %s\n", "ID", "NAME", "VERSION", "AREA_KM2")
				for _, ter := range list.Items {
					fmt.Fprintf(w, "%-38s %-24s %-8d %.4f\n", ter.ID, ter.Name, ter.Version, ter.AreaKm2)
				}
				fmt.Fprintf(w, "\n%d of %d territories\n", len(list.Items), list.Total)
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "results per page")
	return cmd
}

func newTerritoryRedrawCommand() *cobra.Command {
	var geometry, geometryFile string

	cmd := &cobra.Command{
		Use:   "redraw <territory-id>",
		Short: "Replace a territory's boundary",
		Long:  "Replace a territory's boundary with a new GeoJSON geometry.\nExisting sponsorships keep the geometry they were sold with; only\nfuture previews and reservations see the new boundary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			boundary, err := readGeometry(geometry, geometryFile)
			if err != nil {
				return err
			}

			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			ter, err := cliCtx.Client.RedrawTerritory(ctx, args[0], boundary)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cliCtx.Output, ter, func(w io.Writer) {
				printTerritory(w, ter)
			})
		},
	}

	cmd.Flags().StringVar(&geometry, "geometry", "", "inline GeoJSON geometry")
	cmd.Flags().StringVar(&geometryFile, "geometry-file", "", "path to a GeoJSON geometry file")
	return cmd
}

func newTerritoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <territory-id>",
		Short: "Delete a territory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.requestContext(cmd)
			defer cancel()
			if err := cliCtx.Client.DeleteTerritory(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted territory %s\n", args[0])
			return nil
		},
	}
}
