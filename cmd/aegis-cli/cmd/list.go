package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aegis-sim/aegis-sim/pkg/scenario"
)

var listScenarioPath string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the platform types and installations in a scenario",
	Long:  `list prints the platform catalog and installation layout a run would seed, without touching the database.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listScenarioPath, "scenario", "", "scenario YAML file (default: baseline scenario)")
}

func runList(cmd *cobra.Command, args []string) error {
	sc := scenario.Default()
	if listScenarioPath != "" {
		loaded, err := scenario.Load(listScenarioPath)
		if err != nil {
			return fmt.Errorf("loading scenario: %w", err)
		}
		sc = loaded
	}

	fmt.Printf("Scenario: %s\n%s\n\n", sc.Name, sc.Description)

	fmt.Println("Platform Types:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NICKNAME\tCATEGORY\tMAX RANGE (m)\tMAX ALT (m)\tACCURACY")
	for _, pt := range sc.PlatformTypes {
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%.0f%%\n", pt.Nickname, pt.Category, pt.MaxRangeM, pt.MaxAltitudeM, pt.AccuracyPercent*100)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println("\nInstallations:")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CALLSIGN\tPLATFORM\tSTATUS\tLON\tLAT\tALT (m)\tAMMO")
	for _, inst := range sc.Installations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%.0f\t%d\n",
			inst.Callsign, inst.PlatformType, inst.Status, inst.Lon, inst.Lat, inst.AltitudeM, inst.AmmoCount)
	}
	return w.Flush()
}
