package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scalecode-solutions/babytrackerapi/internal/config"
	"github.com/scalecode-solutions/babytrackerapi/internal/db"
	"github.com/scalecode-solutions/babytrackerapi/internal/dose"
	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

var (
	doseBabyID int64
	doseJSON   bool
)

var doseCmd = &cobra.Command{
	Use:   "dose",
	Short: "Show the dose safety state of every active medicine for a baby",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if doseBabyID <= 0 {
			return fmt.Errorf("--baby must be > 0")
		}
		return withDB(cmd, func(ctx context.Context, cfg *config.Config, database *db.DB) error {
			baby, err := database.GetBabyByID(ctx, doseBabyID)
			if err == db.ErrNotFound {
				return fmt.Errorf("baby %d not found", doseBabyID)
			}
			if err != nil {
				return err
			}

			medicines, err := database.ListMedicines(ctx, baby.FamilyID, false)
			if err != nil {
				return err
			}
			meds := make([]dose.Medicine, 0, len(medicines))
			for i := range medicines {
				meds = append(meds, dose.MedicineFromModel(&medicines[i]))
			}

			now := time.Now()
			since := now.Add(-dose.Lookback(meds))
			admins, err := database.FetchAdministrations(ctx, models.AdministrationFilter{BabyID: &baby.ID, Since: &since})
			if err != nil {
				return err
			}

			states := dose.New(newLogger(cmd, cfg)).EvaluateAll(meds, dose.AdministrationsFromModels(admins), now)
			if doseJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(states)
			}
			return printStates(cmd, baby.FirstName, states)
		})
	},
}

func printStates(cmd *cobra.Command, name string, states []dose.State) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dose safety for %s\n", name)
	if len(states) == 0 {
		fmt.Fprintln(out, "No active medicines")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MEDICINE\tSTATUS\tNEXT DOSE\tLAST 24H")
	for _, s := range states {
		status, next := "safe", "now"
		if !s.IsSafe {
			status = fmt.Sprintf("wait %dm", s.MinutesRemaining)
			next = s.NextSafeTime.Local().Format("Jan 2 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g %s\n", s.MedicineName, status, next, s.TotalDoseAmountLast24h, s.TotalDoseUnit)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(doseCmd)
	doseCmd.Flags().Int64Var(&doseBabyID, "baby", 0, "Baby ID")
	doseCmd.Flags().BoolVar(&doseJSON, "json", false, "Print states as JSON")
}
