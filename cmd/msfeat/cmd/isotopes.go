package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/msfeat/pkg/chem"
	"github.com/ChrisMcGann/msfeat/pkg/core"
	"github.com/ChrisMcGann/msfeat/pkg/isotope"
)

var (
	// Flags for isotopes command
	peptide   bool
	averagine float64
	charge    int
)

func init() {
	f := isotopesCmd.Flags()
	f.BoolVar(&peptide, "peptide", false, "Treat the argument as a peptide sequence")
	f.Float64Var(&averagine, "averagine", 0, "Use the averagine formula for this monoisotopic mass instead of an argument")
	f.IntVar(&charge, "charge", 0, "Print m/z at this charge instead of neutral mass (0 = neutral)")
	f.String("method", "auto", "Algorithm: auto, polynomial or fft")
	f.Float64("resolution", 1.0, "Mass bin width in Da")
	f.Int("max-isotopes", 0, "Keep only this many isotope offsets (0 = all)")
	f.Float64("min-abundance", 0, "Drop peaks below this abundance")

	mustBind("isotope.method", f.Lookup("method"))
	mustBind("isotope.resolution", f.Lookup("resolution"))
	mustBind("isotope.max_isotopes", f.Lookup("max-isotopes"))
	mustBind("isotope.min_abundance", f.Lookup("min-abundance"))
}

var isotopesCmd = &cobra.Command{
	Use:   "isotopes [formula|sequence]",
	Short: "Compute the isotope distribution of a formula or peptide",
	Long: `Compute the theoretical isotope distribution of an elemental formula,
an unmodified peptide or an averagine composition.

Examples:
  # Glucose
  msfeat isotopes C6H12O6

  # Peptide at charge 2, first four peaks
  msfeat isotopes --peptide PEPTIDE --charge 2 --max-isotopes 4

  # Averagine at 1500 Da with fine bins
  msfeat isotopes --averagine 1500 --resolution 0.01 --method fft`,
	Args: func(cmd *cobra.Command, args []string) error {
		if averagine > 0 {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runIsotopes,
}

func runIsotopes(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	opts, err := cfg.IsotopeOptions()
	if err != nil {
		return err
	}
	db, err := cfg.ElementDB()
	if err != nil {
		return err
	}

	var formula chem.Formula
	switch {
	case averagine > 0:
		formula = isotope.Averagine(averagine)
	case peptide:
		formula, err = chem.PeptideFormula(args[0])
	default:
		formula, err = chem.ParseFormula(args[0])
	}
	if err != nil {
		return err
	}

	dist, err := isotope.Generate(formula, db, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Formula: %s\n", formula)
	if mono, err := formula.MonoisotopicMass(db); err == nil {
		fmt.Fprintf(out, "Monoisotopic mass: %.6f\n", mono)
	}
	fmt.Fprintf(out, "Average mass: %.6f\n\n", dist.AverageMass())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	massHeader := "Mass"
	if charge != 0 {
		massHeader = fmt.Sprintf("m/z (z=%d)", charge)
	}
	fmt.Fprintf(tw, "Offset\t%s\tAbundance\n", massHeader)
	for _, p := range dist {
		mass := p.Mass
		if charge != 0 {
			mass = core.MZ(p.Mass, charge)
		}
		fmt.Fprintf(tw, "%d\t%.6f\t%.6f\n", p.Offset, mass, p.Abundance)
	}
	return tw.Flush()
}
