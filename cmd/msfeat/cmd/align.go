package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/msfeat/pkg/align"
	"github.com/ChrisMcGann/msfeat/pkg/writer/sqlite"
)

var (
	// Flags for align command
	refFile    string
	targetFile string
	refMap     string
	targetMap  string
	alignOut   string
)

func init() {
	f := alignCmd.Flags()
	f.StringVar(&refFile, "ref", "", "SQLite database holding the reference feature map (required)")
	f.StringVar(&targetFile, "target", "", "SQLite database holding the feature map to align (required)")
	f.StringVar(&refMap, "ref-map", "", "Reference map name (default: first map)")
	f.StringVar(&targetMap, "target-map", "", "Target map name (default: first map)")
	f.StringVarP(&alignOut, "out", "o", "", "Write the transformation and the aligned map to this database")
	f.String("model", "shift", "Alignment model: shift or affine")
	f.Bool("interpolate", false, "Replace the model by a piecewise linear fit through matched pairs")

	mustBind("alignment.model", f.Lookup("model"))
	mustBind("alignment.interpolate", f.Lookup("interpolate"))

	alignCmd.MarkFlagRequired("ref")
	alignCmd.MarkFlagRequired("target")
}

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Align the retention times of a feature map onto a reference",
	Long: `Estimate the retention time transformation that maps the features of
a target run onto a reference run, using pose clustering over pairs of
features with similar m/z.

Example:
  msfeat align --ref run1.db --target run2.db --model affine --out aligned.db`,
	Args: cobra.NoArgs,
	RunE: runAlign,
}

func runAlign(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	acfg, err := cfg.AlignConfig()
	if err != nil {
		return err
	}

	ref, err := sqlite.LoadFeatureMap(refFile, refMap)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	target, err := sqlite.LoadFeatureMap(targetFile, targetMap)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	res, err := align.Align(ref, target, acfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Transformation: %s\n", res.Transform)
	fmt.Fprintf(out, "Matched: %d of %d target features (support %.3f)\n", res.Matched, target.Len(), res.Support)
	fmt.Fprintf(out, "Poses: %d\n", res.Candidates)

	if alignOut == "" {
		return nil
	}

	aligned := target.Clone()
	aligned.ID = uuid.New()
	aligned.Name = target.Name + ".aligned"
	align.Apply(aligned, res.Transform)
	aligned.UpdateRanges()

	writer, err := sqlite.NewWriter(alignOut)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	dump, err := configYAML(cfg)
	if err != nil {
		return err
	}
	runID, err := writer.WriteRun(aligned.Name, dump)
	if err != nil {
		return err
	}
	if err := writer.WriteTransform(target.ID, ref.ID, res.Transform, res.Support); err != nil {
		return err
	}
	if err := writer.WriteFeatureMap(runID, aligned); err != nil {
		return err
	}
	if err := writer.Finalize(); err != nil {
		return err
	}

	logger.Info("alignment written", "output", alignOut, "map", aligned.Name, "features", aligned.Len())
	return nil
}
