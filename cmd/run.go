package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/stereosgm/internal/config"
	"github.com/cwbudde/stereosgm/internal/imgio"
	"github.com/cwbudde/stereosgm/internal/sgm"
	"github.com/spf13/cobra"
)

var (
	leftPath    string
	rightPath   string
	outPath     string
	pfmOutPath  string
	maskOutPath string
	presetPath  string
	backendName string
	maxDisp     int
	p1          int
	p2          int
	numPaths    int
	uniqueness  int
	subpixel    bool
	costKind    string
	scaleFactor float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute a disparity map for one stereo pair",
	Long: `Runs semi-global matching on a rectified stereo pair and writes the
disparity map as a scaled grayscale PNG, optionally with a raw PFM and
a validity mask.`,
	RunE: runMatching,
}

func init() {
	runCmd.Flags().StringVar(&leftPath, "left", "", "Left image path (required)")
	runCmd.Flags().StringVar(&rightPath, "right", "", "Right image path (required)")
	runCmd.Flags().StringVar(&outPath, "out", "disparity.png", "Output disparity PNG path")
	runCmd.Flags().StringVar(&pfmOutPath, "pfm-out", "", "Optional raw disparity PFM path")
	runCmd.Flags().StringVar(&maskOutPath, "mask-out", "", "Optional validity mask PNG path")
	runCmd.Flags().StringVar(&presetPath, "config", "", "YAML preset file")
	runCmd.Flags().StringVar(&backendName, "backend", "cpu", "Matching backend (cpu)")
	runCmd.Flags().IntVar(&maxDisp, "max-disp", 64, "Disparity search range")
	runCmd.Flags().IntVar(&p1, "p1", 10, "Small disparity change penalty")
	runCmd.Flags().IntVar(&p2, "p2", 120, "Large disparity change penalty")
	runCmd.Flags().IntVar(&numPaths, "paths", 8, "Aggregation path count (4 or 8)")
	runCmd.Flags().IntVar(&uniqueness, "uniqueness", 10, "Uniqueness ratio in percent (0 disables)")
	runCmd.Flags().BoolVar(&subpixel, "subpixel", true, "Enable sub-pixel refinement")
	runCmd.Flags().StringVar(&costKind, "cost", "census", "Matching cost: census, absdiff")
	runCmd.Flags().Float64Var(&scaleFactor, "scale", 1, "Pre-shrink factor applied to both images")

	runCmd.MarkFlagRequired("left")
	runCmd.MarkFlagRequired("right")
	rootCmd.AddCommand(runCmd)
}

// resolvePreset merges a preset file with explicit flags. Flags the user
// set on the command line win over the file.
func resolvePreset(cmd *cobra.Command) (config.Preset, error) {
	preset := config.Default()
	if presetPath != "" {
		loaded, err := config.Load(presetPath)
		if err != nil {
			return config.Preset{}, err
		}
		preset = loaded
	}

	if cmd.Flags().Changed("max-disp") {
		preset.MaxDisparity = maxDisp
	}
	if cmd.Flags().Changed("p1") {
		preset.P1 = p1
	}
	if cmd.Flags().Changed("p2") {
		preset.P2 = p2
	}
	if cmd.Flags().Changed("paths") {
		preset.NumPaths = numPaths
	}
	if cmd.Flags().Changed("uniqueness") {
		preset.UniquenessRatio = uniqueness
	}
	if cmd.Flags().Changed("subpixel") {
		preset.Subpixel = &subpixel
	}
	if cmd.Flags().Changed("cost") {
		preset.Cost = costKind
	}
	if cmd.Flags().Changed("scale") {
		preset.Scale = scaleFactor
	}

	if err := preset.Validate(); err != nil {
		return config.Preset{}, err
	}
	return preset, nil
}

func runMatching(cmd *cobra.Command, args []string) error {
	preset, err := resolvePreset(cmd)
	if err != nil {
		return err
	}

	slog.Info("Starting matching",
		"left", leftPath,
		"right", rightPath,
		"max_disparity", preset.MaxDisparity,
		"paths", preset.NumPaths,
	)

	left, err := imgio.LoadGray(leftPath)
	if err != nil {
		return fmt.Errorf("failed to load left image: %w", err)
	}
	right, err := imgio.LoadGray(rightPath)
	if err != nil {
		return fmt.Errorf("failed to load right image: %w", err)
	}

	if preset.Scale != 1 {
		if left, err = imgio.Scale(left, preset.Scale); err != nil {
			return fmt.Errorf("failed to scale left image: %w", err)
		}
		if right, err = imgio.Scale(right, preset.Scale); err != nil {
			return fmt.Errorf("failed to scale right image: %w", err)
		}
	}

	width := left.Bounds().Dx()
	height := left.Bounds().Dy()
	slog.Info("Loaded stereo pair", "width", width, "height", height)

	opts := sgm.DefaultOptions(width, height)
	opts.MaxDisparity = preset.MaxDisparity
	opts.P1 = preset.P1
	opts.P2 = preset.P2
	opts.NumPaths = preset.NumPaths
	opts.UniquenessRatio = preset.UniquenessRatio
	opts.Subpixel = preset.SubpixelEnabled()
	opts.Cost = sgm.CostKind(preset.Cost)

	engine, cleanup, err := sgm.NewEngineForBackend(backendName, opts)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer cleanup()

	start := time.Now()
	disp, stats, err := engine.ProcessFrameWithStats(left, right)
	if err != nil {
		return fmt.Errorf("matching failed: %w", err)
	}
	elapsed := time.Since(start)

	if pfmOutPath != "" {
		pfm := imgio.FloatMap{Width: disp.Width, Height: disp.Height, Pix: disp.Pix}
		if err := imgio.WritePFM(pfmOutPath, pfm); err != nil {
			return fmt.Errorf("failed to write PFM: %w", err)
		}
	}
	if maskOutPath != "" {
		if err := imgio.SavePNG(maskOutPath, disp.ValidMask()); err != nil {
			return fmt.Errorf("failed to write mask: %w", err)
		}
	}

	// Spread the disparity range over the 8-bit output
	vis := disp.Clone()
	vis.LinearTransform(float32(255)/float32(preset.MaxDisparity), 0)
	if err := imgio.SavePNG(outPath, vis.ToGray()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	validRatio := float64(disp.ValidCount()) / float64(width*height)
	mpps := float64(width*height) / 1e6 / elapsed.Seconds()

	slog.Info("Matching complete",
		"elapsed", elapsed,
		"cost_time", stats.CostTime,
		"aggregation_time", stats.AggregationTime,
		"selection_time", stats.SelectionTime,
		"refinement_time", stats.RefinementTime,
		"valid_ratio", fmt.Sprintf("%.3f", validRatio),
		"mpixels_per_second", fmt.Sprintf("%.2f", mpps),
	)

	fmt.Printf("Wrote %s (%.1f%% valid, %.2f MPix/s)\n", outPath, validRatio*100, mpps)

	return nil
}
