package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pulseboard/surveykpi/internal/config"
	"github.com/pulseboard/surveykpi/internal/llm"
	"github.com/pulseboard/surveykpi/internal/model"
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [file...]",
		Short: "Detect KPI columns in survey response files",
		Long: `Detect reads one or more JSON files, each containing an array of flat
survey-response objects, and asks the model which numeric columns are
key performance indicators.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDetect,
	}

	cmd.Flags().String("language", "", "language for the explanation, used verbatim in the prompt")
	_ = viper.BindPFlag("detect.language", cmd.Flags().Lookup("language"))

	return cmd
}

// fileResult pairs a detection result with the file it came from.
type fileResult struct {
	File        string   `json:"file"`
	KPIs        []string `json:"kpis"`
	Explanation string   `json:"explanation"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Detector()
	if err != nil {
		return err
	}

	detector, err := llm.NewDetector(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = detector.Close() }()

	language := viper.GetString("detect.language")

	var bar *progressbar.ProgressBar
	if len(args) > 1 {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionSetDescription("Detecting KPIs"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := make([]fileResult, 0, len(args))
	for _, path := range args {
		records, loadErr := loadRecords(path)
		if loadErr != nil {
			return fmt.Errorf("failed to load %s: %w", path, loadErr)
		}

		result, detectErr := detector.DetectKPIs(ctx, model.DetectionRequest{
			Records:  records,
			Language: language,
		})
		if detectErr != nil {
			return fmt.Errorf("detection failed for %s: %w", path, detectErr)
		}

		results = append(results, fileResult{
			File:        path,
			KPIs:        result.KPIs,
			Explanation: result.Explanation,
		})

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	return printResults(cmd.OutOrStdout(), results)
}

// loadRecords reads a JSON file containing an array of survey records.
func loadRecords(path string) ([]model.SurveyRecord, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the CLI args
	if err != nil {
		return nil, err
	}

	var records []model.SurveyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("expected a JSON array of flat survey records: %w", err)
	}

	return records, nil
}

func printResults(w io.Writer, results []fileResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if len(results) == 1 {
		return encoder.Encode(results[0])
	}
	return encoder.Encode(results)
}
