package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"csv_stream_backend/pkg/generator"
)

var (
	genRecords     int
	genDepartments int
	genOutput      string
	genSeed        uint64
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Short:   "Write a synthetic department sales CSV",
	Example: `  csvstream generate --records 5000000 --departments 200 --output sales.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := generator.DefaultConfig()
		cfg.Records = genRecords
		cfg.Departments = genDepartments
		cfg.Seed = genSeed

		f, err := os.Create(genOutput)
		if err != nil {
			return err
		}
		defer f.Close()

		fmt.Printf("Generating CSV...\nRecords: %d\nDepartments: %d\nOutput: %s\n\n", cfg.Records, cfg.Departments, genOutput)
		bar := progressbar.NewOptions(cfg.Records,
			progressbar.OptionSetDescription("rows"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
		)
		cfg.Progress = func(rows int) { _ = bar.Set(rows) }

		if _, err := generator.Generate(f, cfg); err != nil {
			return err
		}
		_ = bar.Finish()
		fmt.Println()
		fmt.Println(successStyle.Render("✓ CSV generation completed."))
		return f.Close()
	},
}

func init() {
	generateCmd.Flags().IntVar(&genRecords, "records", generator.DefaultRecords, "number of data rows")
	generateCmd.Flags().IntVar(&genDepartments, "departments", generator.DefaultDepartments, "number of distinct departments")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "output.csv", "output file")
	generateCmd.Flags().Uint64Var(&genSeed, "seed", 0, "random seed, 0 for a random one")
}
