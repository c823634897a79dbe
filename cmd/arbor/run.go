package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a workflow document",
	Long:  `Loads the workflow document, validates it, executes it against a seed context built from --set flags, and prints a run summary.`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		if !cmd.Flags().Changed("file") && len(args) > 0 {
			file = args[0]
		}
		logLevel, _ := cmd.Flags().GetString("log-level")
		lenient, _ := cmd.Flags().GetBool("lenient")
		redisAddr, _ := cmd.Flags().GetString("redis")
		sets, _ := cmd.Flags().GetStringArray("set")

		seed, err := cli.ParseSeed(sets)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		app, err := cli.NewApp(cli.Options{
			LogLevel:  logLevel,
			RedisAddr: redisAddr,
			Lenient:   lenient,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		wf, err := app.LoadFile(file)
		if err != nil {
			fmt.Printf("Error loading workflow: %v\n", err)
			os.Exit(1)
		}

		record, runErr := wf.Run(cmd.Context(), seed)

		render := tui.NewRenderer()
		out, err := render(tui.RunSummary(record))
		if err != nil {
			out = tui.RunSummary(record)
		}
		fmt.Print(out)
		fmt.Println(tui.StatusLine(record))

		if runErr != nil {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArray("set", nil, "Seed context entry (key=value, repeatable)")
	runCmd.Flags().String("redis", "", "Persist run records to Redis at this address")
}
