package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kallisto-osint/osinter/config"
	"github.com/kallisto-osint/osinter/internal/agent"
	"github.com/kallisto-osint/osinter/internal/app"
	"github.com/kallisto-osint/osinter/internal/server"
)

func main() {
	var configPath string
	root := &cobra.Command{Use: "osinter"}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			return server.Run(cmd.Context(), cfg)
		},
	}

	var (
		subject  string
		question string
		location string
		rounds   int
		budget   time.Duration
	)
	investigate := &cobra.Command{
		Use:   "investigate",
		Short: "Run a single investigation and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			eng, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			req := agent.Request{Subject: subject, Question: question, Location: location}
			req.Config.RoundLimit = rounds
			req.Config.Budget = budget
			inv, report, err := eng.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("Investigation %s (%d rounds, %d sources)\n\n", inv.ID, report.Rounds, report.Sources)
			fmt.Println(report.Answer)
			if report.TimedOut {
				fmt.Println("\nNote: the time budget expired; the report covers what was gathered in time.")
			}
			eng.Telemetry.LogSummary()
			return nil
		},
	}
	investigate.Flags().StringVar(&subject, "subject", "", "who or what to investigate")
	investigate.Flags().StringVar(&question, "question", "", "the question the report should answer")
	investigate.Flags().StringVar(&location, "location", "", "optional location hint")
	investigate.Flags().IntVar(&rounds, "rounds", 0, "round limit (0 = configured default)")
	investigate.Flags().DurationVar(&budget, "budget", 0, "wall-clock budget (0 = configured default)")
	_ = investigate.MarkFlagRequired("subject")
	_ = investigate.MarkFlagRequired("question")

	root.AddCommand(serve, investigate)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
