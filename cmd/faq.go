package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/psds-microservice/voice-support/internal/application"
	"github.com/psds-microservice/voice-support/internal/config"
	"github.com/psds-microservice/voice-support/internal/logger"
	"github.com/psds-microservice/voice-support/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var faqCmd = &cobra.Command{
	Use:   "faq",
	Short: "Manage the FAQ corpus",
}

var faqSeedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Create FAQ entries from a YAML list of {question, answer}",
	Args:  cobra.ExactArgs(1),
	RunE:  runFAQSeed,
}

var faqReembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute embeddings that are unreadable or of the wrong dimension",
	RunE:  runFAQReembed,
}

var reembedForce bool

func init() {
	faqReembedCmd.Flags().BoolVar(&reembedForce, "force", false, "recompute every entry")
	faqCmd.AddCommand(faqSeedCmd, faqReembedCmd)
}

func openFAQTool() (*application.FAQTool, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	tool, err := application.NewFAQTool(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return tool, log, nil
}

// readSeed читает YAML-список записей FAQ.
func readSeed(path string) ([]service.SeedEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []service.SeedEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

func runFAQSeed(cmd *cobra.Command, args []string) error {
	entries, err := readSeed(args[0])
	if err != nil {
		return err
	}
	tool, log, err := openFAQTool()
	if err != nil {
		return err
	}
	defer tool.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	n, err := tool.Seed(ctx, entries)
	log.Info("faq seed", zap.Int("created", n), zap.Int("total", len(entries)))
	return err
}

func runFAQReembed(cmd *cobra.Command, args []string) error {
	tool, log, err := openFAQTool()
	if err != nil {
		return err
	}
	defer tool.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	n, err := tool.Reembed(ctx, reembedForce)
	log.Info("faq reembed", zap.Int("updated", n), zap.Bool("force", reembedForce))
	return err
}
