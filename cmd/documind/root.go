package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jlorenzo681/documind/internal/agents"
	"github.com/jlorenzo681/documind/internal/bootstrap"
	"github.com/jlorenzo681/documind/internal/shared/config"
	"github.com/jlorenzo681/documind/internal/state"
	"github.com/jlorenzo681/documind/internal/tasks"
)

// pipelineFactory is swapped in tests.
var pipelineFactory = func(ctx context.Context, cfg config.Config, src agents.DocumentSource) (tasks.Pipeline, func() error, error) {
	orch, closer, err := bootstrap.BuildPipeline(ctx, cfg, src)
	if err != nil {
		return nil, nil, err
	}
	return orch, closer, nil
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "documind",
		Short:         "Multi-agent document analysis",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("llm-provider", "", "model provider (openai, anthropic, gemini)")
	root.PersistentFlags().String("log-level", "", "log level")
	_ = v.BindPFlag("llm_provider", root.PersistentFlags().Lookup("llm-provider"))
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newAnalyzeCmd(v), newVersionCmd())
	return root
}

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	var questions []string

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run the analysis pipeline on a local file and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFrom(v)
			return runAnalyze(cmd.Context(), cfg, args[0], questions, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "question to answer (repeatable)")
	cmd.Flags().String("report-dir", "", "directory for the PDF report")
	cmd.Flags().Int("chunk-size", 0, "chunk size in characters")
	_ = v.BindPFlag("report_dir", cmd.Flags().Lookup("report-dir"))
	_ = v.BindPFlag("chunk_size", cmd.Flags().Lookup("chunk-size"))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), bootstrap.Version)
		},
	}
}

func runAnalyze(ctx context.Context, cfg config.Config, path string, questions []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("open document: %w", err)
	}

	pipeline, closer, err := pipelineFactory(ctx, cfg, agents.FileSource{})
	if err != nil {
		return err
	}
	defer closer()

	id := uuid.NewString()
	final, err := pipeline.Run(ctx, state.New(id, abs, id, questions))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(final)
}
