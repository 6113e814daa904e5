package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-agent/internal/model"
)

var (
	batchFile  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch [topic ...]",
	Short: "Research multiple topics concurrently",
	Long:  "Topics come from arguments or, with --file, one per line from a file. Lines starting with # are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		topics := args
		if batchFile != "" {
			fileTopics, err := readTopics(batchFile)
			if err != nil {
				return err
			}
			topics = append(topics, fileTopics...)
		}
		if len(topics) == 0 {
			return eris.New("no topics given")
		}

		env, err := initAgent(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		summaries, err := processBatch(ctx, env, topics, batchLimit, cfg.Batch.MaxConcurrentTopics)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one topic per line")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of topics to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}

func readTopics(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open topics file %s", path)
	}
	defer f.Close()

	var topics []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		topics = append(topics, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read topics file %s", path)
	}
	return topics, nil
}

// processBatch applies limit, then researches topics concurrently.
// Individual failures are logged and do not abort the batch.
func processBatch(ctx context.Context, env *agentEnv, topics []string, limit, concurrency int) ([]*model.ResearchSummary, error) {
	if limit > 0 && len(topics) > limit {
		topics = topics[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("topics", len(topics)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	summaries := make([]*model.ResearchSummary, len(topics))
	var succeeded, failed atomic.Int64

	for i, topic := range topics {
		g.Go(func() error {
			log := zap.L().With(zap.String("topic", topic))

			summary, err := env.Orchestrator.Run(gctx, topic)
			if err != nil {
				failed.Add(1)
				log.Error("research failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			summaries[i] = summary
			succeeded.Add(1)
			log.Info("research complete",
				zap.String("stop_reason", summary.StopReason),
				zap.Int("sources", summary.TotalSources),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)

	out := summaries[:0]
	for _, s := range summaries {
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}
