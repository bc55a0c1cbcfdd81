package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iabetor/dailynews/internal/logger"
	"github.com/iabetor/dailynews/internal/pipeline"
	"github.com/iabetor/dailynews/internal/report"
	"github.com/iabetor/dailynews/internal/seen"
)

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "抓取今日新闻并推送摘要",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.ValidateDelivery(); err != nil {
				return err
			}

			gen, err := a.generator()
			if err != nil {
				return err
			}
			d := pipeline.NewDigest(
				a.aggregator(),
				seen.NewDeduplicator(a.store, a.cfg.Seen.Limit),
				gen,
				a.sender(),
				pipeline.DigestOptions{
					Categories:   a.categories(),
					Manual:       a.cfg.Manual,
					SystemPrompt: a.cfg.LLM.SystemPrompt,
					Location:     a.cfg.Location(),
				},
			)
			if a.db != nil {
				d.SetRecorder(a.db)
			}

			res, err := d.Run(cmd.Context())
			if err != nil {
				return err
			}
			logger.Infof("[main] 运行结束: %s，共 %d 则新闻", res.Outcome, res.Digest.Total())
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{
		Use:   "report",
		Short: "生成预测市场报告并发布到静态站点",
	}
	rep.AddCommand(&cobra.Command{
		Use:   "daily",
		Short: "VoteFlux 每日戰報",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, func(r *pipeline.Reports) (pipeline.ReportResult, error) {
				return r.Daily(cmd.Context())
			})
		},
	})
	rep.AddCommand(&cobra.Command{
		Use:   "weekly",
		Short: "預測市場週報：老司機的真心話",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, func(r *pipeline.Reports) (pipeline.ReportResult, error) {
				return r.Weekly(cmd.Context())
			})
		},
	})
	return rep
}

func runReport(cmd *cobra.Command, run func(*pipeline.Reports) (pipeline.ReportResult, error)) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.cfg.ValidateDelivery(); err != nil {
		return err
	}

	gen, err := a.generator()
	if err != nil {
		return err
	}
	r := pipeline.NewReports(gen, a.sender(), report.NewPublisher(a.cfg.Report.Dir, a.cfg.Report.PagesURL), pipeline.ReportOptions{
		Prefix:         a.cfg.Report.Prefix,
		DisablePreview: a.cfg.Telegram.DisablePreview,
		Location:       a.cfg.Location(),
	})
	if a.db != nil {
		r.SetRecorder(a.db)
	}

	res, err := run(r)
	if err != nil {
		return err
	}
	logger.Infof("[main] %s 运行结束: %s", cmd.Name(), res.Outcome)
	return nil
}

func seenCmd() *cobra.Command {
	sc := &cobra.Command{
		Use:   "seen",
		Short: "查看或清空已推播标题记录",
	}
	sc.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "显示已记录的指纹数量",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			fps, err := a.store.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d / %d\n", len(fps), a.cfg.Seen.Limit)
			return nil
		},
	})
	sc.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "清空已推播标题记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "已清空")
			return nil
		},
	})
	return sc
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "显示最近的运行记录（仅 sqlite 后端）",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.db == nil {
				return fmt.Errorf("运行记录需要 seen.backend: sqlite")
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := a.db.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tKIND\tOUTCOME\tITEMS\tFAILED\tRUN ID")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					r.StartedAt.In(a.cfg.Location()).Format("2006-01-02 15:04"),
					r.Kind, r.Outcome, r.Items, r.FailedSources, r.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 10, "显示条数")
	return cmd
}
