package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"csv_stream_backend/models"
	"csv_stream_backend/platform/cache"
	"csv_stream_backend/platform/events"
	"csv_stream_backend/platform/grpc/clients"
	"csv_stream_backend/repository"
	"csv_stream_backend/services"
)

var (
	uploadServer      string
	uploadCompression string
)

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	valueStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC66")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Stream a local CSV file to the processor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if uploadServer != "" {
			cfg.GrpcServerAddr = uploadServer
		}
		if cmd.Flags().Changed("compression") {
			cfg.GrpcCompression = uploadCompression
		}

		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		grpcClients, err := clients.NewGrpcClients(cfg)
		if err != nil {
			return err
		}
		defer grpcClients.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker := events.NewLocalBroker()
		repo := repository.NewJobRepository(cache.NewCacheService(cache.InitL1Cache(time.Hour), nil), nil, time.Hour)
		jobs := services.NewJobService(repo, broker, grpcClients, services.JobServiceConfig{
			ChunkSize: cfg.ChunkSize,
			MaxJobs:   1,
		})

		job, err := jobs.CreateJob(ctx, filepath.Base(path), uint64(info.Size()))
		if err != nil {
			return err
		}

		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription(filepath.Base(path)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
			}),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		updates, err := broker.SubscribeJobEvents(watchCtx, job.JobID)
		if err != nil {
			return err
		}
		go func() {
			for e := range updates {
				if e.Progress != nil {
					_ = bar.Set(int(e.Progress.Percentage))
				}
			}
		}()

		runErr := jobs.Run(ctx, job, f)
		stopWatch()
		_ = bar.Finish()

		if runErr != nil {
			fmt.Println(failStyle.Render("✗ processing failed: ") + runErr.Error())
			return runErr
		}
		fmt.Println(renderSummary(job))
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadServer, "server", "", "processor address (default GRPC_SERVER_ADDRESS)")
	uploadCmd.Flags().StringVar(&uploadCompression, "compression", "", `stream compression: "" or "zstd"`)
}

func renderSummary(job *models.Job) string {
	row := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-18s", label)) + valueStyle.Render(value)
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		successStyle.Render("✓ aggregation complete"),
		"",
		row("Rows processed", fmt.Sprint(job.RowsProcessed)),
		row("Malformed rows", fmt.Sprint(job.MalformedRows)),
		row("Departments", fmt.Sprint(job.UniqueDepartments)),
		row("Total sales", fmt.Sprint(job.TotalSales)),
		row("Processing time", fmt.Sprintf("%.2fs", job.ProcessingTimeSeconds)),
		row("Result file", job.ResultFileName),
	)
	if job.StorageResultFileURL != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, row("Stored at", job.StorageResultFileURL))
	}
	return boxStyle.Render(body)
}
