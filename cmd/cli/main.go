package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:           "ytrelay",
		Short:         "ytrelay CLI - fetch and relay online media through a ytrelay server",
		Long:          `A command-line client for inspecting media, relaying streams and running background downloads on a ytrelay server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(newConfigCmd())
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var infoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Show media metadata and available qualities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		info, err := newAPIClient(serverURL).Info(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderInfo(info))
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start [url]",
	Short: "Start a background download on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		quality, err := qualityFlag(cmd)
		if err != nil {
			return err
		}
		watch, _ := cmd.Flags().GetBool("watch")
		fetch, _ := cmd.Flags().GetBool("fetch")
		outDir, _ := cmd.Flags().GetString("output-dir")

		client := newAPIClient(serverURL)
		started, err := client.Start(cmd.Context(), args[0], quality)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Download started\n")
		fmt.Fprintf(out, "Task:   %s\n", started.TaskID)
		fmt.Fprintf(out, "Status: %s\n", started.Status)

		if !watch && !fetch {
			return nil
		}

		printer := newProgressPrinter(cmd.ErrOrStderr())
		final, err := client.Watch(cmd.Context(), started.TaskID, printer.Print)
		if err != nil {
			return err
		}
		if final.Status == domain.ProgressError {
			return fmt.Errorf("download failed: %s", final.Message)
		}
		if !fetch {
			return nil
		}

		return fetchFile(cmd.Context(), client, final.Filename, filepath.Join(outDir, final.Filename), cmd)
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream [url]",
	Short: "Relay media straight from the source into a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		quality, err := qualityFlag(cmd)
		if err != nil {
			return err
		}
		mode, _ := cmd.Flags().GetString("mode")
		output, _ := cmd.Flags().GetString("output")

		if output == "" {
			output = "video.mp4"
			if domain.StreamMode(mode) == domain.StreamAudio {
				output = "audio.m4a"
			}
		}

		file, err := os.Create(output)
		if err != nil {
			return err
		}
		defer file.Close()

		counter := newByteCounter(file, cmd.ErrOrStderr())
		_, n, err := newAPIClient(serverURL).Stream(cmd.Context(), streamRequest{
			URL:     args[0],
			Mode:    mode,
			Quality: quality,
		}, counter)
		counter.Done()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("server sent no data for %s", args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", output, sizeOrUnknown(n))
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [filename]",
	Short: "Download a finished background file; the server deletes it afterwards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		outDir, _ := cmd.Flags().GetString("output-dir")
		return fetchFile(cmd.Context(), newAPIClient(serverURL), args[0], filepath.Join(outDir, args[0]), cmd)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		var health struct {
			Status  string `json:"status"`
			Version string `json:"version"`
			Tasks   struct {
				Active int `json:"active"`
			} `json:"tasks"`
			Subscribers int `json:"subscribers"`
		}
		if err := newAPIClient(serverURL).getJSON(cmd.Context(), "/health", &health); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Server:       %s (%s)\n", health.Status, health.Version)
		fmt.Fprintf(out, "Active tasks: %d\n", health.Tasks.Active)
		fmt.Fprintf(out, "Subscribers:  %d\n", health.Subscribers)
		return nil
	},
}

func init() {
	startCmd.Flags().IntP("quality", "q", 0, "Maximum video height, e.g. 720")
	startCmd.Flags().BoolP("watch", "w", false, "Follow progress until the task ends")
	startCmd.Flags().Bool("fetch", false, "Watch, then download the finished file")
	startCmd.Flags().StringP("output-dir", "d", ".", "Directory for --fetch")
	streamCmd.Flags().StringP("mode", "m", "video", "What to relay (video, audio)")
	streamCmd.Flags().IntP("quality", "q", 0, "Exact video height, e.g. 720")
	streamCmd.Flags().StringP("output", "o", "", "Output file (default video.mp4 or audio.m4a)")
	fetchCmd.Flags().StringP("output-dir", "d", ".", "Output directory")
}

// qualityFlag returns nil when --quality was not given
func qualityFlag(cmd *cobra.Command) (*int, error) {
	if !cmd.Flags().Changed("quality") {
		return nil, nil
	}
	q, err := cmd.Flags().GetInt("quality")
	if err != nil {
		return nil, err
	}
	if q <= 0 {
		return nil, fmt.Errorf("quality must be positive, got %d", q)
	}
	return &q, nil
}

func fetchFile(ctx context.Context, client *apiClient, filename, dest string, cmd *cobra.Command) error {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}

	counter := newByteCounter(file, cmd.ErrOrStderr())
	n, err := client.Fetch(ctx, filename, counter)
	counter.Done()
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", dest, sizeOrUnknown(n))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
