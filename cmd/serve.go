package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/intentcfg/internal/api"
	"github.com/joescharf/intentcfg/internal/daemon"
)

var serveDetach bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the REST API server under /api/v1.
By default it listens on port 8080. Use --port or serve.port to change it,
and --detach to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveDetach {
			return serveStartRun()
		}
		return serveForegroundRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a detached API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a detached API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
	serveCmd.Flags().BoolVarP(&serveDetach, "detach", "d", false, "Run in the background")

	serveCmd.AddCommand(serveStopCmd, serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func serveStateFile() *daemon.StateFile {
	return daemon.NewStateFile(filepath.Join(viper.GetString("state_dir"), "intentcfg-serve.state"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "intentcfg-serve.log")
}

func serveAddr() string {
	return fmt.Sprintf(":%d", viper.GetInt("serve.port"))
}

func serveForegroundRun() error {
	sf := serveStateFile()
	if st, running := sf.Running(); running && st.PID != os.Getpid() {
		return fmt.Errorf("server already running (pid %d, %s)", st.PID, st.Addr)
	}

	svc, err := getServices()
	if err != nil {
		return err
	}
	log := getLogger()

	srv := api.NewServer(svc.versions, svc.commands, svc.harness, log, actor())
	httpSrv := &http.Server{
		Addr:              serveAddr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := os.MkdirAll(filepath.Dir(sf.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := sf.Write(daemon.ServerState{
		Addr:    httpSrv.Addr,
		DBPath:  viper.GetString("db_path"),
		Version: buildVersion,
	}); err != nil {
		return fmt.Errorf("write server state: %w", err)
	}
	defer func() { _ = sf.Remove() }()

	ctx, stop := signal.NotifyContext(context.Background(), daemon.ShutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", zap.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()
	ui.Info("Serving API at http://localhost%s/api/v1", httpSrv.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// serveStartRun re-executes the binary as a detached foreground server.
func serveStartRun() error {
	sf := serveStateFile()
	if st, running := sf.Running(); running {
		return fmt.Errorf("server already running (pid %d, %s)", st.PID, st.Addr)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := []string{"serve", "--port", fmt.Sprint(viper.GetInt("serve.port"))}
	if cfg, _ := rootCmd.PersistentFlags().GetString("config"); cfg != "" {
		args = append(args, "--config", cfg)
	}
	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	daemon.Detach(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Started API server (pid %d) on %s", child.Process.Pid, serveAddr())
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	sf := serveStateFile()
	st, running := sf.Running()
	if !running {
		return fmt.Errorf("server is not running")
	}
	if err := sf.Terminate(); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	for i := 0; i < 50; i++ {
		if _, alive := sf.Running(); !alive {
			ui.Success("Stopped API server (pid %d)", st.PID)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	ui.Warning("Server did not exit after SIGTERM; killing pid %d", st.PID)
	if err := sf.Kill(); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = sf.Remove()
	return nil
}

func serveStatusRun() error {
	st, running := serveStateFile().Running()
	if !running {
		ui.Info("API server: %s", "not running")
		return nil
	}
	if ui.JSON {
		return ui.PrintJSON(st)
	}
	ui.Success("API server running (pid %d) on %s since %s", st.PID, st.Addr, st.StartedAt.Local().Format(time.DateTime))
	ui.Info("Database: %s", st.DBPath)
	return nil
}
