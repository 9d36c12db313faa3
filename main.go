package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elisa-itb/elisa/analysis"
	"github.com/elisa-itb/elisa/dashboard"
	"github.com/elisa-itb/elisa/history"
	"github.com/elisa-itb/elisa/notebook"
)

func isInteractive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// cliApp holds what every subcommand shares once flags are parsed.
type cliApp struct {
	cfgPath string
	cfg     *ConfigFile
	rc      RunConfig
	logger  *zap.Logger
	hist    *history.Manager
}

func (a *cliApp) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	rc, err := getRunConfig(cmd, cfg)
	if err != nil {
		return err
	}
	a.rc = rc
	a.logger = newLogger(rc.LogFile, rc.Verbose)

	dir := configDir()
	if err := os.MkdirAll(dir, 0o755); err == nil {
		hm, err := history.New(filepath.Join(dir, "history.db"), filepath.Join(dir, "history.jsonl"), a.logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to init history: %v\n", err)
		} else {
			a.hist = hm
		}
	}
	return nil
}

func (a *cliApp) close() {
	if a.hist != nil {
		a.hist.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

func (a *cliApp) controller(notify analysis.Notifier) (*analysis.Controller, error) {
	return analysis.NewController(analysis.ControllerConfig{
		BaseURL:    a.rc.AnalysisURL,
		StreamPath: a.rc.StreamPath,
		Transport:  analysis.NewHTTPTransport(a.rc.Timeout, a.rc.Verbose, a.logger),
		Logger:     a.logger,
		Notify:     notify,
	})
}

func (a *cliApp) dashboard() (*dashboard.Client, error) {
	return dashboard.New(dashboard.Config{
		APIURL:      a.rc.APIURL,
		AnalysisURL: a.rc.AnalysisURL,
		Timeout:     a.rc.Timeout,
		Logger:      a.logger,
	})
}

func (a *cliApp) renderer() renderer {
	return newRenderer(terminalWidth(), isInteractive(os.Stdout.Fd()))
}

func (a *cliApp) saveHistory(st analysis.State) {
	if a.hist == nil || (st.Status == analysis.StatusCancelled && len(st.Results) == 0) {
		return
	}
	if err := a.hist.Save(history.RecordFromState(st)); err != nil {
		a.logger.Warn("failed to save analysis history", zap.String("session", st.ID), zap.Error(err))
	}
}

func main() {
	a := &cliApp{}

	rootCmd := &cobra.Command{
		Use:   "elisa",
		Short: "ELISA campus electricity dashboard in the terminal",
		// RunE handles the default behavior (elisa "question")
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", filepath.Join(configDir(), "config.yaml"), "Config file")
	pf.StringP("api-url", "a", defaultAPIURL, "Dashboard API base URL")
	pf.String("analysis-url", defaultAnalysisURL, "Analysis API base URL")
	pf.StringP("model", "m", analysis.ModelGemini, "Analysis model: "+strings.Join(analysis.KnownModels, ", ")+" or a profile from config")
	pf.Int("timeout", defaultTimeoutSec, "Seconds to wait for a response to start")
	pf.String("log-file", "", "Log file (default ~/.elisa/elisa.log)")
	pf.BoolP("verbose", "v", false, "http & debug logging")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the Smart Analysis assistant",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, a, args)
		},
	}
	addAskFlags(askCmd)
	addAskFlags(rootCmd)
	rootCmd.RunE = askCmd.RunE
	rootCmd.AddCommand(askCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, a)
		},
	}
	historyCmd.Flags().IntP("limit", "n", 20, "Number of sessions to list")
	rootCmd.AddCommand(historyCmd)

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search analysis history",
		Long:  "Search prompts and answers. Use 'prompt:term' or 'result:term' to restrict the match.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.hist == nil {
				return fmt.Errorf("history manager not initialized")
			}
			if !a.hist.SearchAvailable() {
				return fmt.Errorf("search unavailable: SQLite was built without FTS5 (see 'elisa doctor')")
			}
			limit, _ := cmd.Flags().GetInt("limit")
			results, err := a.hist.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No matches found.")
				return nil
			}
			blue := color.New(color.FgBlue, color.Bold).SprintFunc()
			for _, r := range results {
				fmt.Printf("%s [%s] (%s): %s\n", blue(r.Timestamp.Format("2006-01-02 15:04")), shortID(r.SessionID), r.Kind, r.Preview)
			}
			return nil
		},
	}
	searchCmd.Flags().IntP("limit", "n", 50, "Maximum number of matches")
	rootCmd.AddCommand(searchCmd)

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, a, args[0])
		},
	}
	showCmd.Flags().Bool("notebook", false, "Show the notebook code instead of the results")
	showCmd.Flags().BoolP("json", "j", false, "Print the stored record as JSON")
	rootCmd.AddCommand(showCmd)

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and backend connectivity",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context(), a)
		},
	}
	rootCmd.AddCommand(doctorCmd)

	addDashboardCommands(rootCmd, a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	a.close()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addAskFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("suggest", false, "List suggested questions")
	cmd.Flags().BoolP("copy-code", "x", false, "Copy the notebook code to the clipboard when done")
	cmd.Flags().BoolP("json", "j", false, "Print the final session as JSON")
	cmd.Flags().Bool("no-tui", false, "Stream progress as plain lines even on a terminal")
}

func runAsk(cmd *cobra.Command, a *cliApp, args []string) error {
	if suggest, _ := cmd.Flags().GetBool("suggest"); suggest {
		for _, s := range suggestedQueries {
			fmt.Println(s.Query)
		}
		return nil
	}

	prompt := strings.Join(args, " ")
	stdinTTY := isInteractive(os.Stdin.Fd())
	if prompt == "" && !stdinTTY {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}

	noTUI, _ := cmd.Flags().GetBool("no-tui")
	jsonOut, _ := cmd.Flags().GetBool("json")
	if prompt == "" && stdinTTY && isInteractive(os.Stdout.Fd()) && !noTUI && !jsonOut {
		return runTUI(cmd.Context(), a)
	}
	return runPlainAsk(cmd, a, prompt)
}

func runTUI(ctx context.Context, a *cliApp) error {
	var prog *tea.Program
	ctrl, err := a.controller(func(err error) {
		if prog != nil {
			prog.Send(failureMsg{err: err})
		}
	})
	if err != nil {
		return err
	}
	defer ctrl.Reset()

	outliner, err := notebook.NewOutliner()
	if err != nil {
		a.logger.Warn("notebook outline disabled", zap.Error(err))
	}

	m := initialAskModel(ctx, ctrl, a.hist, outliner, a.logger, a.rc.Model, "")
	prog = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runPlainAsk(cmd *cobra.Command, a *cliApp, prompt string) error {
	ctx := cmd.Context()
	stderrTTY := isInteractive(os.Stderr.Fd())

	ctrl, err := a.controller(func(err error) {
		a.logger.Error("analysis failed", zap.Error(err))
	})
	if err != nil {
		return err
	}

	s, err := ctrl.Start(ctx, analysis.Query{Prompt: prompt, Model: a.rc.Model})
	if err != nil {
		return err
	}

	var last analysis.ProgressEvent
	for {
		select {
		case <-s.Changed():
		case <-s.Done():
		}
		st := s.State()
		if st.Progress != last && st.Status == analysis.StatusStreaming {
			last = st.Progress
			line := a.renderer().renderProgress(st.Progress)
			if stderrTTY {
				fmt.Fprintf(os.Stderr, "\r\033[K%s", line)
			} else {
				fmt.Fprintln(os.Stderr, line)
			}
		}
		if st.Status.Terminal() {
			break
		}
	}
	if stderrTTY {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}

	st := s.State()
	a.saveHistory(st)

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(history.RecordFromState(st)); err != nil {
			return err
		}
	} else {
		fmt.Print(a.renderer().renderState(st))
	}

	if copyCode, _ := cmd.Flags().GetBool("copy-code"); copyCode && st.Status == analysis.StatusCompleted {
		if err := copyNotebookCode(st.Notebook); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	switch st.Status {
	case analysis.StatusFailed:
		return st.Err
	case analysis.StatusCancelled:
		return context.Canceled
	}
	return nil
}

func copyNotebookCode(raw json.RawMessage) error {
	nb, err := notebook.Decode(raw)
	if err != nil {
		return err
	}
	code := nb.Code()
	if code == "" {
		return fmt.Errorf("no notebook code to copy")
	}
	return clipboard.WriteAll(code)
}

func runHistory(cmd *cobra.Command, a *cliApp) error {
	if a.hist == nil {
		return fmt.Errorf("history manager not initialized")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	sessions, err := a.hist.ListRecent(limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No analyses yet.")
		return nil
	}

	if !isInteractive(os.Stdout.Fd()) {
		for _, s := range sessions {
			fmt.Printf("%s  %s  %-9s %-8s %s\n", shortID(s.ID), s.Timestamp.Format("2006-01-02 15:04"), s.Status, s.Model, s.Summary)
		}
		return nil
	}

	final, err := tea.NewProgram(newHistoryModel(sessions), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if hm, ok := final.(historyModel); ok && hm.selected != nil {
		return runShow(cmd, a, hm.selected.ID)
	}
	return nil
}

func runShow(cmd *cobra.Command, a *cliApp, partial string) error {
	if a.hist == nil {
		return fmt.Errorf("history manager not initialized")
	}
	id, err := a.hist.Resolve(partial)
	if err != nil {
		return err
	}
	rec, err := a.hist.Get(id)
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	r := a.renderer()
	if nbOnly, _ := cmd.Flags().GetBool("notebook"); nbOnly {
		outliner, err := notebook.NewOutliner()
		if err != nil {
			return err
		}
		out, err := r.renderNotebook(cmd.Context(), rec.Notebook, outliner)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	st := rec.State()
	fmt.Println(r.style(labelStyle, "› "+st.Query.Prompt))
	fmt.Println()
	fmt.Print(r.renderState(st))
	return nil
}

func runDoctor(ctx context.Context, a *cliApp) {
	green := color.New(color.FgGreen).PrintfFunc()
	yellow := color.New(color.FgYellow).PrintfFunc()
	red := color.New(color.FgRed).PrintfFunc()

	fmt.Println("ELISA Doctor")
	fmt.Println("============")

	if history.CheckFTS() {
		green("✅ SQLite FTS5   : Enabled (Search Available)\n")
	} else {
		red("❌ SQLite FTS5   : Disabled\n")
		fmt.Println("   -> FIX: Build with '-tags sqlite_fts5'")
	}

	if _, err := os.Stat(a.cfgPath); err == nil {
		green("✅ Configuration : Found (%s)\n", a.cfgPath)
	} else {
		yellow("⚠️  Configuration : Missing (%s)\n", a.cfgPath)
	}

	if analysis.IsKnownModel(a.rc.Model) {
		green("✅ Model         : %s\n", a.rc.Model)
	} else {
		yellow("⚠️  Model         : %s (not one of %s)\n", a.rc.Model, strings.Join(analysis.KnownModels, ", "))
	}

	client, err := a.dashboard()
	if err != nil {
		red("❌ Dashboard API : %v\n", err)
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if opts, err := client.Faculties(pingCtx); err != nil {
		red("❌ Dashboard API : %s (%v)\n", a.rc.APIURL, err)
	} else {
		green("✅ Dashboard API : %s (%d faculties)\n", a.rc.APIURL, len(opts))
	}
	green("ℹ️  Analysis API  : %s%s\n", a.rc.AnalysisURL, a.rc.StreamPath)
}
