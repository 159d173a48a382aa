// Package main is the CLI entry point for focusguard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/config"
	"github.com/eliteGoblin/focusd/focusguard/internal/daemon"
	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
	"github.com/eliteGoblin/focusd/focusguard/internal/infra"
	"github.com/eliteGoblin/focusd/focusguard/internal/policy"
	"github.com/eliteGoblin/focusd/focusguard/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	// The browser launches the host as `focusguard chrome-extension://<id>/`.
	if len(os.Args) > 1 && strings.HasPrefix(os.Args[1], "chrome-extension://") {
		os.Args = append([]string{os.Args[0], "host"}, os.Args[1:]...)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusguard",
	Short: "Focus guard - blocks distracting sites while you work",
	Long: `focusguard is the native messaging host behind the focus guard browser
extension. The browser starts it on demand; it decides which pages are
blocked, warns when you drift off-topic in AI mode, and blocks the page
for the rest of the browser session if you stay.

The host's encrypted store is the authority for focus settings; the
remaining commands inspect and edit that store directly.`,
	Version:      Version,
	SilenceUsage: true,
}

// Hidden host command - started by the browser over native messaging
var hostCmd = &cobra.Command{
	Use:    "host [origin]",
	Hidden: true,
	Args:   cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{
		UnknownFlags: true, // Windows passes --parent-window
	},
	RunE: runHost,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install default settings and register the native messaging host",
	Long: `Writes default settings for anything not yet configured, migrates the
legacy flat block list into the Custom group, writes config.yaml if missing,
and registers the host manifest with every supported browser found.

Safe to run repeatedly.`,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the native messaging host registration",
	Long:  `Removes the host manifest from every browser. Settings are kept.`,
	RunE:  runUninstall,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show focus settings and host registration",
	RunE:  runStatus,
}

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Report whether a URL would be blocked",
	Long: `Evaluates the URL against the session block list and the manual-mode
rules (allow list first, then enabled block groups). Nothing is changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	dataDir      string
	ephemeral    bool
	extensionIDs []string
	jsonOutput   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.focusguard)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep settings in memory only")
	installCmd.Flags().StringSliceVar(&extensionIDs, "extension-id", nil, "Extension id allowed to connect (repeatable)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
	addSettingsCommands(rootCmd)
}

func runHost(cmd *cobra.Command, args []string) error {
	origin := ""
	if len(args) > 0 {
		origin = args[0]
	}

	session := infra.NewBrowserSession()
	a, err := openApp(session.ID())
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := a.settings.Install(ctx); err != nil {
		logger.Warn("failed to install default settings", zap.Error(err))
	}
	if store, ok := a.store.(*infra.EncryptedStore); ok {
		removed, err := store.PruneSessions(ctx, session.Alive)
		if err != nil {
			logger.Warn("failed to prune ended browser sessions", zap.Error(err))
		} else if removed > 0 {
			logger.Info("pruned ended browser sessions", zap.Int("count", removed))
		}
	}

	classifier, err := newClassifier(a.config.Classifier, logger)
	if err != nil {
		return err
	}

	host := daemon.NewHost(
		daemon.HostConfig{
			RequestTimeout: a.config.RequestTimeout,
			MaxHandlers:    daemon.DefaultHostConfig().MaxHandlers,
		},
		os.Stdin,
		os.Stdout,
		classifier,
		logger,
	)

	scheduler := infra.NewTimerScheduler(ctx, nil, logger)
	defer scheduler.Stop()

	engineConfig := usecase.DefaultEngineConfig()
	engineConfig.BlockedPageURL = blockedPageURL(a.config, origin)
	engineConfig.ParseFailurePolicy = a.config.MatcherPolicy()

	engine := usecase.NewEngine(
		engineConfig,
		a.settings,
		a.store,
		scheduler,
		host,
		host,
		policy.NewClassifierJudge(policy.NewKeywordJudge(), classifier, logger),
		logger,
	)
	scheduler.SetHandler(func(ctx context.Context, key domain.AlarmKey) {
		d := engine.OnAlarm(ctx, key)
		logger.Debug("alarm handled",
			zap.Stringer("alarm", key),
			zap.String("action", string(d.Action)),
			zap.String("reason", d.Reason))
	})

	logger.Info("host starting",
		zap.String("origin", origin),
		zap.String("session", session.ID()),
		zap.String("version", Version))
	return host.Run(ctx, engine)
}

// newClassifier returns nil (an untyped nil interface) when no API key is configured.
func newClassifier(cfg config.ClassifierConfig, logger *zap.Logger) (domain.ContentClassifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	gemini := infra.NewGeminiClassifier(cfg.APIKey, cfg.Endpoint, logger)
	cached, err := infra.NewCachedClassifier(gemini, infra.ClassifierCacheConfig{
		MaxSize: cfg.CacheSize,
		TTL:     cfg.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier cache: %w", err)
	}
	return cached, nil
}

// blockedPageURL prefers the configured page, then the calling extension's own page.
func blockedPageURL(cfg config.Config, origin string) string {
	if cfg.BlockedPageURL != "" {
		return cfg.BlockedPageURL
	}
	if strings.HasPrefix(origin, "chrome-extension://") {
		return strings.TrimSuffix(origin, "/") + "/extension/blocked.html"
	}
	return usecase.DefaultEngineConfig().BlockedPageURL
}

func runInstall(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()

	written, err := config.WriteDefault(paths.ConfigPath, extensionIDs)
	if err != nil {
		return err
	}
	if written {
		fmt.Printf("Wrote %s\n", paths.ConfigPath)
	}

	a, err := openApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.settings.Install(cmd.Context())
	if err != nil {
		return err
	}
	if len(result.DefaultsWritten) > 0 {
		fmt.Printf("Default settings written: %s\n", strings.Join(result.DefaultsWritten, ", "))
	} else {
		fmt.Println("Settings already configured")
	}
	if result.MigratedDomains > 0 {
		fmt.Printf("Migrated %d legacy blocked domains into the Custom group\n", result.MigratedDomains)
	}

	ids := extensionIDs
	if len(ids) == 0 {
		ids = a.config.ExtensionIDs
	}
	if len(ids) == 0 {
		fmt.Println(yellow("No extension id configured; pass --extension-id to register the host"))
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	registered := 0
	for _, b := range paths.Browsers() {
		dir := paths.ManifestDirs[b]
		if !browserPresent(dir) {
			continue
		}
		installer := infra.NewManifestInstaller(dir, ids)
		if installer.IsInstalled() && !installer.NeedsUpdate(execPath) {
			fmt.Printf("  %s %s (up to date)\n", green("✓"), b)
			registered++
			continue
		}
		if err := installer.Install(execPath); err != nil {
			fmt.Printf("  %s %s: %v\n", red("✗"), b, err)
			continue
		}
		fmt.Printf("  %s %s -> %s\n", green("✓"), b, installer.ManifestPath())
		registered++
	}
	if registered == 0 {
		fmt.Println(yellow("No supported browser found; host not registered"))
	}
	return nil
}

// browserPresent reports whether the browser's profile root exists.
func browserPresent(manifestDir string) bool {
	_, err := os.Stat(parentDir(manifestDir))
	return err == nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	for _, b := range paths.Browsers() {
		installer := infra.NewManifestInstaller(paths.ManifestDirs[b], nil)
		if !installer.IsInstalled() {
			continue
		}
		if err := installer.Uninstall(); err != nil {
			fmt.Printf("  %s %s: %v\n", red("✗"), b, err)
			continue
		}
		fmt.Printf("  %s removed %s\n", green("✓"), installer.ManifestPath())
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp("")
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	settings, err := a.settings.Load(ctx)
	if err != nil {
		return err
	}

	fmt.Println(bold("\n=== focusguard Status ==="))
	fmt.Printf("Mode:        %s\n", cyan(string(settings.FocusMode)))
	fmt.Printf("Topic:       %s\n", settings.CurrentFocusTopic)
	fmt.Printf("Escalation:  warn after %d min, block %d min later\n", settings.WarnMinutes, settings.HardBlockMinutes)
	if a.config.Classifier.Enabled() {
		fmt.Printf("Classifier:  %s\n", green("enabled"))
	} else {
		fmt.Printf("Classifier:  %s\n", gray("disabled (keyword heuristic only)"))
	}

	fmt.Printf("\nAllowed (%d):\n", len(settings.AllowedDomains))
	for _, e := range settings.AllowedDomains {
		fmt.Printf("  - %s\n", e.Raw())
	}

	fmt.Println("\nBlock groups:")
	printGroups(settings.BlockedGroups)

	blocked, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nBlocked this session (%d):\n", len(blocked))
	for _, url := range blocked {
		fmt.Printf("  - %s\n", red(url))
	}

	fmt.Println("\nHost registration:")
	paths := resolvePaths()
	if len(paths.Browsers()) == 0 {
		fmt.Println(gray("  not supported on this platform"))
	}
	for _, b := range paths.Browsers() {
		installer := infra.NewManifestInstaller(paths.ManifestDirs[b], nil)
		state := gray("not registered")
		if installer.IsInstalled() {
			state = green("registered")
		}
		fmt.Printf("  %-9s %s\n", b, state)
	}

	fmt.Printf("\nData:   %s\n", paths.DataDir)
	fmt.Printf("Config: %s\n", paths.ConfigPath)
	fmt.Printf("Log:    %s\n", paths.LogPath)
	fmt.Println(bold("========================="))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := openApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	engineConfig := usecase.DefaultEngineConfig()
	engineConfig.ParseFailurePolicy = a.config.MatcherPolicy()
	engine := usecase.NewEngine(engineConfig, a.settings, a.store, nil, nil, nil, nil, a.logger)

	d, err := engine.Evaluate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	switch d.Action {
	case domain.ActionRedirect:
		fmt.Printf("%s %s (%s)\n", red("BLOCKED"), args[0], d.Reason)
	case domain.ActionAllow:
		fmt.Printf("%s %s (%s)\n", green("ALLOWED"), args[0], d.Reason)
	default:
		fmt.Printf("%s %s (%s)\n", gray("NO RULE"), args[0], d.Reason)
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("focusguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
