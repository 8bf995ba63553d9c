package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/classquiz/internal/auth"
	"github.com/pavelanni/classquiz/internal/classroom"
	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/handler"
	appI18n "github.com/pavelanni/classquiz/internal/i18n"
	"github.com/pavelanni/classquiz/internal/model"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: read .env:", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "classquiz",
		Short: "Classroom worksheet grading server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), approveCmd(), teachersCmd(), importStudentsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `classquiz --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addStoreFlags registers the document store and logging flags every command shares.
func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("store", "sqlite", "Document store backend (memory, sqlite, bolt)")
	f.String("db", "classquiz.db", "Database file for the sqlite or bolt store")
	f.String("app-id", "default", "Application namespace inside the store")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("timezone", "Asia/Seoul", "Time zone for submission times and export file names")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "ko", "UI language (ko, en)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /quiz)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Duration("session-ttl", auth.DefaultSessionTTL, "Login session lifetime")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a class score table as CSV",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("teacher", "", "Teacher code, uid or email (required)")
	f.String("class", "", "Class group (default: first class)")
	f.StringP("output", "o", "", "Output file path (- for stdout, default: dated file name)")
	_ = cmd.MarkFlagRequired("teacher")
	return cmd
}

func approveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <uid|email>",
		Short: "Approve a pending teacher account",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprove,
	}
	addStoreFlags(cmd)
	return cmd
}

func teachersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teachers",
		Short: "List teacher accounts and their codes",
		RunE:  runTeachers,
	}
	addStoreFlags(cmd)
	return cmd
}

func importStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-students",
		Short: "Import a roster of \"class hakbun name code\" lines",
		RunE:  runImportStudents,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("teacher", "", "Teacher code, uid or email (required)")
	f.StringP("file", "f", "-", "Roster file (- for stdin)")
	_ = cmd.MarkFlagRequired("teacher")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CLASSQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("classquiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/classquiz")
	v.AddConfigPath("/etc/classquiz")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// openService opens the configured store and checks it is reachable. A
// persistent store without a path is a configuration error. Wall-clock
// strings are rendered in the configured time zone.
func openService(ctx context.Context, v *viper.Viper) (*classroom.Service, func(), error) {
	driver := strings.ToLower(strings.TrimSpace(v.GetString("store")))
	path := strings.TrimSpace(v.GetString("db"))
	if driver != "memory" && path == "" {
		return nil, nil, fmt.Errorf("%w: no database path for the %s store", classroom.ErrConfigMissing, driver)
	}
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: time zone %q: %v", classroom.ErrInvalidInput, v.GetString("timezone"), err)
	}
	st, err := docstore.Open(driver, path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	closeStore := func() {
		if err := st.Close(); err != nil {
			slog.Warn("close store", "error", err)
		}
	}

	paths := model.Paths{AppID: v.GetString("app-id")}
	svc := classroom.New(st, auth.New(st, paths, v.GetDuration("session-ttl")), paths, loc)
	if err := svc.CheckStore(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return svc, closeStore, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.AppConfig{
		Lang:          lang,
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
	}

	var h *handler.Handler
	svc, closeStore, err := openService(ctx, v)
	switch {
	case err == nil:
		defer closeStore()
		if h, err = handler.New(svc, cfg); err != nil {
			return fmt.Errorf("create handler: %w", err)
		}
		go cleanupSessions(ctx, svc, time.Hour)
	case classroom.KindOf(err).Fatal():
		slog.Error("store unavailable, serving error screen only", "kind", classroom.KindOf(err), "error", err)
		h = handler.NewFatal(err, cfg)
	default:
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"store", v.GetString("store"),
		"db", v.GetString("db"),
		"app_id", v.GetString("app-id"),
		"lang", lang,
		"base_path", basePath,
		"timezone", v.GetString("timezone"),
		"session_ttl", v.GetDuration("session-ttl"),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// cleanupSessions drops expired login sessions now and then every interval.
func cleanupSessions(ctx context.Context, svc *classroom.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := svc.Auth().CleanupExpiredSessions(ctx)
		if err != nil {
			slog.Warn("session cleanup failed", "error", err)
		} else if n > 0 {
			slog.Info("expired sessions removed", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	svc, closeStore, err := openService(ctx, v)
	if err != nil {
		return err
	}
	defer closeStore()

	tenantID, err := svc.TenantOf(ctx, v.GetString("teacher"))
	if err != nil {
		return fmt.Errorf("resolve teacher: %w", err)
	}
	table, err := svc.ScoreTable(ctx, tenantID, v.GetString("class"))
	if err != nil {
		return fmt.Errorf("score table: %w", err)
	}

	outPath := v.GetString("output")
	if outPath == "" {
		outPath = classroom.CSVFilename(table.Class, time.Now().In(svc.Location()))
	}
	var w io.Writer
	if outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := classroom.WriteCSV(w, table); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	slog.Info("exported scores", "tenant", tenantID, "class", table.Class, "students", len(table.Rows), "output", outPath)
	return nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	svc, closeStore, err := openService(ctx, v)
	if err != nil {
		return err
	}
	defer closeStore()

	t, err := svc.Approve(ctx, args[0])
	if err != nil {
		return fmt.Errorf("approve %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "approved %s, teacher code %s\n", t.Email, model.TeacherCode(t.UID))
	return nil
}

func runTeachers(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	svc, closeStore, err := openService(ctx, v)
	if err != nil {
		return err
	}
	defer closeStore()

	teachers, err := svc.ListTeachers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tUID\tEMAIL\tSTATUS\tCREATED")
	for _, t := range teachers {
		created := time.UnixMilli(t.CreatedAt).Format("2006-01-02 15:04")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", model.TeacherCode(t.UID), t.UID, t.Email, t.Status, created)
	}
	return tw.Flush()
}

func runImportStudents(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	var r io.Reader = cmd.InOrStdin()
	if path := v.GetString("file"); path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open roster: %w", err)
		}
		defer f.Close()
		r = f
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}

	svc, closeStore, err := openService(ctx, v)
	if err != nil {
		return err
	}
	defer closeStore()

	tenantID, err := svc.TenantOf(ctx, v.GetString("teacher"))
	if err != nil {
		return fmt.Errorf("resolve teacher: %w", err)
	}
	res, err := svc.ImportStudents(ctx, tenantID, string(text))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %d, skipped %d duplicate and %d short lines\n",
		len(res.Added), res.SkippedDuplicate, res.SkippedShort)
	if len(res.NewClasses) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "new classes opened: %s\n", strings.Join(res.NewClasses, ", "))
	}
	return nil
}
