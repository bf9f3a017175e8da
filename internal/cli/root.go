// Package cli implements the plannerctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"study-planner/internal/config"
	"study-planner/internal/logger"
	"study-planner/internal/model"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

var (
	dbPath     string
	formatFlag string
	telegramID int64
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "plannerctl",
	Short: "Inspect and replan study plans",
	Long:  "Operator tool for the study planner. Reads the same database as the bot and runs the planner without Telegram.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $DATABASE_URL or study_planner.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().Int64VarP(&telegramID, "user", "u", 0, "Telegram ID of the user to act on")
}

// app holds the services a command needs.
type app struct {
	db       *gorm.DB
	log      *logger.Logger
	users    *repository.UserRepository
	tasks    *service.TaskService
	policies *service.PolicyService
	planner  *service.PlannerService
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DatabaseURL = dbPath
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	db, err := repository.NewDB(cfg.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}

	notifier := service.NewLogNotifier(log)
	locks := service.NewUserLocks()
	taskRepo := repository.NewTaskRepository(db)
	policies := service.NewPolicyService(repository.NewPolicyRepository(db), cfg.DefaultPolicy)
	return &app{
		db:       db,
		log:      log,
		users:    repository.NewUserRepository(db),
		tasks:    service.NewTaskService(taskRepo, repository.NewCourseRepository(db), locks, notifier, log, nil),
		policies: policies,
		planner: service.NewPlannerService(taskRepo, policies, service.PlannerOptions{
			HorizonDays: cfg.HorizonDays,
			Window:      cfg.Window,
			Location:    cfg.Location,
			Notifier:    notifier,
			Logger:      log,
			Locks:       locks,
		}),
	}, nil
}

func (a *app) Close() {
	a.log.Sync()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// user resolves the --user flag.
func (a *app) user(ctx context.Context) (*model.User, error) {
	if telegramID == 0 {
		return nil, fmt.Errorf("--user is required")
	}
	return a.users.FindByTelegramID(ctx, telegramID)
}

// withUser opens the app, resolves the user and runs fn, exiting on error.
func withUser(cmd *cobra.Command, fn func(a *app, user *model.User) error) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	user, err := a.user(cmd.Context())
	if err != nil {
		exitErr("find user", err)
	}
	if err := fn(a, user); err != nil {
		exitErr(cmd.Name(), err)
	}
}

// output writes v as indented JSON, or through text when --format=text.
func output(cmd *cobra.Command, v interface{}, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	switch formatFlag {
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "text":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown format %q", formatFlag)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
