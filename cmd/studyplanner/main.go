package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"study-planner/internal/bot"
	"study-planner/internal/config"
	"study-planner/internal/logger"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

const jobTimeout = 2 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateBot(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	policyRepo := repository.NewPolicyRepository(db)

	notifier := service.NewMultiNotifier(service.NewLogNotifier(log))
	locks := service.NewUserLocks()
	policySvc := service.NewPolicyService(policyRepo, cfg.DefaultPolicy)
	plannerSvc := service.NewPlannerService(taskRepo, policySvc, service.PlannerOptions{
		HorizonDays: cfg.HorizonDays,
		Window:      cfg.Window,
		Location:    cfg.Location,
		Notifier:    notifier,
		Logger:      log,
		Locks:       locks,
	})
	taskSvc := service.NewTaskService(taskRepo, courseRepo, locks, notifier, log, nil)

	scheduler := service.NewSchedulerService(cfg.Location)
	reports := &reportJob{scheduler: scheduler}

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Deps{
		Users:            userRepo,
		Tasks:            taskSvc,
		Courses:          service.NewCourseService(courseRepo),
		Policies:         policySvc,
		Planner:          plannerSvc,
		Reminder:         service.NewReminderService(plannerSvc),
		Logger:           log,
		OnIntervalChange: reports.reschedule,
	}, cfg.ReportInterval)
	if err != nil {
		log.Fatal("start bot", "error", err)
	}
	notifier.Attach(telegramBot)

	reports.run = func() {
		runJob(ctx, log, "report", telegramBot.SendDailyReports)
	}
	if cfg.ReportInterval > 0 {
		if err := reports.reschedule(cfg.ReportInterval); err != nil {
			log.Fatal("schedule reports", "error", err)
		}
	}
	if _, err := scheduler.ScheduleSpec(cfg.WeeklyReplanSpec, func() {
		runJob(ctx, log, "weekly replan", telegramBot.ReplanAllUsers)
	}); err != nil {
		log.Fatal("schedule weekly replan", "spec", cfg.WeeklyReplanSpec, "error", err)
	}
	if _, err := scheduler.ScheduleDaily(cfg.Window.Start, func() {
		runJob(ctx, log, "daily recovery", telegramBot.ReplanAllUsers)
	}); err != nil {
		log.Fatal("schedule daily recovery", "error", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info("study planner bot started", "horizon_days", cfg.HorizonDays, "report_interval", cfg.ReportInterval)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bot stopped with error", "error", err)
		return
	}
	log.Info("shutdown complete")
}

// reportJob owns the cron entry of the periodic report so /interval can
// move it while the scheduler is running.
type reportJob struct {
	mu        sync.Mutex
	scheduler *service.SchedulerService
	entry     cron.EntryID
	run       func()
}

func (r *reportJob) reschedule(interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.scheduler.ScheduleInterval(interval, func() { r.run() })
	if err != nil {
		return err
	}
	if r.entry != 0 {
		r.scheduler.Remove(r.entry)
	}
	r.entry = id
	return nil
}

func runJob(ctx context.Context, log *logger.Logger, name string, job func(context.Context) error) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	if err := job(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("scheduled job failed", "job", name, "error", err)
	}
}
