package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-planner/internal/logger"
	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageCourse
	stageType
	stageEstimate
	stageDue
	stagePriority
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbReplanPrefix   = "replan:"
	cbSlotDonePrefix = "slotdone:"
	cbSlotSkipPrefix = "slotskip:"
)

const (
	btnSkip          = "⏭️ Skip"
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Back"
	btnCancelDialog  = "⏪ Cancel input"
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelToday   = "☀️ Today"
	menuLabelWeek    = "🗓 Week"
	menuLabelHelp    = "ℹ️ Help"
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// Deps groups the services the bot talks to.
type Deps struct {
	Users    *repository.UserRepository
	Tasks    *service.TaskService
	Courses  *service.CourseService
	Policies *service.PolicyService
	Planner  *service.PlannerService
	Reminder *service.ReminderService
	Logger   *logger.Logger
	// OnIntervalChange reschedules the periodic report. It may be nil.
	OnIntervalChange func(time.Duration) error
}

// Bot aggregates Telegram API with services and delivers planner events.
type Bot struct {
	api           *tgbotapi.BotAPI
	deps          Deps
	log           *logger.Logger
	interval      time.Duration
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, deps Deps, reportInterval time.Duration) (*Bot, error) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	_ = tgbotapi.SetLogger(log)

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:           api,
		deps:          deps,
		log:           log,
		interval:      reportInterval,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error("handle callback", "error", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error("handle message", "error", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Info("command", "from", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "plan":
		return b.handlePlan(ctx, msg)
	case "week":
		return b.handleWeek(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "replan":
		return b.handleReplan(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "deadlines":
		return b.handleDeadlines(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "policy":
		return b.handlePolicy(ctx, msg)
	case "courses":
		return b.handleCourses(ctx, msg)
	case "interval":
		return b.handleInterval(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I plan your study sessions around your deadlines.</b>\n\n"+
			"Add tasks with /newtask, then send /plan to spread them over the week. "+
			"Check sessions off in /today; anything you miss is moved with /replan.\n\nSee /help for all commands.",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /newtask — add a task step by step\n" +
		"• /tasks — open tasks with complete and delete buttons\n" +
		"• /plan [pomodoro=50 break=10 max=180 cram=on] — rebuild the weekly plan\n" +
		"• /week — the plan by day\n" +
		"• /today — today's sessions, check them off or skip\n" +
		"• /replan [id] — move missed sessions\n" +
		"• /complete &lt;id&gt; [minutes] — finish a task\n" +
		"• /edit &lt;id&gt; due=2025-06-20 est=2h prio=2 — change a task and replan it\n" +
		"• /delete &lt;id&gt; — delete a task\n" +
		"• /deadlines — urgent, at-risk and upcoming tasks\n" +
		"• /stats — progress and estimate accuracy\n" +
		"• /policy [key=value ...] — show or change session settings\n" +
		"• /courses — your courses\n" +
		"• /interval &lt;hours&gt; — how often reports are sent\n" +
		"• /report — send the report now\n" +
		"• /cancel — cancel the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.deps.Reminder.DailySummary(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		state.input.Title = text
		state.stage = stageCourse
		return b.sendWithReplyMarkup(msg.Chat.ID, "🎓 Which course is it for? (or Skip)", b.courseKeyboard(ctx, msg.From))
	case stageCourse:
		if !isSkipInput(text) {
			state.input.Course = text
		}
		state.stage = stageType
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 What kind of task is it?", typeKeyboard())
	case stageType:
		if !isSkipInput(text) {
			state.input.Type = text
		}
		state.stage = stageEstimate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏱ How long will it take? Minutes (<code>90</code>) or hours (<code>1.5h</code>). Skip means 60 minutes.", skipKeyboard())
	case stageEstimate:
		if !isSkipInput(text) {
			mins, err := parseEstimate(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Send a positive number of minutes, like <code>45</code>, or hours like <code>2h</code>.", skipKeyboard())
			}
			state.input.EstMins = mins
		}
		state.stage = stageDue
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ When is it due? <code>2025-11-30</code> or <code>2025-11-30 18:00</code>. Skip means in a week.", skipKeyboard())
	case stageDue:
		if !isSkipInput(text) {
			due, err := parseDue(text, b.deps.Planner.Location())
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "I cannot read that date. Use <code>2025-11-30</code> or <code>2025-11-30 18:00</code>.", skipKeyboard())
			}
			state.input.DueAt = &due
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "❗ Priority from 1 (highest) to 5? Skip means 3.", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			p, err := strconv.Atoi(text)
			if err != nil || p < 1 || p > 5 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Priority is a number from 1 to 5.", priorityKeyboard())
			}
			state.input.Priority = p
		}
		err := b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, input service.TaskInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.deps.Tasks.CreateTask(ctx, user.ID, input)
	if err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}
	b.log.Info("task created", "task_id", task.ID, "user_id", user.ID)

	loc := b.deps.Planner.Location()
	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if input.Course != "" {
		summary.WriteString(fmt.Sprintf("• <b>Course:</b> %s\n", escape(input.Course)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Type:</b> %s\n", task.Type))
	summary.WriteString(fmt.Sprintf("• <b>Estimate:</b> %s\n", minutesLabel(task.EstMins)))
	summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueAt.In(loc).Format("2006-01-02 15:04")))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %d", task.Priority))
	if err := b.sendTextWithRemove(chatID, summary.String()); err != nil {
		return err
	}

	res, err := b.deps.Planner.PlanTask(ctx, user.ID, task.ID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Task saved but planning failed: %s", escape(err.Error())))
	}
	return b.sendText(chatID, formatPlanResult(res, map[uint]string{task.ID: task.Title}))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.deps.Tasks.ListTasks(ctx, user.ID, repository.TaskFilter{
		Statuses: []string{string(planner.StatusTodo), string(planner.StatusDoing), string(planner.StatusBlocked)},
	})
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "You have no open tasks. Add one with /newtask.")
	}

	now := time.Now().In(b.deps.Planner.Location())
	order, groups := groupByCourse(tasks)

	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Tap a button to finish, replan or delete a task.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, key := range order {
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", courseLabel(key)))
		for _, task := range groups[key] {
			builder.WriteString(formatTask(task, now))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 18)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("♻️", fmt.Sprintf("%s%d", cbReplanPrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			))
		}
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	override, err := parsePolicyArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("%s\nExample: <code>/plan pomodoro=50 break=10</code>", escape(err.Error())))
	}
	res, err := b.deps.Planner.GenerateWeeklyPlan(ctx, user.ID, override)
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}
	titles, err := b.titles(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := b.sendText(msg.Chat.ID, formatPlanResult(res, titles)); err != nil {
		return err
	}
	return b.sendWeek(ctx, msg.Chat.ID, user.ID, titles)
}

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	titles, err := b.titles(ctx, user.ID)
	if err != nil {
		return err
	}
	return b.sendWeek(ctx, msg.Chat.ID, user.ID, titles)
}

func (b *Bot) sendWeek(ctx context.Context, chatID int64, userID uint, titles map[uint]string) error {
	week, err := b.deps.Planner.WeeklyView(ctx, userID)
	if err != nil {
		return b.sendPlannerError(chatID, err)
	}
	return b.sendText(chatID, formatWeek(week, titles, b.deps.Planner.Location()))
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendToday(ctx, msg.Chat.ID, user.ID)
}

func (b *Bot) sendToday(ctx context.Context, chatID int64, userID uint) error {
	sessions, err := b.deps.Planner.TodaySessions(ctx, userID)
	if err != nil {
		return b.sendPlannerError(chatID, err)
	}
	loc := b.deps.Planner.Location()
	text := formatToday(sessions, time.Now().In(loc))
	if kb, ok := todayKeyboard(sessions, loc); ok {
		return b.sendWithReplyMarkup(chatID, text, kb)
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleReplan(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	args := strings.TrimSpace(msg.CommandArguments())

	var res planner.ReplanResult
	if args == "" {
		res, err = b.deps.Planner.ReplanUser(ctx, user.ID)
	} else {
		taskID, perr := strconv.ParseUint(args, 10, 64)
		if perr != nil {
			return b.sendText(msg.Chat.ID, "Task ID must be a number, for example /replan 3")
		}
		res, err = b.deps.Planner.ReplanTask(ctx, user.ID, uint(taskID))
	}
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}
	titles, err := b.titles(ctx, user.ID)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, formatPlanResult(res, titles))
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		return b.sendText(msg.Chat.ID, "Give the task ID: /complete 12 (optionally minutes spent: /complete 12 95)")
	}

	taskID64, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Task ID must be a number.")
	}
	minutes := 0
	if len(args) > 1 {
		minutes, err = strconv.Atoi(args[1])
		if err != nil || minutes <= 0 {
			return b.sendText(msg.Chat.ID, "Minutes spent must be a positive number.")
		}
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.deps.Tasks.CompleteTask(ctx, user.ID, uint(taskID64), minutes)
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ «%s» done in %s.", escape(normalizeTitle(task.Title)), minutesLabel(task.MinutesSpent)))
}

// handleEdit changes a task and places its sessions again when the estimate,
// due time or status moved.
func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, patch, err := parseEditArgs(msg.CommandArguments(), b.deps.Planner.Location())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("%s.\nExample: /edit 12 due=2025-06-20 18:00 est=2h prio=1 title=Lab report", escape(err.Error())))
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.deps.Tasks.UpdateTask(ctx, user.ID, taskID, patch)
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}
	text := fmt.Sprintf("✏️ «%s» updated.", escape(normalizeTitle(task.Title)))
	if !patch.AffectsPlan() || !planner.Status(task.Status).Schedulable() {
		return b.sendText(msg.Chat.ID, text)
	}

	res, err := b.deps.Planner.PlanTask(ctx, user.ID, task.ID)
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}
	titles, err := b.titles(ctx, user.ID)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, text+"\n"+formatPlanResult(res, titles))
}

// handleDelete removes a task together with its plan.
func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give the task ID: /delete 12")
	}

	taskID64, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Task ID must be a number.")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.deps.Tasks.GetTask(ctx, user.ID, uint(taskID64))
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}

	if err := b.deps.Tasks.DeleteTask(ctx, user.ID, uint(taskID64)); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not delete the task: %s", escape(err.Error())))
	}

	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleDeadlines(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	d, err := b.deps.Planner.Deadlines(ctx, user.ID)
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, formatDeadlines(d, time.Now().In(b.deps.Planner.Location())))
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	st, err := b.deps.Planner.Stats(ctx, user.ID)
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, formatStats(st))
}

func (b *Bot) handlePolicy(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		p, err := b.deps.Policies.Get(ctx, user.ID)
		if err != nil {
			return err
		}
		return b.sendText(msg.Chat.ID, formatPolicy(p))
	}
	override, err := parsePolicyArgs(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	p, err := b.deps.Policies.Update(ctx, user.ID, override)
	if err != nil {
		return b.sendPlannerError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, formatPolicy(p)+"\n\nSend /plan to apply it.")
}

func (b *Bot) handleCourses(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	courses, err := b.deps.Courses.List(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load courses: %s", escape(err.Error())))
	}
	if len(courses) == 0 {
		return b.sendText(msg.Chat.ID, "No courses yet. They are created when you add a task.")
	}
	var builder strings.Builder
	builder.WriteString("🎓 <b>Courses</b>\n")
	for _, c := range courses {
		builder.WriteString(fmt.Sprintf("• %s\n", escape(strings.TrimSpace(c.Name))))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleInterval(msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		b.mu.Lock()
		current := b.interval
		b.mu.Unlock()
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Reports are sent every %d hours. Change it with /interval 4", int(current.Hours())))
	}
	hours, err := strconv.Atoi(args)
	if err != nil || hours <= 0 {
		return b.sendText(msg.Chat.ID, "The interval is a positive number of hours, for example /interval 6")
	}
	interval := time.Duration(hours) * time.Hour
	if b.deps.OnIntervalChange != nil {
		if err := b.deps.OnIntervalChange(interval); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not reschedule reports: %s", escape(err.Error())))
		}
	}
	b.mu.Lock()
	b.interval = interval
	b.mu.Unlock()
	return b.sendText(msg.Chat.ID, fmt.Sprintf("Reports will be sent every %d hours.", hours))
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.deps.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.deps.Reminder.DailySummary(ctx, user.ID)
		if err != nil {
			b.log.Warn("build summary", "telegram_id", user.TelegramID, "error", err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			b.log.Warn("send summary", "telegram_id", user.TelegramID, "error", err)
		}
	}
	return nil
}

// ReplanAllUsers recovers missed sessions for every user. Used by the
// scheduled jobs; notifications are sent through Notify.
func (b *Bot) ReplanAllUsers(ctx context.Context) error {
	users, err := b.deps.Users.ListWithOpenTasks(ctx, []string{string(planner.StatusTodo), string(planner.StatusDoing)})
	if err != nil {
		return err
	}
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := b.deps.Planner.ReplanUser(ctx, user.ID); err != nil {
			b.log.Warn("scheduled replan", "user_id", user.ID, "error", err)
		}
	}
	return nil
}

// Notify implements service.Notifier. Plan updates are pushed to the user;
// task updates are only logged since the user caused them.
func (b *Bot) Notify(ctx context.Context, ev service.Event) error {
	if ev.Type != service.EventPlanUpdate {
		b.log.Debug("task updated", "user_id", ev.UserID, "tasks", ev.TaskIDs)
		return nil
	}
	if len(ev.Insufficient) == 0 && ev.Missed == 0 {
		return nil
	}
	user, err := b.deps.Users.FindByID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("notify user %d: %w", ev.UserID, err)
	}
	return b.sendText(user.TelegramID, formatEvent(ev))
}

func formatEvent(ev service.Event) string {
	var sb strings.Builder
	sb.WriteString("🔔 <b>Your plan changed</b>")
	if ev.Missed > 0 {
		sb.WriteString(fmt.Sprintf("\n♻️ %d missed slot(s) were moved.", ev.Missed))
	}
	if len(ev.Insufficient) > 0 {
		ids := make([]string, 0, len(ev.Insufficient))
		for _, id := range ev.Insufficient {
			ids = append(ids, fmt.Sprintf("#%d", id))
		}
		sb.WriteString(fmt.Sprintf("\n⚠️ Not enough time for %s. Check /deadlines.", strings.Join(ids, ", ")))
	}
	return sb.String()
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
		}
		return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		prompt := "Confirm or cancel completing the task."
		if req.action == actionDelete {
			prompt = "Confirm or cancel deleting the task."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn("callback ack", "error", err)
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Info("callback", "from", cb.From.ID, "data", data)

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, actionComplete)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, actionDelete)
	case strings.HasPrefix(data, cbReplanPrefix):
		taskID, err := parseTaskID(data, cbReplanPrefix)
		if err != nil {
			return nil
		}
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		res, err := b.deps.Planner.PlanTask(ctx, user.ID, taskID)
		if err != nil {
			return b.sendPlannerError(chatID, err)
		}
		titles, err := b.titles(ctx, user.ID)
		if err != nil {
			return err
		}
		return b.sendText(chatID, formatPlanResult(res, titles))
	case strings.HasPrefix(data, cbSlotDonePrefix):
		taskID, slotID, err := parseSlotCallback(data, cbSlotDonePrefix)
		if err != nil {
			return nil
		}
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		if err := b.deps.Planner.UpdateSlot(ctx, user.ID, taskID, slotID, true); err != nil {
			return b.sendPlannerError(chatID, err)
		}
		return b.sendToday(ctx, chatID, user.ID)
	case strings.HasPrefix(data, cbSlotSkipPrefix):
		taskID, slotID, err := parseSlotCallback(data, cbSlotSkipPrefix)
		if err != nil {
			return nil
		}
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		res, err := b.deps.Planner.SkipSlot(ctx, user.ID, taskID, slotID)
		if err != nil {
			return b.sendPlannerError(chatID, err)
		}
		titles, err := b.titles(ctx, user.ID)
		if err != nil {
			return err
		}
		return b.sendText(chatID, formatPlanResult(res, titles))
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint, action confirmationAction) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.deps.Tasks.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendPlannerError(chatID, err)
	}

	var text string
	switch action {
	case actionDelete:
		text = fmt.Sprintf("Delete «%s» (#%d) and its sessions?", escape(normalizeTitle(task.Title)), task.ID)
	default:
		if task.Status == string(planner.StatusDone) {
			return b.sendText(chatID, "That task is already done.")
		}
		text = fmt.Sprintf("Mark «%s» (#%d) as done?", escape(normalizeTitle(task.Title)), task.ID)
	}
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.deps.Tasks.CompleteTask(ctx, user.ID, taskID, 0)
	if err != nil {
		return b.sendPlannerError(chatID, err)
	}

	b.log.Info("task completed", "task_id", task.ID, "user_id", user.ID, "minutes", task.MinutesSpent)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("✅ «%s» done.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.deps.Tasks.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendPlannerError(chatID, err)
	}
	if err := b.deps.Tasks.DeleteTask(ctx, user.ID, taskID); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	b.log.Info("task deleted", "task_id", task.ID, "user_id", user.ID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelWeek):
		return true, b.handleWeek(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// sendPlannerError turns expected failures into short replies.
func (b *Bot) sendPlannerError(chatID int64, err error) error {
	switch {
	case errors.Is(err, planner.ErrTaskNotFound), errors.Is(err, repository.ErrNotFound):
		return b.sendTextWithRemove(chatID, "Task not found.")
	case errors.Is(err, service.ErrSlotNotFound):
		return b.sendText(chatID, "That session no longer exists. Send /today for the current plan.")
	case errors.Is(err, planner.ErrInvalidPolicy), errors.Is(err, service.ErrInvalidTask):
		return b.sendText(chatID, escape(err.Error()))
	default:
		b.log.Error("request failed", "error", err)
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
}

func (b *Bot) titles(ctx context.Context, userID uint) (map[uint]string, error) {
	tasks, err := b.deps.Tasks.ListTasks(ctx, userID, repository.TaskFilter{})
	if err != nil {
		return nil, err
	}
	titles := make(map[uint]string, len(tasks))
	for _, t := range tasks {
		titles[t.ID] = t.Title
	}
	return titles, nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.deps.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Main menu")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) courseKeyboard(ctx context.Context, from *tgbotapi.User) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	if user, err := b.ensureUser(ctx, from); err == nil {
		if courses, err := b.deps.Courses.List(ctx, user.ID); err == nil {
			var row []tgbotapi.KeyboardButton
			for _, c := range courses {
				row = append(row, tgbotapi.NewKeyboardButton(c.Name))
				if len(row) == 2 {
					rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
					row = nil
				}
			}
			if len(row) > 0 {
				rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
			}
		}
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
