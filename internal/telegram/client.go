// Package telegram provides a client for sending stand alerts and session
// reports via the Telegram Bot API, plus a small command listener for
// controlling sessions from chat.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rinkside/standwatch/internal/config"
	"github.com/rinkside/standwatch/internal/models"
	"github.com/rinkside/standwatch/internal/scenario"
	"github.com/rinkside/standwatch/internal/session"
)

// Controller is the slice of the session manager the bot commands need.
type Controller interface {
	Start(ctx context.Context, req session.StartRequest) (*session.Session, error)
	Current() (*session.Session, bool)
	Stop() error
	SetSpeed(v float64) (float64, error)
	Inject(o scenario.Override) error
}

// Client handles Telegram notifications and bot commands.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	ctrl           Controller
	defaultSpeed   float64
}

// NewClient creates a new Telegram client. ctrl may be nil for a
// notification-only client.
func NewClient(cfg config.TelegramConfig, defaultSpeed float64, ctrl Controller) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelayBase := cfg.RetryDelayBase
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		ctrl:           ctrl,
		defaultSpeed:   defaultSpeed,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when ctx
// is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		c.reply(msg, "Pong")
	case "scenarios":
		c.reply(msg, c.formatScenarios())
	case "start":
		c.handleStart(ctx, msg)
	case "stop":
		c.handleStop(msg)
	case "speed":
		c.handleSpeed(msg)
	case "inject":
		c.handleInject(msg)
	case "status":
		c.handleStatus(msg)
	}
}

func (c *Client) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if c.ctrl == nil {
		c.reply(msg, "Session control is not enabled")
		return
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		c.reply(msg, "Usage: /start <scenario> [speed]")
		return
	}
	req := session.StartRequest{
		Scenario:   args[0],
		Speed:      c.defaultSpeed,
		Date:       time.Now(),
		Attendance: 4500,
	}
	if len(args) > 1 {
		speed, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			c.reply(msg, fmt.Sprintf("Bad speed %q", args[1]))
			return
		}
		req.Speed = speed
	}
	sess, err := c.ctrl.Start(ctx, req)
	if err != nil {
		c.reply(msg, fmt.Sprintf("Start failed: %s", err))
		return
	}
	c.reply(msg, fmt.Sprintf("Session started: scenario %s", sess.Scenario()))
}

func (c *Client) handleStop(msg *tgbotapi.Message) {
	if c.ctrl == nil {
		c.reply(msg, "Session control is not enabled")
		return
	}
	if err := c.ctrl.Stop(); err != nil {
		c.reply(msg, fmt.Sprintf("Stop failed: %s", err))
		return
	}
	c.reply(msg, "Session stopping")
}

func (c *Client) handleSpeed(msg *tgbotapi.Message) {
	if c.ctrl == nil {
		c.reply(msg, "Session control is not enabled")
		return
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(msg.CommandArguments()), 64)
	if err != nil {
		c.reply(msg, "Usage: /speed <multiplier>")
		return
	}
	effective, err := c.ctrl.SetSpeed(v)
	if err != nil {
		c.reply(msg, fmt.Sprintf("Speed change failed: %s", err))
		return
	}
	c.reply(msg, fmt.Sprintf("Replay speed set to %.0fx", effective))
}

// handleInject parses one of:
//
//	/inject stand_outage <stand>
//	/inject demand_spike <factor> <stand>
//	/inject global_volume <factor>
//
// Stand names may contain spaces, so they always come last.
func (c *Client) handleInject(msg *tgbotapi.Message) {
	if c.ctrl == nil {
		c.reply(msg, "Session control is not enabled")
		return
	}
	o, err := parseInject(msg.CommandArguments())
	if err != nil {
		c.reply(msg, err.Error())
		return
	}
	if err := c.ctrl.Inject(o); err != nil {
		c.reply(msg, fmt.Sprintf("Inject failed: %s", err))
		return
	}
	c.reply(msg, fmt.Sprintf("Override %s queued for the next window", o.Type))
}

func parseInject(args string) (scenario.Override, error) {
	usage := fmt.Errorf("usage: /inject stand_outage <stand> | demand_spike <factor> <stand> | global_volume <factor>")
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return scenario.Override{}, usage
	}
	o := scenario.Override{Type: fields[0], FromWindow: 0, ToWindow: -1}
	switch fields[0] {
	case scenario.TypeStandOutage:
		o.Stand = strings.Join(fields[1:], " ")
	case scenario.TypeDemandSpike:
		if len(fields) < 3 {
			return scenario.Override{}, usage
		}
		factor, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return scenario.Override{}, fmt.Errorf("bad factor %q", fields[1])
		}
		o.Factor = factor
		o.Stand = strings.Join(fields[2:], " ")
	case scenario.TypeGlobalVolume:
		factor, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return scenario.Override{}, fmt.Errorf("bad factor %q", fields[1])
		}
		o.Factor = factor
	default:
		return scenario.Override{}, usage
	}
	return o, nil
}

func (c *Client) handleStatus(msg *tgbotapi.Message) {
	if c.ctrl == nil {
		c.reply(msg, "Session control is not enabled")
		return
	}
	sess, ok := c.ctrl.Current()
	if !ok {
		c.reply(msg, "No session")
		return
	}
	c.reply(msg, fmt.Sprintf("Session %s, scenario %s, %d alerts so far",
		sess.State(), sess.Scenario(), len(sess.Alerts())))
}

func (c *Client) formatScenarios() string {
	var b strings.Builder
	b.WriteString("Available scenarios:\n")
	for _, k := range scenario.Kinds() {
		fmt.Fprintf(&b, "  %s: %s\n", k, scenario.Describe(k))
	}
	return b.String()
}

func (c *Client) reply(msg *tgbotapi.Message, text string) {
	c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, text)) //nolint:errcheck
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendAlert sends a drift alert notification.
func (c *Client) SendAlert(alert models.Alert, windowLabel string) error {
	return c.sendMarkdownV2(formatAlert(alert, windowLabel))
}

// SendSessionStarted announces a new replay session.
func (c *Client) SendSessionStarted(started *models.SessionStarted) error {
	return c.sendMarkdownV2(formatSessionStarted(started))
}

// SendSummary sends the post-game report.
func (c *Client) SendSummary(summary *models.Summary) error {
	return c.sendMarkdownV2(formatSummary(summary))
}

// SendError sends a session error notification.
func (c *Client) SendError(component, message string) error {
	text := fmt.Sprintf("⚠️ *Session error* in %s\n`%s`",
		escapeMarkdownV2(component), escapeMarkdownV2(message))
	return c.sendMarkdownV2(text)
}

// formatAlert formats a drift alert as a Telegram MarkdownV2 message.
func formatAlert(alert models.Alert, windowLabel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *%s* \\(%s\\)\n", escapeMarkdownV2(alert.Stand), escapeMarkdownV2(windowLabel))
	fmt.Fprintf(&b, "Cause: %s \\(confidence %s\\)\n",
		escapeMarkdownV2(string(alert.Cause)),
		escapeMarkdownV2(fmt.Sprintf("%.0f%%", alert.Confidence*100)))
	fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(alert.AlertText))
	for _, a := range alert.Actions {
		line := fmt.Sprintf("%s %s", a.Action, a.Stand)
		if a.Item != "" {
			line += " " + a.Item
		}
		if a.QuantityChangePct != 0 {
			line += fmt.Sprintf(" %+.0f%%", a.QuantityChangePct)
		}
		fmt.Fprintf(&b, "  • %s\n", escapeMarkdownV2(line))
	}
	return b.String()
}

func formatSessionStarted(started *models.SessionStarted) string {
	g := started.Game
	var b strings.Builder
	b.WriteString("🏒 *Session started*\n")
	fmt.Fprintf(&b, "vs %s, %s\n",
		escapeMarkdownV2(g.Opponent), escapeMarkdownV2(g.Date.Format("2006-01-02")))
	fmt.Fprintf(&b, "Attendance %d, scenario %s\n", g.Attendance, escapeMarkdownV2(started.Scenario))
	fmt.Fprintf(&b, "Forecast %s units across %d stands\n",
		escapeMarkdownV2(fmt.Sprintf("%.0f", started.Baseline.TotalForecastQty)),
		started.Baseline.Stands)
	return b.String()
}

func formatSummary(s *models.Summary) string {
	icon := "🏁"
	if s.Stopped {
		icon = "🛑"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *Session complete*\n", icon)
	fmt.Fprintf(&b, "Forecast %s, actual %s, drift %s\n",
		escapeMarkdownV2(fmt.Sprintf("%.0f", s.TotalForecast)),
		escapeMarkdownV2(fmt.Sprintf("%.0f", s.TotalActual)),
		escapeMarkdownV2(fmt.Sprintf("%+.1f%%", s.CumulativeDrift*100)))
	fmt.Fprintf(&b, "%d windows, %d off green, %d alerts\n",
		s.WindowsProcessed, s.WindowsWithDrift, s.TotalAlerts)
	if s.Report != "" {
		fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(s.Report))
	}
	return b.String()
}

// HandleEvent adapts the client to the session manager's event feed. Window
// updates without an alert are dropped; everything else becomes a message.
func (c *Client) HandleEvent(ev models.Event) {
	switch ev.Type {
	case models.EventSessionStarted:
		c.SendSessionStarted(ev.Started) //nolint:errcheck
	case models.EventWindowUpdate:
		if ev.Window.Alert != nil {
			c.SendAlert(*ev.Window.Alert, ev.Window.Window.Label) //nolint:errcheck
		}
	case models.EventSessionError:
		c.SendError(ev.Error.Component, ev.Error.Message) //nolint:errcheck
	case models.EventSessionComplete:
		c.SendSummary(&ev.Complete.Summary) //nolint:errcheck
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
