package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xaenox/hopeconnect/internal/bot"
	"github.com/xaenox/hopeconnect/internal/chat"
	"github.com/xaenox/hopeconnect/internal/counselors"
	"github.com/xaenox/hopeconnect/internal/gateway"
	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/onboarding"
	"github.com/xaenox/hopeconnect/internal/profile"
	"go.uber.org/zap"
)

const terminalHelp = `Type to talk, or use a command:

/home - Your dashboard
/mood <status> - Check in (Great, Good, Okay, Struggling, Crisis)
/thinking - Toggle Deep Thinking mode
/speak - Read the last reply aloud
/counselors [topic] - Find professionals near you
/resources - Quick coping exercises
/emergency or /sos - Crisis lines and your trusted contact
/quit - Leave`

// terminal runs the companion over a line based reader and writer.
type terminal struct {
	scanner *bufio.Scanner
	out     io.Writer

	store   *profile.Store
	gateway gateway.Gateway
	speaker chat.Speaker
	finder  *counselors.Finder
	locator counselors.Locator
	logger  *zap.Logger
}

func newTerminal(in io.Reader, out io.Writer, store *profile.Store, gw gateway.Gateway, speaker chat.Speaker, locator counselors.Locator, logger *zap.Logger) *terminal {
	return &terminal{
		scanner: bufio.NewScanner(in),
		out:     out,
		store:   store,
		gateway: gw,
		speaker: speaker,
		finder:  counselors.NewFinder(gw, logger),
		locator: locator,
		logger:  logger,
	}
}

func (t *terminal) println(text string) {
	fmt.Fprintln(t.out, text)
}

func (t *terminal) warn(err error) {
	fmt.Fprintf(t.out, "⚠️ %v\n", err)
}

// readLine returns false once the input is exhausted.
func (t *terminal) readLine() (string, bool) {
	if !t.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.scanner.Text()), true
}

func (t *terminal) confirm(prompt string) bool {
	fmt.Fprintf(t.out, "%s [y/N] ", prompt)
	line, ok := t.readLine()
	if !ok {
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	}
	return false
}

// Run onboards the user if needed and then chats until the input ends or the
// user quits.
func (t *terminal) Run(ctx context.Context) error {
	if !t.store.Current().IsOnboarded {
		done, err := t.onboard(ctx)
		if err != nil || !done {
			return err
		}
	}

	session, err := chat.New(ctx, chat.Deps{
		Gateway: t.gateway,
		Status:  t.store,
		Speaker: t.speaker,
		Logger:  t.logger,
	}, t.store.Current().Name)
	if err != nil {
		return err
	}
	defer session.Wait()

	t.println(session.Messages()[0].Text)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(t.out, "> ")
		line, ok := t.readLine()
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := t.command(ctx, session, line); quit {
				return nil
			}
			continue
		}

		reply, err := session.SendUserTurn(ctx, line)
		if err != nil {
			t.warn(err)
			continue
		}
		if reply != nil {
			t.println(replyLine(*reply))
		}
	}
}

func replyLine(msg models.ChatMessage) string {
	if msg.IsThinking {
		return "🧠 " + msg.Text
	}
	return msg.Text
}

func (t *terminal) onboard(ctx context.Context) (bool, error) {
	flow := onboarding.NewFlow()
	shown := onboarding.StepDone

	for !flow.Done() {
		if flow.Step() != shown {
			shown = flow.Step()
			t.println(flow.Prompt())
			if flow.Step() == onboarding.StepAgeRange {
				t.println("Options: " + strings.Join(flow.Options(), ", "))
			}
		}
		if flow.Step() == onboarding.StepPermissions {
			t.printPermissions(flow.Form().Permissions)
		}

		line, ok := t.readLine()
		if !ok {
			return false, nil
		}

		if strings.EqualFold(line, "back") {
			flow.Back()
			continue
		}

		if flow.Step() != onboarding.StepPermissions {
			if err := flow.Submit(line); err != nil {
				t.warn(err)
			}
			continue
		}

		if !strings.EqualFold(line, "done") {
			if err := flow.Toggle(onboarding.Permission(strings.ToLower(line))); err != nil {
				t.warn(err)
			}
			continue
		}

		patch, err := flow.Finish()
		if err != nil {
			t.warn(err)
			continue
		}
		if _, err := t.store.Update(ctx, patch); err != nil {
			return false, fmt.Errorf("failed to save profile: %w", err)
		}
	}

	t.println(flow.Prompt())
	t.println(bot.DashboardText(t.store.Current()))
	return true, nil
}

func (t *terminal) printPermissions(p models.Permissions) {
	state := func(on bool) string {
		if on {
			return "ON"
		}
		return "OFF"
	}
	fmt.Fprintf(t.out, "  alerts: %s\n  location: %s\n  autocall: %s\nType a name to toggle it, \"done\" to finish.\n",
		state(p.EmergencyAlerts), state(p.LocationSharing), state(p.AutoCall))
}

// command handles one slash command and reports whether to quit.
func (t *terminal) command(ctx context.Context, session *chat.Session, line string) bool {
	name, args, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(name) {
	case "quit", "exit":
		return true
	case "help":
		t.println(terminalHelp)
	case "home":
		t.println(bot.DashboardText(t.store.Current()))
	case "mood":
		t.mood(ctx, args)
	case "thinking":
		t.toggleThinking(ctx, session)
	case "speak":
		t.speak(ctx, session)
	case "counselors":
		t.counselors(ctx, args)
	case "resources":
		t.println(bot.ResourcesText)
	case "emergency", "sos":
		t.println(bot.EmergencyText(t.store.Current()))
	default:
		t.println("Unknown command. Use /help to see available commands.")
	}
	return false
}

func (t *terminal) mood(ctx context.Context, args string) {
	status, ok := models.ParseCheckIn(args)
	if !ok {
		t.println("Please pick one of: Great, Good, Okay, Struggling, Crisis.")
		return
	}
	if err := t.store.SetStatus(ctx, status); err != nil {
		t.warn(err)
		return
	}
	t.println("Checked in: " + string(status))
	if status == models.StatusCrisis {
		t.println(bot.EmergencyText(t.store.Current()))
	}
}

func (t *terminal) toggleThinking(ctx context.Context, session *chat.Session) {
	target := gateway.ModeDeepThinking
	if session.Mode() == gateway.ModeDeepThinking {
		target = gateway.ModeStandard
	}

	replaced := session.NeedsConfirmation()
	changed, err := session.SwitchMode(ctx, target, t.confirm)
	if err != nil {
		t.logger.Error("Failed to switch mode", zap.Error(err))
		t.warn(err)
		return
	}

	switch {
	case !changed:
		t.println("Okay, staying in the current mode.")
	case replaced:
		t.println(chat.ModeAnnouncement(target))
	case target == gateway.ModeDeepThinking:
		t.println("Thinking Mode On")
	default:
		t.println("Thinking Mode Off")
	}
}

func (t *terminal) speak(ctx context.Context, session *chat.Session) {
	messages := session.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleModel {
			session.ReadAloud(ctx, messages[i].Text)
			t.println("🔊 Done.")
			return
		}
	}
	t.println("There's nothing to read yet.")
}

func (t *terminal) counselors(ctx context.Context, query string) {
	if query == "" {
		query = counselors.DefaultQuery
	}
	res, err := t.finder.Nearby(ctx, t.locator, query)
	if err != nil {
		t.warn(err)
		return
	}
	t.println(bot.PlacesText(res))
}
