package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/hopeconnect/internal/gateway"
	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/onboarding"
)

// Callback data prefixes.
const (
	cbMood       = "mood:"
	cbAge        = "age:"
	cbPermission = "perm:"
	cbFinish     = "onb:finish"
	cbBack       = "onb:back"
	cbConfirm    = "confirm:"
	cbSpeak      = "speak:"
	cbNotify     = "notify"
)

const (
	shareLocationLabel = "📍 Share location"
	notNowLabel        = "Not now"
)

const helpText = `HopeConnect is here to listen.

/home - Your dashboard and mood check-in
/chat - Talk to your companion (or just type)
/thinking - Toggle Deep Thinking mode
/speak - Read the last reply aloud
/mood - Check in with how you feel
/counselors [topic] - Find professionals near you
/resources - Quick coping exercises
/emergency or /sos - Crisis lines and your trusted contact
/reset - Delete your profile and start over
/help - Show this message`

// ResourcesText lists the built in coping exercises.
const ResourcesText = `Instant resources

5-Minute Box Breathing
Inhale for 4 seconds, hold for 4 seconds, exhale for 4 seconds, hold for 4 seconds. Repeat.

Progressive Muscle Relaxation (10 min)
Tense and then relax each muscle group, starting from your toes up to your head.

"The only way out is through." - Robert Frost`

var statusEmoji = map[models.EmotionalStatus]string{
	models.StatusGreat:      "💚",
	models.StatusGood:       "🙂",
	models.StatusOkay:       "😐",
	models.StatusStruggling: "😟",
	models.StatusCrisis:     "🆘",
}

// DashboardText greets the user and shows the last check-in.
func DashboardText(profile models.UserProfile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi, %s\n", profile.Name)
	sb.WriteString("How are you feeling right now?\n\n")
	fmt.Fprintf(&sb, "Status: %s", profile.CurrentStatus)
	if profile.CurrentStatus == models.StatusCrisis || profile.CurrentStatus == models.StatusStruggling {
		sb.WriteString("\n\nIf you need help right now, use /emergency.")
	}
	return sb.String()
}

func moodKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, status := range models.CheckInStatuses {
		label := statusEmoji[status] + " " + string(status)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbMood+string(status)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row[:3], row[3:])
}

// EmergencyText lists the crisis lines and the trusted contact, if any.
func EmergencyText(profile models.UserProfile) string {
	var sb strings.Builder
	sb.WriteString("You are not alone. Help is available right now.\n\n")
	sb.WriteString("📞 Call 988 - Suicide & Crisis Lifeline\n")
	sb.WriteString("💬 Text HOME to 741741 - Crisis Text Line\n")
	sb.WriteString("🚨 Call 911 - Emergency services\n")

	contact := profile.EmergencyContact
	if contact.Present() {
		sb.WriteString("\nYour trusted contact\n")
		sb.WriteString(contact.Name)
		if contact.Relationship != "" {
			fmt.Fprintf(&sb, " (%s)", contact.Relationship)
		}
		if contact.Phone != "" {
			fmt.Fprintf(&sb, "\nCall %s directly: %s", contact.Name, contact.Phone)
		}
	}
	return sb.String()
}

func emergencyKeyboard(profile models.UserProfile) *tgbotapi.InlineKeyboardMarkup {
	if !profile.EmergencyContact.Present() {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Notify "+profile.EmergencyContact.Name, cbNotify),
	))
	return &kb
}

// PlacesText renders a place search for a text chat.
func PlacesText(res models.PlacesResult) string {
	var sb strings.Builder
	sb.WriteString(res.Summary)

	for i, place := range res.Places {
		if i == 0 && res.Summary != "" {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "\n%d. %s", i+1, place.Name)
		if place.Rating > 0 {
			fmt.Fprintf(&sb, " ⭐ %.1f", place.Rating)
			if place.ReviewCount > 0 {
				fmt.Fprintf(&sb, " (%d)", place.ReviewCount)
			}
		}
		if place.Address != "" {
			fmt.Fprintf(&sb, "\n   %s", place.Address)
		}
		if place.Link != "" {
			fmt.Fprintf(&sb, "\n   %s", place.Link)
		}
	}

	if sb.Len() == 0 {
		return "No results found nearby."
	}
	return sb.String()
}

func locationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButtonLocation(shareLocationLabel),
		tgbotapi.NewKeyboardButton(notNowLabel),
	))
	kb.OneTimeKeyboard = true
	return kb
}

func replyKeyboard(msg models.ChatMessage) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔊 Read aloud", cbSpeak+msg.ID),
	))
}

func replyText(msg models.ChatMessage) string {
	if msg.IsThinking {
		return "🧠 " + msg.Text
	}
	return msg.Text
}

func confirmKeyboard(mode gateway.Mode) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Continue", cbConfirm+string(mode)),
		tgbotapi.NewInlineKeyboardButtonData("Cancel", cbConfirm+"cancel"),
	))
}

func onboardingKeyboard(flow *onboarding.Flow) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	switch flow.Step() {
	case onboarding.StepAgeRange:
		var row []tgbotapi.InlineKeyboardButton
		for i, age := range models.AgeRanges {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(age, cbAge+age))
			if i%3 == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}

	case onboarding.StepPermissions:
		perms := flow.Form().Permissions
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(permissionButton("Emergency Alerts", onboarding.PermissionAlerts, perms.EmergencyAlerts)),
			tgbotapi.NewInlineKeyboardRow(permissionButton("Location Sharing", onboarding.PermissionLocation, perms.LocationSharing)),
			tgbotapi.NewInlineKeyboardRow(permissionButton("Auto-call Services", onboarding.PermissionAutoCall, perms.AutoCall)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Finish", cbFinish)),
		)
	}

	if flow.Step() != onboarding.StepName {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("« Back", cbBack)))
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func permissionButton(label string, p onboarding.Permission, on bool) tgbotapi.InlineKeyboardButton {
	state := "OFF"
	if on {
		state = "ON"
	}
	return tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s: %s", label, state), cbPermission+string(p))
}
