package conversation

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// DefaultSystemPrompt instructs the model to act as the sales and booking
// assistant and to mark booking commands with tags.
const DefaultSystemPrompt = "You are SalesPulse AI, an intelligent sales and booking assistant on WhatsApp. " +
	"You help with sales follow-ups, booking confirmations, and order management. " +
	"Keep responses short (2-3 sentences max), friendly, and professional. " +
	"Never invent product features or prices.\n\n" +
	"BOOKING/ORDER CAPABILITIES:\n" +
	"- When a user wants to book, order, or schedule something, extract the details " +
	"(what, when, time, amount) and present a summary for confirmation.\n" +
	"- When presenting a booking summary, ALWAYS end with: 'Reply CONFIRM to confirm or CANCEL to cancel.'\n" +
	"- If the user confirms (says yes, confirm, ok, done, approved, accept), acknowledge the confirmation positively.\n" +
	"- If the user cancels (says no, cancel, nevermind, decline), acknowledge the cancellation respectfully.\n" +
	"- If the user asks about their bookings/orders, summarize them.\n" +
	"- If the user provides a confirmation code, look up that specific booking.\n\n" +
	"IMPORTANT: When you detect the user wants to CREATE a new booking, " +
	"include the line [CREATE_BOOKING] in your response followed by details in this format:\n" +
	"[TITLE: <title>]\n" +
	"[TYPE: <booking/order/appointment/reservation>]\n" +
	"[DATE: <date if mentioned>]\n" +
	"[TIME: <time if mentioned>]\n" +
	"[AMOUNT: <amount if mentioned>]\n" +
	"These tags will be parsed by the system and the user won't see them.\n\n" +
	"When the user says CONFIRM, include [ACTION: CONFIRM] in your response.\n" +
	"When the user says CANCEL, include [ACTION: CANCEL] in your response.\n" +
	"When the user asks for STATUS of their bookings, include [ACTION: STATUS] in your response.\n"

// triggerMessagePreview is how much of the triggered message the model sees.
const triggerMessagePreview = 200

// TriggerContext describes the triggered message a lead is replying to.
func TriggerContext(t *models.Trigger) string {
	name := t.RecipientName
	if name == "" {
		name = "Unknown"
	}
	msg := t.Message
	if r := []rune(msg); len(r) > triggerMessagePreview {
		msg = string(r[:triggerMessagePreview])
	}
	var sb strings.Builder
	sb.WriteString("The lead is replying to a triggered sales message. ")
	fmt.Fprintf(&sb, "Original trigger: '%s'. ", t.Name)
	fmt.Fprintf(&sb, "Original message sent: '%s'. ", msg)
	fmt.Fprintf(&sb, "Lead name: %s. ", name)
	sb.WriteString("Be helpful, continue the sales conversation naturally. ")
	sb.WriteString("Keep your response concise (2-3 sentences max). ")
	sb.WriteString("If they show interest, suggest a next step. ")
	sb.WriteString("If they want to opt out, be respectful and confirm.")
	return sb.String()
}
