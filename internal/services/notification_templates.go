package services

import (
	"fmt"
	"strconv"
	"strings"

	"crf-system/pkg/constants"
	"crf-system/pkg/telegram"
)

var actionTitles = map[constants.Action]string{
	constants.ActionApproveDept:         "Заявка %s одобрена",
	constants.ActionApproveDeputy:       "Заявка %s одобрена заместителем директора",
	constants.ActionReject:              "Заявка %s отклонена",
	constants.ActionAcknowledge:         "Заявка %s принята отделом ИТ",
	constants.ActionAssignInternal:      "Заявка %s назначена исполнителю",
	constants.ActionAssignExternal:      "Заявка %s назначена внешнему исполнителю",
	constants.ActionAssignToVendorAdmin: "Заявка %s передана вендору",
	constants.ActionRedirectToIT:        "Заявка %s возвращена в отдел ИТ",
	constants.ActionAssignExternalLead:  "Заявка %s назначена вендором исполнителю",
	constants.ActionReassign:            "Заявка %s переназначена",
	constants.ActionMarkInProgress:      "Заявка %s взята в работу",
	constants.ActionMarkClosed:          "Заявка %s закрыта",
	constants.ActionUpdateRemark:        "По заявке %s обновлено примечание",
	constants.ActionUpdateFactor:        "По заявке %s изменен фактор",
}

var notificationTitles = func() map[string]string {
	titles := map[string]string{TemplateCRFCreated: "Новая заявка %s ожидает рассмотрения"}
	for action, title := range actionTitles {
		titles[TemplateKeyFor(action)] = title
	}
	return titles
}()

// RenderedNotification - текст уведомления, общий для всех каналов.
type RenderedNotification struct {
	EventID     string
	CRFID       uint64
	CRFNumber   string
	TemplateKey string
	Status      int
	StatusLabel string
	ActorName   string
	Title       string
	Body        string
	Link        string
}

type NotificationRenderer struct {
	baseURL string
}

func NewNotificationRenderer(frontendBaseURL string) *NotificationRenderer {
	return &NotificationRenderer{baseURL: strings.TrimRight(frontendBaseURL, "/")}
}

// Render собирает текст по ключу шаблона. Контекст мог пройти через JSON,
// поэтому числа читаются и как float64.
func (r *NotificationRenderer) Render(templateKey string, payload map[string]interface{}) RenderedNotification {
	n := RenderedNotification{
		EventID:     asString(payload["event_id"]),
		CRFID:       asUint64(payload["crf_id"]),
		CRFNumber:   asString(payload["crf_number"]),
		TemplateKey: templateKey,
		Status:      int(asUint64(payload["status"])),
		StatusLabel: asString(payload["status_label"]),
		ActorName:   asString(payload["actor_name"]),
	}
	n.Link = fmt.Sprintf("%s/crfs/%d", r.baseURL, n.CRFID)

	format, ok := notificationTitles[templateKey]
	if !ok {
		format = "Заявка %s: изменение статуса"
	}
	n.Title = fmt.Sprintf(format, n.CRFNumber)

	var b strings.Builder
	b.WriteString(n.Title)
	if n.StatusLabel != "" {
		fmt.Fprintf(&b, "\nСтатус: %s", n.StatusLabel)
	}
	if n.ActorName != "" {
		fmt.Fprintf(&b, "\nКто: %s", n.ActorName)
	}
	if remark := asString(payload["remark"]); remark != "" {
		fmt.Fprintf(&b, "\nКомментарий: %s", remark)
	}
	n.Body = b.String()
	return n
}

// TelegramHTML - тот же текст в HTML-разметке Telegram.
func (n RenderedNotification) TelegramHTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", telegram.EscapeHTML(n.Title))
	if n.StatusLabel != "" {
		fmt.Fprintf(&b, "\nСтатус: <i>%s</i>", telegram.EscapeHTML(n.StatusLabel))
	}
	if n.ActorName != "" {
		fmt.Fprintf(&b, "\nКто: %s", telegram.EscapeHTML(n.ActorName))
	}
	fmt.Fprintf(&b, "\n<a href=\"%s\">Открыть заявку</a>", n.Link)
	return b.String()
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func asUint64(v interface{}) uint64 {
	switch x := v.(type) {
	case uint64:
		return x
	case int:
		return uint64(x)
	case int64:
		return uint64(x)
	case float64:
		return uint64(x)
	case string:
		u, _ := strconv.ParseUint(x, 10, 64)
		return u
	}
	return 0
}
