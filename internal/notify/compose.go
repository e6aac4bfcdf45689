package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/keltjd-git-314/medical-monitor/internal/record"
	"github.com/keltjd-git-314/medical-monitor/internal/state"
)

const (
	// newEmployeeLimit caps the entries listed in a new-employee notice.
	newEmployeeLimit = 10
	// digestBucketLimit caps the entries listed per bucket in the digest.
	digestBucketLimit = 5

	timestampLayout = "02.01.2006 15:04"
	dateLayout      = "02.01.2006"
)

// ComposeNewEmployeeNotice renders the notification sent when new entries
// appear in the worksheet. At most newEmployeeLimit entries are listed, with
// a truncation note for the rest.
func ComposeNewEmployeeNotice(added []state.Tracked, monitorName string, now time.Time) string {
	var b strings.Builder
	b.WriteString("🆕 <b>НОВЫЙ СОТРУДНИК ВНЕСЕН В ТАБЛИЦУ</b>\n\n")
	fmt.Fprintf(&b, "<b>Монитор:</b> %s\n\n", html.EscapeString(monitorName))

	for i, entry := range added {
		if i == newEmployeeLimit {
			break
		}
		emoji := "⚠️"
		status := fmt.Sprintf("Осталось дней: %d", entry.DaysLeft)
		if !entry.HasMedicalBook {
			emoji = "❌"
			status = "Нет медкнижки"
		}

		fmt.Fprintf(&b, "%d. %s <b>%s</b>\n", i+1, emoji, html.EscapeString(entry.Name))
		if entry.Position != "" {
			fmt.Fprintf(&b, "   💼 %s\n", html.EscapeString(entry.Position))
		}
		fmt.Fprintf(&b, "   📅 %s\n\n", status)
	}

	if len(added) > newEmployeeLimit {
		fmt.Fprintf(&b, "<i>...и еще %d сотрудников</i>\n\n", len(added)-newEmployeeLimit)
	}

	fmt.Fprintf(&b, "⏰ Время добавления: %s", now.Format(timestampLayout))
	return b.String()
}

// ComposeDailyDigest renders the once-daily summary. With no problematic
// employees it is a short all-clear; otherwise it lists up to
// digestBucketLimit entries per bucket in the order no-book, expired,
// critical, followed by the total tracked count.
func ComposeDailyDigest(expired, critical, noBook []record.Record, monitorName, reportTime string, totalTracked int, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 <b>ЕЖЕДНЕВНЫЙ ОТЧЕТ ПО МЕДИЦИНСКИМ КНИЖКАМ</b>\n\n")
	fmt.Fprintf(&b, "<b>Дата:</b> %s\n", now.Format(dateLayout))
	fmt.Fprintf(&b, "<b>Монитор:</b> %s\n", html.EscapeString(monitorName))
	fmt.Fprintf(&b, "<b>Время отчета:</b> %s\n\n", reportTime)

	totalProblematic := len(expired) + len(critical) + len(noBook)
	if totalProblematic == 0 {
		b.WriteString("✅ <b>Все медицинские книжки в порядке!</b>\n")
		b.WriteString("Нет сотрудников с проблемными сроками или без медкнижек.\n")
	} else {
		fmt.Fprintf(&b, "⚠️ <b>Требуют внимания:</b> %d сотрудников\n\n", totalProblematic)

		if len(noBook) > 0 {
			b.WriteString("🔴 <b>БЕЗ МЕДИЦИНСКОЙ КНИЖКИ:</b>\n")
			for i, r := range noBook {
				if i == digestBucketLimit {
					break
				}
				fmt.Fprintf(&b, "%d. ❌ %s\n", i+1, html.EscapeString(r.Name))
				if r.Position != "" {
					fmt.Fprintf(&b, "   💼 %s\n", html.EscapeString(r.Position))
				}
			}
			writeBucketOverflow(&b, len(noBook))
			b.WriteString("\n")
		}

		if len(expired) > 0 {
			b.WriteString("🔴 <b>ПРОСРОЧЕНО:</b>\n")
			for i, r := range expired {
				if i == digestBucketLimit {
					break
				}
				fmt.Fprintf(&b, "%d. ❌ %s\n", i+1, html.EscapeString(r.Name))
				fmt.Fprintf(&b, "   📅 Просрочено: %d дней\n", -r.DaysLeft)
				if r.Position != "" {
					fmt.Fprintf(&b, "   💼 %s\n", html.EscapeString(r.Position))
				}
			}
			writeBucketOverflow(&b, len(expired))
			b.WriteString("\n")
		}

		if len(critical) > 0 {
			b.WriteString("🟠 <b>КРИТИЧЕСКИЕ СРОКИ (≤30 дней):</b>\n")
			for i, r := range critical {
				if i == digestBucketLimit {
					break
				}
				emoji := "🟠"
				if r.DaysLeft <= 7 {
					emoji = "🔴"
				}
				fmt.Fprintf(&b, "%d. %s %s\n", i+1, emoji, html.EscapeString(r.Name))
				fmt.Fprintf(&b, "   📅 Осталось: %d дней\n", r.DaysLeft)
				if r.Position != "" {
					fmt.Fprintf(&b, "   💼 %s\n", html.EscapeString(r.Position))
				}
			}
			writeBucketOverflow(&b, len(critical))
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\n📈 <b>Всего сотрудников в системе:</b> %d", totalTracked)
	fmt.Fprintf(&b, "\n\n⏰ <i>Следующий отчет: завтра в %s</i>", reportTime)
	return b.String()
}

// ComposeRefreshNotice renders the short message sent instead of detailed
// notifications during the nightly bulk-refresh window.
func ComposeRefreshNotice(monitorName string, now time.Time) string {
	return fmt.Sprintf(
		"🔄 <b>Обновление данных</b>\n\n<b>Монитор:</b> %s\n⏰ %s\n\nДанные из таблицы успешно обновлены.",
		html.EscapeString(monitorName), now.Format(timestampLayout))
}

// ComposeImmediateAlert renders a single-employee alert with a
// bucket-specific headline and status line.
func ComposeImmediateAlert(r record.Record, status record.Status, monitorName string, now time.Time) string {
	var title, emoji, statusLine string
	switch status {
	case record.StatusExpired:
		title = "СОТРУДНИК С ПРОСРОЧЕННОЙ МЕДКНИЖКОЙ"
		emoji = "🔴"
		statusLine = fmt.Sprintf("Просрочено на %d дней", -r.DaysLeft)
	case record.StatusCritical:
		title = "СОТРУДНИК С КРИТИЧЕСКИМ СРОКОМ"
		emoji = "🟠"
		statusLine = fmt.Sprintf("Осталось %d дней", r.DaysLeft)
	case record.StatusNoMedicalBook:
		title = "СОТРУДНИК БЕЗ МЕДИЦИНСКОЙ КНИЖКИ"
		emoji = "❌"
		statusLine = "Отсутствует медицинская книжка"
	default:
		title = "УВЕДОМЛЕНИЕ"
		emoji = "⚠️"
		statusLine = fmt.Sprintf("Осталось %d дней", r.DaysLeft)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", emoji, title)
	fmt.Fprintf(&b, "<b>Монитор:</b> %s\n\n", html.EscapeString(monitorName))
	fmt.Fprintf(&b, "<b>Сотрудник:</b> %s\n", html.EscapeString(r.Name))
	if r.Position != "" {
		fmt.Fprintf(&b, "<b>Должность:</b> %s\n", html.EscapeString(r.Position))
	}
	fmt.Fprintf(&b, "<b>Статус:</b> %s\n", statusLine)
	fmt.Fprintf(&b, "\n⏰ Обнаружено: %s", now.Format(timestampLayout))
	return b.String()
}

// ComposeTestMessage renders the message delivered by the send-test command.
func ComposeTestMessage(monitorName string, now time.Time) string {
	return fmt.Sprintf(
		"🔔 <b>Тестовое сообщение</b>\n\n<b>Монитор:</b> %s\n⏰ %s\n\nУведомления настроены и работают.",
		html.EscapeString(monitorName), now.Format(timestampLayout))
}

func writeBucketOverflow(b *strings.Builder, total int) {
	if total > digestBucketLimit {
		fmt.Fprintf(b, "   ...и еще %d\n", total-digestBucketLimit)
	}
}
