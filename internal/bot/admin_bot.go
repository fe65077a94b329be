package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram_arena/internal/logger"
	"telegram_arena/internal/service"
	"telegram_arena/internal/ton"
)

// AdminBot обрабатывает команды администраторов и рассылает
// уведомления об итогах партий, пополнениях и выплатах
type AdminBot struct {
	bot          *tgbotapi.BotAPI
	adminService *service.AdminService
	adminIDs     []int64 // Telegram ID пользователей с правами админа
	stopCh       chan struct{}
	wg           sync.WaitGroup
	log          *slog.Logger

	mu               sync.Mutex
	broadcastPending map[int64]bool // админы, ожидающие ввода сообщения для рассылки
}

// NewAdminBot создаёт нового админ бота
func NewAdminBot(token string, adminService *service.AdminService, adminIDs []int64) (*AdminBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log := logger.With("component", "admin_bot")
	log.Info("admin bot authorized", "username", bot.Self.UserName)

	return &AdminBot{
		bot:              bot,
		adminService:     adminService,
		adminIDs:         adminIDs,
		stopCh:           make(chan struct{}),
		log:              log,
		broadcastPending: make(map[int64]bool),
	}, nil
}

// Start запускает прослушивание команд
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			if update.Message == nil {
				continue
			}

			if !b.isAdmin(update.Message.From.ID) {
				continue
			}

			b.mu.Lock()
			pending := b.broadcastPending[update.Message.From.ID]
			b.mu.Unlock()

			if pending && !update.Message.IsCommand() {
				b.wg.Add(1)
				go func(msg *tgbotapi.Message) {
					defer b.wg.Done()
					b.executeBroadcast(msg)
				}(update.Message)
				continue
			}

			if !update.Message.IsCommand() {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop плавно останавливает бота
func (b *AdminBot) Stop() {
	b.log.Info("stopping admin bot...")
	close(b.stopCh)
	b.bot.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var response string

	switch msg.Command() {
	case "start", "help":
		response = b.helpMessage()

	case "stats":
		response = b.handleStats(ctx)

	case "user":
		response = b.handleUser(ctx, msg.CommandArguments())

	case "ban":
		response = b.handleBan(ctx, msg.CommandArguments())

	case "unban":
		response = b.handleUnban(ctx, msg.CommandArguments())

	case "top":
		response = b.handleTop(ctx, msg.CommandArguments())

	case "sessions":
		response = b.handleRecentSessions(ctx)

	case "payouts":
		response = b.handleProblemPayouts(ctx)

	case "retry":
		response = b.handleRetryPayout(ctx, msg.CommandArguments())

	case "deposits":
		response = b.handleRecentDeposits(ctx)

	case "balance":
		response = b.handlePlatformBalance(ctx)

	case "broadcast":
		response = b.handleBroadcastStart(msg.From.ID)

	default:
		response = "Неизвестная команда. Используйте /help для списка команд."
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.bot.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

func (b *AdminBot) helpMessage() string {
	return `<b>Команды администратора</b>

<b>Статистика:</b>
/stats — сводка платформы
/sessions — последние партии
/deposits — последние пополнения
/balance — баланс кошелька платформы

<b>Пользователи:</b>
/user &lt;@username|tg_id&gt; — информация о пользователе
/top [n] — лучшие игроки
/ban &lt;@username|tg_id&gt; — заблокировать
/unban &lt;@username|tg_id&gt; — разблокировать

<b>Выплаты:</b>
/payouts — проблемные выплаты
/retry &lt;id&gt; — вернуть неудавшуюся выплату в очередь

<b>Рассылка:</b>
/broadcast — отправить сообщение всем пользователям`
}

func (b *AdminBot) handleStats(ctx context.Context) string {
	stats, err := b.adminService.GetStats(ctx)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf(`<b>Статистика платформы</b>

<b>Пользователи:</b>
- Всего: %d
- Активных сегодня: %d
- Активных за неделю: %d

<b>Партии:</b>
- Всего: %d
- Сегодня: %d
- Идут сейчас: %d
- Ждут начала: %d

<b>Экономика:</b>
- Внутренние балансы: %.2f TON
- Поставлено за все время: %.2f TON
- Поставлено сегодня: %.2f TON
- Комиссия за все время: %.3f TON
- Комиссия сегодня: %.3f TON

<b>Выплаты:</b>
- В очереди: %d
- Неудавшихся: %d
- Переслано в сеть: %.2f TON`,
		stats.TotalUsers,
		stats.ActiveUsersToday,
		stats.ActiveUsersWeek,
		stats.TotalSessions,
		stats.SessionsToday,
		stats.SessionsLive,
		stats.SessionsPending,
		ton.NanoToTON(stats.TotalBalanceNano),
		ton.NanoToTON(stats.TotalStakedNano),
		ton.NanoToTON(stats.StakedTodayNano),
		ton.NanoToTON(stats.TotalRakeNano),
		ton.NanoToTON(stats.RakeTodayNano),
		stats.PendingPayouts,
		stats.FailedPayouts,
		ton.NanoToTON(stats.TotalForwardedNano),
	)
}

func (b *AdminBot) handleUser(ctx context.Context, args string) string {
	if args == "" {
		return "Использование: /user <@username|tg_id>"
	}

	user, err := b.adminService.GetUser(ctx, args)
	if err != nil {
		return fmt.Sprintf("Пользователь не найден: %v", err)
	}

	banned := "нет"
	if user.IsBanned {
		banned = "да"
	}

	return fmt.Sprintf(`<b>Информация о пользователе</b>

- ID: %d
- Telegram ID: %d
- Username: @%s
- Имя: %s
- Баланс: %.3f TON
- Партий сыграно: %d
- Побед: %d
- Поражений: %d
- Выиграно: %.3f TON
- Поставлено: %.3f TON
- Заблокирован: %s
- Регистрация: %s`,
		user.ID,
		user.TgID,
		user.Username,
		user.FirstName,
		ton.NanoToTON(user.BalanceNano),
		user.GamesPlayed,
		user.Wins,
		user.Losses,
		ton.NanoToTON(user.TotalWon),
		ton.NanoToTON(user.TotalStaked),
		banned,
		user.CreatedAt.Format("02.01.2006 15:04"),
	)
}

func (b *AdminBot) handleBan(ctx context.Context, args string) string {
	if args == "" {
		return "Использование: /ban <@username|tg_id>"
	}

	userID, err := b.adminService.ResolveUserIdentifier(ctx, args)
	if err != nil {
		return fmt.Sprintf("Пользователь не найден: %v", err)
	}

	if err := b.adminService.BanUser(ctx, userID); err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return "Пользователь заблокирован"
}

func (b *AdminBot) handleUnban(ctx context.Context, args string) string {
	if args == "" {
		return "Использование: /unban <@username|tg_id>"
	}

	userID, err := b.adminService.ResolveUserIdentifier(ctx, args)
	if err != nil {
		return fmt.Sprintf("Пользователь не найден: %v", err)
	}

	if err := b.adminService.UnbanUser(ctx, userID); err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return "Пользователь разблокирован"
}

func (b *AdminBot) handleTop(ctx context.Context, args string) string {
	limit := 10
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	users, err := b.adminService.GetTopUsers(ctx, limit)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	if len(users) == 0 {
		return "Пользователи не найдены"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Топ %d по выигрышам</b>\n\n", limit))

	for i, u := range users {
		username := u.Username
		if username == "" {
			username = u.FirstName
		}
		sb.WriteString(fmt.Sprintf("%d. @%s — %.2f TON, побед %d\n",
			i+1, username, ton.NanoToTON(u.TotalWon), u.Wins))
	}

	return sb.String()
}

func (b *AdminBot) handleRecentSessions(ctx context.Context) string {
	sessions, err := b.adminService.GetRecentSessions(ctx, 10)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	if len(sessions) == 0 {
		return "Нет недавних партий"
	}

	var sb strings.Builder
	sb.WriteString("<b>Последние партии</b>\n\n")

	for _, s := range sessions {
		result := s["result"].(string)
		if result == "" {
			result = s["status"].(string)
		}

		sb.WriteString(fmt.Sprintf("%s | %s vs %s | %.2f TON | %s | ходов: %d\n",
			s["game_type"],
			s["player1"],
			s["player2"],
			ton.NanoToTON(s["stake_nano"].(int64)),
			result,
			s["move_count"],
		))
	}

	return sb.String()
}

func (b *AdminBot) handleProblemPayouts(ctx context.Context) string {
	payouts, err := b.adminService.GetProblemPayouts(ctx, 15)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	if len(payouts) == 0 {
		return "Очередь выплат пуста"
	}

	var sb strings.Builder
	sb.WriteString("<b>Неотправленные выплаты</b>\n\n")

	for _, p := range payouts {
		sb.WriteString(fmt.Sprintf("#%d @%s %.3f TON [%s]",
			p.ID, p.Username, ton.NanoToTON(p.AmountNano), p.Status))
		if p.FailReason != "" {
			sb.WriteString(" — " + p.FailReason)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n/retry <id> вернет failed-выплату в очередь")
	return sb.String()
}

func (b *AdminBot) handleRetryPayout(ctx context.Context, args string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return "Использование: /retry <id выплаты>"
	}

	if err := b.adminService.RetryPayout(ctx, id); err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf("Выплата #%d возвращена в очередь", id)
}

func (b *AdminBot) handleRecentDeposits(ctx context.Context) string {
	deposits, err := b.adminService.GetRecentDeposits(ctx, 10)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	if len(deposits) == 0 {
		return "Пополнений пока не было"
	}

	var sb strings.Builder
	sb.WriteString("<b>Последние пополнения</b>\n\n")

	for _, d := range deposits {
		name := d.Username
		if name == "" {
			name = strconv.FormatInt(d.UserID, 10)
		}
		sb.WriteString(fmt.Sprintf("@%s +%.3f TON %s\n",
			name, ton.NanoToTON(d.AmountNano), d.CreatedAt.Format("02.01 15:04")))
	}

	return sb.String()
}

func (b *AdminBot) handlePlatformBalance(ctx context.Context) string {
	balance, err := b.adminService.GetPlatformBalance(ctx)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf("Баланс кошелька платформы: %.4f TON", ton.NanoToTON(int64(balance)))
}

func (b *AdminBot) handleBroadcastStart(adminID int64) string {
	b.mu.Lock()
	b.broadcastPending[adminID] = true
	b.mu.Unlock()

	return `<b>Режим рассылки</b>

Введите сообщение для рассылки ниже.

<b>Поддерживается:</b>
- Текст с HTML разметкой
- Фото с подписью

Отправьте /cancel для отмены.`
}

func (b *AdminBot) executeBroadcast(msg *tgbotapi.Message) {
	adminID := msg.From.ID
	chatID := msg.Chat.ID

	b.mu.Lock()
	delete(b.broadcastPending, adminID)
	b.mu.Unlock()

	if msg.Text == "/cancel" {
		reply := tgbotapi.NewMessage(chatID, "Рассылка отменена")
		b.bot.Send(reply)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	b.log.Info("starting broadcast", "admin_id", adminID)

	userIDs, err := b.adminService.GetAllUserTgIDs(ctx)
	if err != nil {
		b.log.Error("failed to get user IDs", "error", err)
		reply := tgbotapi.NewMessage(chatID, fmt.Sprintf("Ошибка: %v", err))
		b.bot.Send(reply)
		return
	}

	if len(userIDs) == 0 {
		reply := tgbotapi.NewMessage(chatID, "Нет пользователей для рассылки")
		b.bot.Send(reply)
		return
	}

	progressMsg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Начинаю рассылку %d пользователям...", len(userIDs)))
	b.bot.Send(progressMsg)

	sent := 0
	failed := 0
	blocked := 0

	for _, tgID := range userIDs {
		var err error

		if len(msg.Photo) > 0 {
			photo := msg.Photo[len(msg.Photo)-1]
			photoMsg := tgbotapi.NewPhoto(tgID, tgbotapi.FileID(photo.FileID))
			photoMsg.Caption = msg.Caption
			photoMsg.ParseMode = "HTML"
			_, err = b.bot.Send(photoMsg)
		} else {
			textMsg := tgbotapi.NewMessage(tgID, msg.Text)
			textMsg.ParseMode = "HTML"
			textMsg.DisableWebPagePreview = true
			_, err = b.bot.Send(textMsg)
		}

		if err != nil {
			if strings.Contains(err.Error(), "blocked") || strings.Contains(err.Error(), "deactivated") {
				blocked++
			} else {
				b.log.Error("failed to send broadcast", "tg_id", tgID, "error", err)
			}
			failed++
		} else {
			sent++
		}

		// ограничение Telegram: не больше ~30 сообщений в секунду
		time.Sleep(50 * time.Millisecond)
	}

	b.log.Info("broadcast complete", "sent", sent, "failed", failed, "blocked", blocked)

	result := fmt.Sprintf(`<b>Рассылка завершена</b>

Отправлено: %d
Не доставлено: %d
Заблокировали бота: %d`, sent, failed-blocked, blocked)

	reply := tgbotapi.NewMessage(chatID, result)
	reply.ParseMode = "HTML"
	b.bot.Send(reply)
}

// SendNotification отправляет произвольное сообщение пользователю
func (b *AdminBot) SendNotification(tgID int64, message string) error {
	if tgID <= 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(tgID, message)
	msg.ParseMode = "HTML"
	_, err := b.bot.Send(msg)
	return err
}

func (b *AdminBot) notifyAdmins(message string) {
	for _, adminID := range b.adminIDs {
		if err := b.SendNotification(adminID, message); err != nil {
			b.log.Error("failed to notify admin", "admin_id", adminID, "error", err)
		}
	}
}

// NotifySettlement рассылает игрокам итог рассчитанной партии
func (b *AdminBot) NotifySettlement(n service.SettlementNotification) {
	for _, player := range n.Players {
		if player == nil || player.TgID <= 0 {
			continue
		}

		var text string
		switch {
		case n.Draw:
			text = fmt.Sprintf("Ничья в %s. Ставка %.3f TON возвращена на баланс.",
				n.GameType, ton.NanoToTON(n.PayoutNano))
		case n.Winner != nil && n.Winner.ID == player.ID:
			text = fmt.Sprintf("Победа в %s! Выигрыш %.3f TON зачислен на баланс.",
				n.GameType, ton.NanoToTON(n.PayoutNano))
			if n.Forwarded {
				text += " Сумма поставлена в очередь отправки на ваш кошелек."
			}
		default:
			text = fmt.Sprintf("Поражение в %s. Ставка %.3f TON ушла сопернику.",
				n.GameType, ton.NanoToTON(n.StakeNano))
		}

		if err := b.SendNotification(player.TgID, text); err != nil {
			b.log.Error("failed to send result", "tg_id", player.TgID, "error", err)
		}
	}
}

// NotifyPayout сообщает пользователю об исходе пересылки выигрыша,
// о неудачах дополнительно узнают админы
func (b *AdminBot) NotifyPayout(n service.PayoutNotification) {
	if n.Failed {
		b.notifyAdmins(fmt.Sprintf(`<b>Выплата не прошла</b>

#%d @%s %.3f TON
Причина: %s`, n.PayoutID, n.Username, n.AmountTON, n.FailReason))
		return
	}

	text := fmt.Sprintf("Выплата %.3f TON отправлена на ваш кошелек.\nТранзакция: %s", n.AmountTON, n.TxHash)
	if err := b.SendNotification(n.TgID, text); err != nil {
		b.log.Error("failed to send payout notice", "tg_id", n.TgID, "error", err)
	}
}

// NotifyDeposit сообщает пользователю о зачислении пополнения
func (b *AdminBot) NotifyDeposit(n service.DepositNotification) {
	text := fmt.Sprintf("Баланс пополнен на %.3f TON.\nТекущий баланс: %.3f TON",
		ton.NanoToTON(n.AmountNano), ton.NanoToTON(n.NewBalanceNano))
	if err := b.SendNotification(n.TgID, text); err != nil {
		b.log.Error("failed to send deposit notice", "tg_id", n.TgID, "error", err)
	}

	name := n.Username
	if name == "" {
		name = strconv.FormatInt(n.UserID, 10)
	}
	b.notifyAdmins(fmt.Sprintf("Пополнение: @%s +%.3f TON", name, ton.NanoToTON(n.AmountNano)))
}
