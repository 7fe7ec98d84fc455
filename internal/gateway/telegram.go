package gateway

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rahul/sahayak/internal/agent"
)

// TelegramGateway lets a chat drive the assistant remotely. Each chat id is
// its own session.
type TelegramGateway struct {
	Bot       *tgbotapi.BotAPI
	Assistant agent.Assistant
}

func NewTelegramGateway(token string, assistant agent.Assistant) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:       bot,
		Assistant: assistant,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		ctx := context.Background()
		sessionID := fmt.Sprintf("%d", update.Message.Chat.ID)
		response, err := tg.Assistant.Run(ctx, sessionID, update.Message.Text)
		if err != nil {
			log.Printf("Run failed: %v", err)
			response = "I ran into a problem with that request, please try again."
		}

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, response)
		tg.Bot.Send(msg)
	}
	return nil
}

func (tg *TelegramGateway) Send(sessionID string, text string) error {
	id := 0
	fmt.Sscanf(sessionID, "%d", &id)
	if id == 0 {
		return fmt.Errorf("invalid chat ID: %s", sessionID)
	}

	msg := tgbotapi.NewMessage(int64(id), text)
	msg.ParseMode = "Markdown"
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
