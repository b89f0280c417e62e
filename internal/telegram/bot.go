// Package telegram 把对话编排器接到 Telegram Bot API
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"omni-agent/internal/markdown"
	"omni-agent/internal/tools"
)

const (
	DefaultProcessingText = "⏳ Processing..."
	ErrorText             = "Sorry, I encountered an error processing your request. Please try again."
	unknownCommandText    = "Unknown command. Send /help to see what I can do."
	resetText             = "Conversation history cleared. Let's start over!"
	newsErrorText         = "Sorry, I could not fetch the latest news right now. Please try again later."

	summarizeData = "news:summarize"
)

const helpText = `Available commands:
/start - Start the bot
/help - Show this help message
/news - Latest SUI news
/reset - Clear our conversation

I am Omni Agent, your blockchain and cryptocurrency assistant. You can ask me about:

• Blockchain technology and concepts
• Cryptocurrencies and tokens
• DeFi (Decentralized Finance)
• NFTs and Web3
• Crypto markets and news
• Latest blockchain developments

I can also create Sui wallets, tokens and NFTs, and check balances.

Just send me a message with your blockchain-related question!`

// Commands 启动时通过 setMyCommands 注册
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start the bot"},
	{Command: "help", Description: "Show help"},
	{Command: "news", Description: "Latest SUI news"},
	{Command: "reset", Description: "Clear conversation history"},
}

// API 机器人用到的 Bot API 子集，由 *tgbotapi.BotAPI 实现
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler 处理一条文本消息，返回回复与是否为 HTML
type Handler interface {
	HandleMessage(ctx context.Context, userID int64, text string) (string, bool)
}

// NewsSource 提供最新新闻
type NewsSource interface {
	Latest(ctx context.Context) ([]tools.NewsItem, error)
}

// Summarizer 把新闻整理为用户语言的简报，失败时仍返回可展示的文本
type Summarizer interface {
	Summarize(ctx context.Context, items []tools.NewsItem, languageCode string) (string, error)
}

// SessionResetter 清空用户会话
type SessionResetter interface {
	Reset(userID int64) bool
}

// Deps 机器人依赖
type Deps struct {
	Agent          Handler
	News           NewsSource
	Summarizer     Summarizer
	Sessions       SessionResetter
	ProcessingText string
}

// Bot Telegram 传输层：每条文本消息在独立 goroutine 中处理
type Bot struct {
	api  API
	deps Deps
	wg   sync.WaitGroup
}

func New(api API, deps Deps) *Bot {
	if deps.ProcessingText == "" {
		deps.ProcessingText = DefaultProcessingText
	}
	return &Bot{api: api, deps: deps}
}

// RegisterCommands 注册命令菜单
func (b *Bot) RegisterCommands() error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

// Run 消费更新直到 ctx 取消或通道关闭，返回前等待进行中的对话结束
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	slog.Info("Telegram bot started")
	defer func() {
		b.Wait()
		slog.Info("Telegram bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

// Wait 等待所有后台对话结束
func (b *Bot) Wait() { b.wg.Wait() }

// HandleUpdate 分发一条更新
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message == nil || u.Message.From == nil:
		return
	case u.Message.IsCommand():
		b.handleCommand(ctx, u.Message)
	case strings.TrimSpace(u.Message.Text) != "":
		b.handleText(ctx, u.Message)
	}
}

//
// ============================================================
// Commands
// ============================================================
//

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"Hi %s!\n\nI'm Omni Agent, your blockchain and cryptocurrency assistant.\n\nCan I help you with anything?",
			msg.From.FirstName)))
	case "help":
		b.send(tgbotapi.NewMessage(chatID, helpText))
	case "reset":
		if b.deps.Sessions != nil {
			b.deps.Sessions.Reset(msg.From.ID)
		}
		slog.Info("Session reset by command", slog.Int64("user_id", msg.From.ID))
		b.send(tgbotapi.NewMessage(chatID, resetText))
	case "news":
		b.sendNews(ctx, chatID)
	default:
		b.send(tgbotapi.NewMessage(chatID, unknownCommandText))
	}
}

func (b *Bot) sendNews(ctx context.Context, chatID int64) {
	if b.deps.News == nil {
		b.send(tgbotapi.NewMessage(chatID, newsErrorText))
		return
	}
	items, err := b.deps.News.Latest(ctx)
	if err != nil {
		slog.Warn("Fetching news failed", slog.String("err", err.Error()))
		b.send(tgbotapi.NewMessage(chatID, newsErrorText))
		return
	}

	var keyboard *tgbotapi.InlineKeyboardMarkup
	if len(items) > 0 && b.deps.Summarizer != nil {
		kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Summarize", summarizeData),
		))
		keyboard = &kb
	}
	text := "*Latest SUI news*\n\n" + tools.FormatNews(items)
	if err := b.deliverMarkdown(chatID, text, keyboard); err != nil {
		slog.Error("Sending news failed", slog.String("err", err.Error()))
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		slog.Warn("Answering callback failed", slog.String("err", err.Error()))
	}
	if q.Data != summarizeData || q.Message == nil || b.deps.News == nil || b.deps.Summarizer == nil {
		return
	}
	chatID := q.Message.Chat.ID
	lang := ""
	if q.From != nil {
		lang = q.From.LanguageCode
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

		items, err := b.deps.News.Latest(ctx)
		if err != nil {
			slog.Warn("Fetching news failed", slog.String("err", err.Error()))
			b.send(tgbotapi.NewMessage(chatID, newsErrorText))
			return
		}
		summary, err := b.deps.Summarizer.Summarize(ctx, items, lang)
		if err != nil {
			slog.Warn("News summary failed, showing raw news", slog.String("err", err.Error()))
		}
		if err := b.deliverMarkdown(chatID, summary, nil); err != nil {
			slog.Error("Sending news summary failed", slog.String("err", err.Error()))
		}
	}()
}

//
// ============================================================
// Conversation
// ============================================================
//

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	slog.Info("Received message",
		slog.String("from", msg.From.FirstName),
		slog.Int64("user_id", userID),
		slog.Int("length", len(msg.Text)),
	)

	b.request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	processing, err := b.api.Send(tgbotapi.NewMessage(chatID, b.deps.ProcessingText))
	if err != nil {
		slog.Warn("Sending processing message failed", slog.String("err", err.Error()))
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Conversation turn panicked", slog.Int64("user_id", userID), slog.Any("panic", r))
				b.removeMessage(chatID, processing.MessageID)
				b.send(tgbotapi.NewMessage(chatID, ErrorText))
			}
		}()

		reply, isHTML := b.deps.Agent.HandleMessage(ctx, userID, msg.Text)
		b.removeMessage(chatID, processing.MessageID)

		var sendErr error
		if isHTML {
			sendErr = b.deliverHTML(chatID, reply, nil)
		} else {
			sendErr = b.deliverPlain(chatID, reply, nil)
		}
		if sendErr != nil {
			slog.Error("Failed to send reply", slog.Int64("user_id", userID), slog.String("err", sendErr.Error()))
			b.send(tgbotapi.NewMessage(chatID, ErrorText))
		}
	}()
}

//
// ============================================================
// Delivery helpers
// ============================================================
//

// deliverMarkdown 渲染 markdown 后发送，渲染失败时发送纯文本
func (b *Bot) deliverMarkdown(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	rendered, ok := markdown.ToHTML(text)
	if !ok {
		return b.deliverPlain(chatID, rendered, keyboard)
	}
	return b.deliverHTML(chatID, rendered, keyboard)
}

// deliverHTML 以 HTML 发送；Telegram 拒绝时改发去掉标签的纯文本
func (b *Bot) deliverHTML(chatID int64, body string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, body)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	_, err := b.api.Send(msg)
	if err == nil {
		return nil
	}
	slog.Warn("HTML reply rejected, resending as plain text", slog.String("err", err.Error()))
	return b.deliverPlain(chatID, markdown.StripHTML(body), keyboard)
}

func (b *Bot) deliverPlain(chatID int64, body string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, body)
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) removeMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		slog.Warn("Failed to delete processing message", slog.String("err", err.Error()))
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		slog.Error("Telegram send failed", slog.String("err", err.Error()))
	}
}

func (b *Bot) request(c tgbotapi.Chattable) {
	if _, err := b.api.Request(c); err != nil {
		slog.Warn("Telegram request failed", slog.String("err", err.Error()))
	}
}
