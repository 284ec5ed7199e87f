package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/reelbot/internal/delivery"
	"github.com/user/reelbot/internal/gateway"
	"github.com/user/reelbot/internal/store"
	"github.com/user/reelbot/internal/types"
)

const (
	// sendTimeout bounds the video upload to Telegram. Large files can take
	// a while; past this we warn the user instead of blocking the worker.
	sendTimeout = 90 * time.Second

	fileFetchTimeout = 30 * time.Second

	// maxPhotoBytes caps the source image we accept from Telegram.
	maxPhotoBytes = 10 << 20
)

const helpText = `Send /video with a prompt to animate a photo.

/video <prompt> - reply to a photo, or attach one, with a description of the motion you want
/videostatus - check whether your generation is still running
/videohelp - this message`

// Diagnostics is the service state shown to admins by /videostatus. Secrets
// are reduced to a configured/missing flag before they get here.
type Diagnostics struct {
	Enabled        bool
	KeyConfigured  bool
	BaseURL        string
	Model          string
	TimeoutSeconds int
	RetryAttempts  int
	StorageDir     string
}

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot        *tgbotapi.BotAPI
	gateway    *gateway.Gateway
	videos     *store.VideoStore
	diag       Diagnostics
	admins     map[string]bool
	fileClient *http.Client
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, videos *store.VideoStore, diag Diagnostics, admins []string) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := &Adapter{
		bot:        bot,
		gateway:    gw,
		videos:     videos,
		diag:       diag,
		admins:     make(map[string]bool, len(admins)),
		fileClient: &http.Client{Timeout: fileFetchTimeout},
	}
	for _, id := range admins {
		a.admins[id] = true
	}
	return a, nil
}

// RegisterDelivery installs the handler that routes finished generations back
// to their originating chat.
func (a *Adapter) RegisterDelivery(registry *delivery.Registry) {
	registry.Register("telegram:", func(ctx context.Context, key types.ChatKey, art *types.Artifact, note string) error {
		chatID, err := chatIDFromKey(key)
		if err != nil {
			return err
		}
		if note != "" {
			a.sendText(chatID, note)
			return nil
		}
		return a.sendVideo(chatID, art)
	})
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			a.handleCommand(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "video":
		a.handleVideo(ctx, msg)

	case "videostatus":
		userID := strconv.FormatInt(msg.From.ID, 10)
		if !a.admins[userID] {
			a.sendText(chatID, "Only admins can view the service status.")
			return
		}
		a.sendText(chatID, a.statusText())

	case "videohelp":
		a.sendText(chatID, helpText)

	default:
		a.sendText(chatID, "Unknown command. Available: /video, /videostatus, /videohelp")
	}
}

func (a *Adapter) handleVideo(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	prompt := strings.TrimSpace(msg.CommandArguments())

	photo := pickPhoto(msg)
	if photo == nil {
		a.sendText(chatID, "Attach a photo, or reply to one, and tell me how to animate it: /video <prompt>")
		return
	}
	if prompt == "" {
		a.sendText(chatID, "Tell me what should happen in the video: /video <prompt>")
		return
	}

	imageURI, err := a.fetchPhoto(ctx, photo)
	if err != nil {
		slog.Error("photo fetch failed", "chat_id", chatID, "error", err)
		a.sendText(chatID, "I couldn't read that photo, try sending it again.")
		return
	}

	req := &types.GenerationRequest{
		Prompt:       prompt,
		ImageDataURI: imageURI,
		UserID:       strconv.FormatInt(msg.From.ID, 10),
		GroupID:      groupIDOf(msg.Chat),
		ChatKey:      buildChatKey(msg.From.ID, msg.Chat.ID),
	}
	if err := a.gateway.Submit(ctx, req); err != nil {
		a.sendText(chatID, gateway.UserMessage(err))
		return
	}
	a.sendText(chatID, "Generating your video, this can take a few minutes...")
}

// pickPhoto returns the largest photo size from the replied-to message first,
// then from the command message itself.
func pickPhoto(msg *tgbotapi.Message) *tgbotapi.PhotoSize {
	if msg.ReplyToMessage != nil && len(msg.ReplyToMessage.Photo) > 0 {
		sizes := msg.ReplyToMessage.Photo
		return &sizes[len(sizes)-1]
	}
	if len(msg.Photo) > 0 {
		return &msg.Photo[len(msg.Photo)-1]
	}
	return nil
}

// fetchPhoto downloads the photo and encodes it as a data URI for the
// generation API.
func (a *Adapter) fetchPhoto(ctx context.Context, photo *tgbotapi.PhotoSize) (string, error) {
	url, err := a.bot.GetFileDirectURL(photo.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve file URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.fileClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download photo: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	return encodeImageDataURI(data), nil
}

func encodeImageDataURI(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

func (a *Adapter) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := a.bot.Send(msg); err != nil {
		slog.Error("send message failed", "chat_id", chatID, "error", err)
	}
}

func (a *Adapter) statusText() string {
	key := "missing"
	if a.diag.KeyConfigured {
		key = "configured"
	}
	stored := 0
	if a.videos != nil {
		if files, err := a.videos.List(); err == nil {
			stored = len(files)
		}
	}
	return fmt.Sprintf(
		"Video generation: %v\nAPI key: %s\nAPI URL: %s\nModel: %s\nTimeout: %ds\nRetries: %d\nStorage: %s (%d stored)",
		a.diag.Enabled, key, a.diag.BaseURL, a.diag.Model,
		a.diag.TimeoutSeconds, a.diag.RetryAttempts, a.diag.StorageDir, stored)
}

// sendVideo hands the artifact to Telegram, preferring the remote URL so
// Telegram fetches the file itself; the local copy is the fallback. The send
// runs under a deadline; on expiry the user gets a soft warning since
// Telegram may still complete the transfer.
func (a *Adapter) sendVideo(chatID int64, art *types.Artifact) error {
	var file tgbotapi.RequestFileData
	if art.RemoteURL != "" {
		file = tgbotapi.FileURL(art.RemoteURL)
	} else {
		file = tgbotapi.FilePath(art.LocalPath)
	}
	video := tgbotapi.NewVideo(chatID, file)

	errCh := make(chan error, 1)
	go func() {
		_, err := a.bot.Send(video)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("send video failed", "chat_id", chatID, "error", err)
			a.sendText(chatID, "Sending the video failed, sorry.")
			return fmt.Errorf("send video: %w", err)
		}
		return nil
	case <-time.After(sendTimeout):
		slog.Warn("video upload exceeded deadline", "chat_id", chatID)
		a.sendText(chatID, "The upload is taking longer than expected, the video may still arrive.")
		return nil
	}
}

// groupIDOf returns a stable group identifier, or empty for direct chats.
func groupIDOf(chat *tgbotapi.Chat) string {
	if chat == nil || chat.IsPrivate() {
		return ""
	}
	return strconv.FormatInt(chat.ID, 10)
}

func buildChatKey(userID, chatID int64) types.ChatKey {
	return types.NewChatKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}

// chatIDFromKey parses the chat ID back out of a "telegram:<user>:<chat>" key.
func chatIDFromKey(key types.ChatKey) (int64, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed chat key: %q", key)
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed chat key: %q", key)
	}
	return id, nil
}
