package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client is a thin wrapper over the Telegram Bot API. Only the methods
// the tracker needs are implemented.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// NewClient builds a client for the given bot token. baseURL normally
// stays "https://api.telegram.org" and is overridable for tests.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 65 * time.Second},
		baseURL:    baseURL,
		token:      token,
		logger:     logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	var body io.Reader
	if params != nil {
		payload, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
		body = bytes.NewReader(payload)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram %s: %s (code %d)", method, parsed.Description, parsed.ErrorCode)
	}
	if result != nil {
		if err := json.Unmarshal(parsed.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// User mirrors the Bot API user object.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// Chat mirrors the Bot API chat object.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message mirrors the Bot API message object.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
	Date      int64  `json:"date"`
}

// Update mirrors the Bot API update object.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// InlineKeyboardButton supports url and web_app buttons.
type InlineKeyboardButton struct {
	Text   string      `json:"text"`
	URL    string      `json:"url,omitempty"`
	WebApp *WebAppInfo `json:"web_app,omitempty"`
}

type WebAppInfo struct {
	URL string `json:"url"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessageParams struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// GetMe fetches the bot's own identity.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// SendMessage delivers an HTML-formatted message to a private chat,
// optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error {
	params := sendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	}
	return c.call(ctx, "sendMessage", params, nil)
}

type getUpdatesParams struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	params := getUpdatesParams{
		Offset:         offset,
		Timeout:        timeoutSec,
		AllowedUpdates: []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

type userProfilePhotos struct {
	TotalCount int           `json:"total_count"`
	Photos     [][]photoSize `json:"photos"`
}

type photoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type fileInfo struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// GetLatestProfilePhotoFileID returns the file id of the largest size
// of the user's most recent profile photo, or empty when none exists.
func (c *Client) GetLatestProfilePhotoFileID(ctx context.Context, telegramID int64) (string, error) {
	var photos userProfilePhotos
	params := map[string]any{"user_id": telegramID, "limit": 1}
	if err := c.call(ctx, "getUserProfilePhotos", params, &photos); err != nil {
		return "", err
	}
	if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return "", nil
	}
	sizes := photos.Photos[0]
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	return best.FileID, nil
}

// DownloadFile fetches a file's bytes by file id.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	var info fileInfo
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &info); err != nil {
		return nil, err
	}
	if info.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile: empty file_path for %s", fileID)
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, info.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

type botCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// SetMyCommands registers the bot's command menu.
func (c *Client) SetMyCommands(ctx context.Context) error {
	params := map[string]any{
		"commands": []botCommand{
			{Command: "start", Description: "Link your account and open the tracker"},
			{Command: "help", Description: "What this bot can do"},
		},
	}
	return c.call(ctx, "setMyCommands", params, nil)
}
