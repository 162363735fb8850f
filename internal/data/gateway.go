package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/repo"
)

const (
	gatewayRequestTimeout = 60 * time.Second
	reconnectBaseDelay    = time.Second
	reconnectMaxDelay     = 30 * time.Second
)

// gatewayClient implements repo.ClientRepo over the automation gateway's HTTP
// API plus its WebSocket event stream. The gateway owns the browser session;
// this side only speaks its wire protocol.
type gatewayClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	events chan repo.ClientEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGatewayClient creates a client for the gateway at baseURL.
func NewGatewayClient(baseURL string, log zerolog.Logger) repo.ClientRepo {
	return &gatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: gatewayRequestTimeout},
		log:     log.With().Str("component", "gateway").Logger(),
		events:  make(chan repo.ClientEvent, 256),
		done:    make(chan struct{}),
	}
}

// Start launches the event stream reader. The reader reconnects with capped
// exponential backoff until the context is cancelled or Stop is called; a
// gateway that is down at start is retried the same way, so Start itself does
// not fail on connection errors.
func (c *gatewayClient) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.readLoop(runCtx)
	return nil
}

// Stop tears the stream down and closes the event channel.
func (c *gatewayClient) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *gatewayClient) Events() <-chan repo.ClientEvent {
	return c.events
}

func (c *gatewayClient) readLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	wsURL, err := c.websocketURL()
	if err != nil {
		c.log.Error().Err(err).Msg("invalid gateway url, event stream disabled")
		return
	}

	delay := reconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("event stream connect failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		c.log.Info().Str("url", wsURL).Msg("event stream connected")
		delay = reconnectBaseDelay
		c.consume(ctx, conn)
	}
}

// consume reads events until the connection drops or the context ends.
func (c *gatewayClient) consume(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev repo.ClientEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("event stream dropped")
			}
			return
		}
		if ev.Kind == "" {
			continue
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (c *gatewayClient) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "parse gateway url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	return u.String(), nil
}

func (c *gatewayClient) FetchMessages(ctx context.Context, chatID string, limit int) ([]repo.RawMessage, error) {
	path := fmt.Sprintf("/chats/%s/messages?limit=%d", url.PathEscape(chatID), limit)
	var out []repo.RawMessage
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, errors.Wrapf(err, "fetch messages for %s", chatID)
	}
	return out, nil
}

func (c *gatewayClient) ListChats(ctx context.Context) ([]repo.ChatInfo, error) {
	var out []repo.ChatInfo
	if err := c.getJSON(ctx, "/chats", &out); err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	return out, nil
}

func (c *gatewayClient) ListContacts(ctx context.Context) ([]repo.ContactInfo, error) {
	var out []repo.ContactInfo
	if err := c.getJSON(ctx, "/contacts", &out); err != nil {
		return nil, errors.Wrap(err, "list contacts")
	}
	return out, nil
}

func (c *gatewayClient) SendText(ctx context.Context, chatID, body string) error {
	req := map[string]string{"chatId": chatID, "body": body}
	if err := c.postJSON(ctx, "/messages/text", req, nil); err != nil {
		return errors.Wrapf(err, "send text to %s", chatID)
	}
	return nil
}

func (c *gatewayClient) SendMedia(ctx context.Context, chatID string, opts repo.SendMediaOptions) error {
	req := struct {
		ChatID string `json:"chatId"`
		repo.SendMediaOptions
	}{ChatID: chatID, SendMediaOptions: opts}
	if err := c.postJSON(ctx, "/messages/media", req, nil); err != nil {
		return errors.Wrapf(err, "send media to %s", chatID)
	}
	return nil
}

func (c *gatewayClient) DownloadMedia(ctx context.Context, messageID string) (*repo.MediaPayload, error) {
	var out repo.MediaPayload
	path := "/messages/" + url.PathEscape(messageID) + "/media"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, errors.Wrapf(err, "download media %s", messageID)
	}
	if out.Data == "" {
		return nil, errors.Errorf("media %s has no payload", messageID)
	}
	return &out, nil
}

func (c *gatewayClient) ProfilePictureURL(ctx context.Context, chatID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	path := "/chats/" + url.PathEscape(chatID) + "/profile-picture"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return "", errors.Wrapf(err, "profile picture for %s", chatID)
	}
	return out.URL, nil
}

func (c *gatewayClient) ProfilePictureImage(ctx context.Context, chatID string) ([]byte, string, error) {
	path := "/chats/" + url.PathEscape(chatID) + "/profile-picture/image"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", errors.Wrapf(err, "profile picture image for %s", chatID)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Errorf("gateway returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "read image body")
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *gatewayClient) MarkChatSeen(ctx context.Context, chatID string) error {
	path := "/chats/" + url.PathEscape(chatID) + "/seen"
	if err := c.postJSON(ctx, path, struct{}{}, nil); err != nil {
		return errors.Wrapf(err, "mark chat %s seen", chatID)
	}
	return nil
}

func (c *gatewayClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	return c.do(req, out)
}

func (c *gatewayClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *gatewayClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
