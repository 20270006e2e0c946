package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/baobao-chat/baochat/internal/types"
)

// MessagesOptions selects a page of a conversation's history. Pages are
// returned newest-first; BeforeID anchors the page to the message
// preceding it, which stays correct while new messages arrive at the
// live end (a cursor, not an offset).
type MessagesOptions struct {
	Page     int
	PageSize int
	BeforeID types.MessageID
}

// Messages fetches one page of a conversation's history, newest-first.
func (c *Client) Messages(ctx context.Context, conversationID types.ConversationID, options MessagesOptions) ([]types.Message, error) {
	page := options.Page
	if page < 1 {
		page = 1
	}
	pageSize := options.PageSize
	if pageSize < 1 {
		pageSize = 30
	}
	query := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(pageSize)},
	}
	if options.BeforeID != "" {
		query.Set("before", string(options.BeforeID))
	}

	var out struct {
		Messages []types.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/messages/"+string(conversationID), query, nil, &out); err != nil {
		return nil, fmt.Errorf("api: fetch messages for %s: %w", conversationID, err)
	}
	return out.Messages, nil
}

// SendMessage posts a new message and returns the server's confirmed
// copy, carrying the authoritative message ID.
func (c *Client) SendMessage(ctx context.Context, conversationID types.ConversationID, content, imageURL string, replyTo types.MessageID) (*types.Message, error) {
	if content == "" && imageURL == "" {
		return nil, fmt.Errorf("api: message needs content or an image")
	}
	body := map[string]any{"conversationId": conversationID}
	if content != "" {
		body["content"] = content
	}
	if imageURL != "" {
		body["imgUrl"] = imageURL
	}
	if replyTo != "" {
		body["replyTo"] = replyTo
	}

	var out struct {
		Message *types.Message `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/home/messages/send", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: send message: %w", err)
	}
	if out.Message == nil {
		return nil, fmt.Errorf("api: send response missing message")
	}
	return out.Message, nil
}

// EditMessage replaces a message's content and returns the updated copy.
func (c *Client) EditMessage(ctx context.Context, id types.MessageID, content string) (*types.Message, error) {
	body := map[string]string{"content": content}
	var out struct {
		Message *types.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPut, "/home/messages/"+string(id)+"/edit", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: edit message %s: %w", id, err)
	}
	return out.Message, nil
}

// RecallMessage withdraws a sent message. The entry stays in history
// flagged as recalled; the content is gone.
func (c *Client) RecallMessage(ctx context.Context, id types.MessageID) error {
	if err := c.do(ctx, http.MethodDelete, "/home/messages/"+string(id)+"/recall", nil, nil, nil); err != nil {
		return fmt.Errorf("api: recall message %s: %w", id, err)
	}
	return nil
}

// ReactToMessage adds an emoji reaction and returns the updated message.
func (c *Client) ReactToMessage(ctx context.Context, id types.MessageID, emoji string) (*types.Message, error) {
	body := map[string]string{"emoji": emoji}
	var out struct {
		Message *types.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/home/messages/"+string(id)+"/react", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: react to message %s: %w", id, err)
	}
	return out.Message, nil
}

// SearchMessages searches the user's messages across conversations.
func (c *Client) SearchMessages(ctx context.Context, queryText string) ([]types.Message, error) {
	query := url.Values{"q": {queryText}}
	var out struct {
		Messages []types.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/messages/search", query, nil, &out); err != nil {
		return nil, fmt.Errorf("api: search messages: %w", err)
	}
	return out.Messages, nil
}
