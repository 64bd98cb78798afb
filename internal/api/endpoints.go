package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yolodolo42/questline/internal/character"
	"github.com/yolodolo42/questline/internal/transcript"
)

// StorySummary is one entry of the story list.
type StorySummary struct {
	ID               string `json:"id"`
	CreatedAt        string `json:"created_at"`
	LastUpdated      string `json:"last_updated"`
	WorldDescription string `json:"world_description"`
}

// Story is a persisted story: the character and the chat history to replay.
type Story struct {
	Character *character.Snapshot
	History   []transcript.HistoryMessage
}

// CreateSession starts an anonymous game session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/session", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := decode(data, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("create session: empty session id")
	}
	return resp.SessionID, nil
}

// CreateStory creates a story from a world and character description. The
// server runs character creation and the opening narration before replying.
func (c *Client) CreateStory(ctx context.Context, world, char string) (string, error) {
	body := map[string]string{
		"world_description":     world,
		"character_description": char,
	}
	data, err := c.do(ctx, http.MethodPost, "/api/stories", body)
	if err != nil {
		return "", err
	}
	var resp struct {
		StoryID string `json:"story_id"`
	}
	if err := decode(data, &resp); err != nil {
		return "", err
	}
	if resp.StoryID == "" {
		return "", fmt.Errorf("create story: empty story id")
	}
	return resp.StoryID, nil
}

// ListStories returns the stories visible to the configured login.
func (c *Client) ListStories(ctx context.Context) ([]StorySummary, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/stories", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Stories []StorySummary `json:"stories"`
	}
	if err := decode(data, &resp); err != nil {
		return nil, err
	}
	if resp.Stories == nil {
		resp.Stories = []StorySummary{}
	}
	return resp.Stories, nil
}

// DeleteStory removes a story.
func (c *Client) DeleteStory(ctx context.Context, id string) error {
	data, err := c.do(ctx, http.MethodDelete, "/api/stories/"+escape(id), nil)
	if err != nil {
		return err
	}
	return decode(data, nil)
}

// GetCharacter fetches the character snapshot for a session or story.
func (c *Client) GetCharacter(ctx context.Context, id string) (*character.Snapshot, error) {
	data, err := c.do(ctx, http.MethodGet, "/character/"+escape(id), nil)
	if err != nil {
		return nil, err
	}
	var snap character.Snapshot
	if err := decode(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// UpdateCharacter changes the character's name and lore and returns the
// refreshed snapshot. Empty values are left unchanged by the server.
func (c *Client) UpdateCharacter(ctx context.Context, id, name, lore string) (*character.Snapshot, error) {
	body := map[string]string{"name": name, "lore": lore}
	data, err := c.do(ctx, http.MethodPut, "/character/"+escape(id), body)
	if err != nil {
		return nil, err
	}
	var snap character.Snapshot
	if err := decode(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetStory fetches a persisted story for replay.
func (c *Client) GetStory(ctx context.Context, id string) (*Story, error) {
	data, err := c.do(ctx, http.MethodGet, "/story/"+escape(id), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Character   json.RawMessage             `json:"character"`
		ChatHistory []transcript.HistoryMessage `json:"chat_history"`
	}
	if err := decode(data, &resp); err != nil {
		return nil, err
	}

	story := &Story{History: resp.ChatHistory}
	if len(resp.Character) > 0 && string(resp.Character) != "null" {
		snap, err := character.Parse(resp.Character)
		if err != nil {
			return nil, fmt.Errorf("story character: %w", err)
		}
		story.Character = snap
	}
	if story.History == nil {
		story.History = []transcript.HistoryMessage{}
	}
	return story, nil
}
