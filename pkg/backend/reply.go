package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AgentReply fetches the agent's reply text for the most recent user
// utterance via GET /agent-reply. Called only after the synthesized audio
// for a genuine utterance has finished playing.
func (c *Client) AgentReply(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/agent-reply", nil)
	if err != nil {
		return "", fmt.Errorf("backend: create request: %w", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.do(ctx, req, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", parseError(resp)
	}

	var reply struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("backend: decode reply: %w", err)
	}
	if reply.Text == "" {
		return "", ErrEmptyReply
	}

	c.logger.Debug("agent reply received", "chars", len(reply.Text))
	return reply.Text, nil
}
