package affluence

import (
	"context"
	"net/url"
	"strconv"
)

// Audios returns the tracks available for paid streaming.
func (c *Client) Audios(ctx context.Context) ([]Audio, error) {
	var out []Audio
	if err := c.Get(ctx, "/streams/audios", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartStream opens a streaming session for a track.
func (c *Client) StartStream(ctx context.Context, audioID string) (*Stream, error) {
	var s Stream
	body := map[string]any{"audio_id": numericOrString(audioID)}
	if err := c.Post(ctx, "/streams/start", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStream reports how many seconds of the track were listened to.
func (c *Client) UpdateStream(ctx context.Context, streamID string, secondsListened int) (*Stream, error) {
	if secondsListened < 0 {
		return nil, invalid("duration_listened", "Listened duration cannot be negative")
	}
	var s Stream
	body := map[string]int{"duration_listened": secondsListened}
	if err := c.Put(ctx, "/streams/"+url.PathEscape(streamID)+"/update", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ClaimStream claims the reward of a completed stream.
func (c *Client) ClaimStream(ctx context.Context, streamID string) (*StreamClaim, error) {
	var out StreamClaim
	if err := c.Post(ctx, "/streams/"+url.PathEscape(streamID)+"/claim", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamHistory returns one page of past streaming sessions.
func (c *Client) StreamHistory(ctx context.Context, skip, limit int) ([]Stream, error) {
	var out []Stream
	if err := c.Get(ctx, "/streams/history", &out, WithQuery(pageQuery(skip, limit))); err != nil {
		return nil, err
	}
	return out, nil
}

// numericOrString sends integer ids as JSON numbers, as the backend expects.
func numericOrString(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
