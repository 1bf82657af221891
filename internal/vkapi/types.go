package vkapi

// CallResult is the response of calls.start.
type CallResult struct {
	JoinLink   string `json:"join_link"`
	OKJoinLink string `json:"ok_join_link"`
	CallID     string `json:"call_id,omitempty"`
	// BroadcastVideoID identifies the video of a broadcast link.
	BroadcastVideoID string `json:"broadcast_video_id,omitempty"`
	// BroadcastOVID identifies the video used for streaming.
	BroadcastOVID    string            `json:"broadcast_ov_id,omitempty"`
	ShortCredentials *ShortCredentials `json:"short_credentials,omitempty"`
}

// ShortCredentials lets participants join by a short numeric id.
type ShortCredentials struct {
	ID                  string `json:"id"`
	Password            string `json:"password"`
	LinkWithoutPassword string `json:"link_without_password"`
	LinkWithPassword    string `json:"link_with_password"`
}
