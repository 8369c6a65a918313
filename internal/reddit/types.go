package reddit

import "time"

// AccessInfo is the credential bundle returned by a code exchange or a
// silent refresh.
type AccessInfo struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Account is the subset of the /api/v1/me response the client cares about.
type Account struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	LinkKarma    int     `json:"link_karma"`
	CommentKarma int     `json:"comment_karma"`
	CreatedUTC   float64 `json:"created_utc"`
	IsGold       bool    `json:"is_gold"`
	IsMod        bool    `json:"is_mod"`
}
