package api

import (
	"time"

	"github.com/G1P0/viralforward/internal/store"
)

type videoJSON struct {
	Ref   string `json:"ref"`
	Link  string `json:"link"`
	Thumb string `json:"thumb,omitempty"`
	Title string `json:"title,omitempty"`
}

type postJSON struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"owner_id"`
	Link      string      `json:"link"`
	Text      string      `json:"text"`
	ChannelID int64       `json:"channel_id,omitempty"`
	Photos    []string    `json:"photos"`
	Videos    []videoJSON `json:"videos"`
	Likes     int         `json:"likes"`
	Reposts   int         `json:"reposts"`
	Views     int         `json:"views"`
	Status    string      `json:"status"`
	PostedAt  *time.Time  `json:"posted_at,omitempty"`
	UsedAt    *time.Time  `json:"used_at,omitempty"`
}

func toJSON(p store.Post) postJSON {
	out := postJSON{
		ID:        p.VKFullID,
		OwnerID:   p.VKOwnerID,
		Link:      p.Link,
		Text:      p.Text,
		ChannelID: p.ChannelID,
		Photos:    p.MediaURLs,
		Videos:    make([]videoJSON, 0, len(p.Videos)),
		Likes:     p.Likes,
		Reposts:   p.Reposts,
		Views:     p.Views,
		Status:    p.Status,
		PostedAt:  unixPtr(p.PostedAt),
		UsedAt:    unixPtr(p.UsedAt),
	}
	if out.Photos == nil {
		out.Photos = []string{}
	}
	for _, v := range p.Videos {
		out.Videos = append(out.Videos, videoJSON(v))
	}
	return out
}

func unixPtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
