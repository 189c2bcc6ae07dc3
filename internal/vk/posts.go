package vk

import (
	"fmt"
)

type Post struct {
	VKOwnerID string
	VKPostID  string
	VKFullID  string
	Link      string
	Text      string
	MediaURLs []string // <= до 10 ссылок на фото
	Videos    []Video
	Likes     int
	Reposts   int
	Views     int
	PostedAt  int64
}

// Video хранит ссылку на ролик без прямого URL, files у VK протухают,
// поэтому играбельный URL достаём уже при отправке.
type Video struct {
	Ref   string `json:"ref"`
	Link  string `json:"link"`
	Thumb string `json:"thumb,omitempty"`
	Title string `json:"title,omitempty"`
}

// ExtractPosts: каждый VK-пост -> один Post с альбомом до 10 фоток и списком видео.
// Закреп, реклама и посты без медиа выкидываются.
func ExtractPosts(ownerID string, items []WallItem) []Post {
	out := make([]Post, 0, len(items))

	for _, it := range items {
		if it.Pinned == 1 || it.Ads == 1 {
			continue
		}

		media := make([]string, 0, maxPhotosPerPost)
		var videos []Video
		for _, att := range it.Attachments {
			switch {
			case att.Type == "photo" && att.Photo != nil:
				if len(media) == maxPhotosPerPost {
					continue
				}
				if u := bestPhotoURL(att.Photo); u != "" {
					media = append(media, u)
				}
			case att.Type == "video" && att.Video != nil:
				v := att.Video
				videos = append(videos, Video{
					Ref:   v.Ref(),
					Link:  v.Link(),
					Thumb: BestThumbnail(*v),
					Title: v.Title,
				})
			}
		}

		if len(media) == 0 && len(videos) == 0 {
			continue
		}

		vkPostID := fmt.Sprintf("%d", it.ID)
		vkFull := fmt.Sprintf("%s_%s", ownerID, vkPostID)

		out = append(out, Post{
			VKOwnerID: ownerID,
			VKPostID:  vkPostID,
			VKFullID:  vkFull,
			Link:      fmt.Sprintf("https://vk.com/wall%s", vkFull),
			Text:      it.Text,
			MediaURLs: media,
			Videos:    videos,
			Likes:     it.Likes.Count,
			Reposts:   it.Reposts.Count,
			Views:     it.Views.Count,
			PostedAt:  it.Date,
		})
	}

	return out
}

func bestPhotoURL(p *Photo) string {
	if p == nil || len(p.Sizes) == 0 {
		return ""
	}
	bestURL := ""
	bestArea := -1
	for _, s := range p.Sizes {
		if s.URL == "" {
			continue
		}
		area := s.Width * s.Height
		if area > bestArea {
			bestArea = area
			bestURL = s.URL
		}
	}
	return bestURL
}

// BestThumbnail: image у VK идёт по возрастанию размера, но на всякий
// сравниваем площадь; при равенстве побеждает более поздний.
func BestThumbnail(v VideoAttachment) string {
	bestURL := ""
	bestArea := -1
	for _, img := range v.Image {
		if img.URL == "" {
			continue
		}
		area := img.Width * img.Height
		if area >= bestArea {
			bestArea = area
			bestURL = img.URL
		}
	}
	return bestURL
}
