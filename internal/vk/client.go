package vk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/SevereCloud/vksdk/v2/api"
)

// DefaultVersion: версия VK API, под которую описаны ответы ниже.
// С 5.194 groups.getById отдаёт объект вместо массива.
const DefaultVersion = "5.131"

const (
	wallPageSize     = 100 // VK wall.get max per request
	defaultPagePause = 350 * time.Millisecond
	maxPhotosPerPost = 10 // лимит альбома в телеге
)

type Client struct {
	api       *api.VK
	pagePause time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.api.Client = h
		}
	}
}

func WithVersion(v string) ClientOption {
	return func(c *Client) {
		if v != "" {
			c.api.Version = v
		}
	}
}

// WithMethodURL подменяет https://api.vk.com/method/ (прокси, тесты).
func WithMethodURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.api.MethodURL = u
		}
	}
}

func WithPagePause(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.pagePause = d
		}
	}
}

func New(token string, opts ...ClientOption) *Client {
	vk := api.NewVK(token)
	vk.Version = DefaultVersion
	vk.Client = &http.Client{Timeout: 20 * time.Second}

	c := &Client{api: vk, pagePause: defaultPagePause}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Group struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
	IsClosed   int    `json:"is_closed"`
	Type       string `json:"type"`
}

type Kind string

const (
	KindCommunity   Kind = "community"
	KindUser        Kind = "user"
	KindApplication Kind = "application"
	KindUnknown     Kind = "unknown"
)

type ResolvedName struct {
	Kind Kind
	ID   int64
}

type WallPage struct {
	Count int        `json:"count"`
	Items []WallItem `json:"items"`
}

type WallItem struct {
	ID          int          `json:"id"`
	OwnerID     int64        `json:"owner_id"`
	Date        int64        `json:"date"`
	Text        string       `json:"text"`
	Pinned      int          `json:"is_pinned,omitempty"`
	Ads         int          `json:"marked_as_ads,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Likes       counter      `json:"likes"`
	Reposts     counter      `json:"reposts"`
	Views       counter      `json:"views"`
}

type counter struct {
	Count int `json:"count"`
}

type Attachment struct {
	Type  string           `json:"type"`
	Photo *Photo           `json:"photo,omitempty"`
	Video *VideoAttachment `json:"video,omitempty"`
}

type Photo struct {
	ID    int64       `json:"id"`
	Sizes []PhotoSize `json:"sizes,omitempty"`
}

type PhotoSize struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
}

// VideoAttachment: видео из вложения поста или из video.get.
// files и player приходят только из video.get и только для user-токена.
type VideoAttachment struct {
	ID        int64             `json:"id"`
	OwnerID   int64             `json:"owner_id"`
	AccessKey string            `json:"access_key,omitempty"`
	Title     string            `json:"title,omitempty"`
	Files     map[string]string `json:"files,omitempty"`
	Player    string            `json:"player,omitempty"`
	Image     []VideoImage      `json:"image,omitempty"`
}

type VideoImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Ref отдаёт идентификатор для video.get в виде owner_id_id[_access_key].
func (v VideoAttachment) Ref() string {
	ref := fmt.Sprintf("%d_%d", v.OwnerID, v.ID)
	if v.AccessKey != "" {
		ref += "_" + v.AccessKey
	}
	return ref
}

func (v VideoAttachment) Link() string {
	return fmt.Sprintf("https://vk.com/video%d_%d", v.OwnerID, v.ID)
}

func (c *Client) call(ctx context.Context, method string, params api.Params, out interface{}) error {
	if err := c.api.RequestUnmarshal(method, out, params.WithContext(ctx)); err != nil {
		if errors.Is(err, api.ErrAuth) {
			return fmt.Errorf("%w: %s: %v", ErrAuth, method, err)
		}
		return fmt.Errorf("vk %s: %w", method, err)
	}
	return nil
}

// GroupByID принимает и числовой id, и screen_name.
func (c *Client) GroupByID(ctx context.Context, idOrName string) (Group, error) {
	var groups []Group
	if err := c.call(ctx, "groups.getById", api.Params{"group_id": idOrName}, &groups); err != nil {
		return Group{}, err
	}
	if len(groups) == 0 {
		return Group{}, fmt.Errorf("vk groups.getById: empty response for %q", idOrName)
	}
	return groups[0], nil
}

func (c *Client) ResolveScreenName(ctx context.Context, name string) (ResolvedName, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "utils.resolveScreenName", api.Params{"screen_name": name}, &raw); err != nil {
		return ResolvedName{}, err
	}
	// не найдено -> VK отдаёт пустой массив вместо объекта
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '[' || bytes.Equal(raw, []byte("null")) {
		return ResolvedName{}, fmt.Errorf("vk utils.resolveScreenName: %q not found", name)
	}
	var obj struct {
		Type     string `json:"type"`
		ObjectID int64  `json:"object_id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ResolvedName{}, fmt.Errorf("vk utils.resolveScreenName: %w", err)
	}
	return ResolvedName{Kind: kindOf(obj.Type), ID: obj.ObjectID}, nil
}

func kindOf(vkType string) Kind {
	switch vkType {
	case "group", "page", "event":
		return KindCommunity
	case "user":
		return KindUser
	case "application", "vk_app":
		return KindApplication
	default:
		return KindUnknown
	}
}

// WallGet: один запрос wall.get (count <= 100) с offset.
// Нечисловой ownerID уходит как domain.
func (c *Client) WallGet(ctx context.Context, ownerID string, count, offset int) (WallPage, error) {
	if count <= 0 {
		count = 50
	}
	if count > wallPageSize {
		count = wallPageSize
	}
	if offset < 0 {
		offset = 0
	}

	params := api.Params{
		"count":  count,
		"offset": offset,
		"filter": "owner",
	}
	if _, err := strconv.ParseInt(ownerID, 10, 64); err == nil {
		params["owner_id"] = ownerID
	} else {
		params["domain"] = ownerID
	}

	var page WallPage
	if err := c.call(ctx, "wall.get", params, &page); err != nil {
		return WallPage{}, err
	}
	return page, nil
}

// FetchWall:
// - limit > 0: тянем максимум limit постов
// - limit <= 0: тянем ВСЕ посты со стены (до конца)
func (c *Client) FetchWall(ctx context.Context, ownerID string, limit int) ([]WallItem, error) {
	all := make([]WallItem, 0, 512)
	offset := 0
	total := -1

	for {
		want := wallPageSize
		if limit > 0 {
			remain := limit - len(all)
			if remain <= 0 {
				break
			}
			if remain < want {
				want = remain
			}
		}

		page, err := c.WallGet(ctx, ownerID, want, offset)
		if err != nil {
			return nil, err
		}
		if total < 0 {
			total = page.Count
		}
		if len(page.Items) == 0 {
			break
		}

		all = append(all, page.Items...)
		offset += len(page.Items)

		// дошли до конца стены
		if offset >= total {
			break
		}

		// чуть-чуть притормозить, чтобы VK не психанул
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pagePause):
		}
	}

	return all, nil
}

// Video тянет полное описание ролика (files, player) через video.get.
func (c *Client) Video(ctx context.Context, ref string) (VideoAttachment, error) {
	var resp struct {
		Count int               `json:"count"`
		Items []VideoAttachment `json:"items"`
	}
	if err := c.call(ctx, "video.get", api.Params{"videos": ref}, &resp); err != nil {
		return VideoAttachment{}, err
	}
	if len(resp.Items) == 0 {
		return VideoAttachment{}, fmt.Errorf("vk video.get: %s not available", ref)
	}
	return resp.Items[0], nil
}
