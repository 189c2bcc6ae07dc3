package vk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// CommunityAPI: то, что резолверу нужно от VK. *Client его реализует.
type CommunityAPI interface {
	GroupByID(ctx context.Context, idOrName string) (Group, error)
	ResolveScreenName(ctx context.Context, name string) (ResolvedName, error)
	WallGet(ctx context.Context, ownerID string, count, offset int) (WallPage, error)
}

var numericRef = regexp.MustCompile(`^-?[0-9]+$`)

// communityRef: разобранная ссылка на сообщество.
type communityRef struct {
	raw     string
	numeric bool
	digits  string // модуль id без знака и ведущих нулей, только для numeric
}

func parseReference(s string) (communityRef, error) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"https://", "http://", "m.vk.com/", "vk.com/", "@"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return communityRef{}, ErrEmptyReference
	}

	ref := communityRef{raw: s}
	if numericRef.MatchString(s) {
		// в int64 не парсим: длинные цифры всё равно id, а не screen_name
		ref.numeric = true
		ref.digits = strings.TrimLeft(strings.TrimPrefix(s, "-"), "0")
		if ref.digits == "" {
			ref.digits = "0"
		}
	}
	return ref, nil
}

// attempt: результат одной стратегии. Фатальность решается один раз в failed().
type attempt struct {
	state attemptState
	id    string
	err   error
}

type attemptState int

const (
	attemptMiss attemptState = iota
	attemptFound
	attemptFatal
)

func found(id int64) attempt { return foundDigits(unsigned(id)) }

func foundDigits(id string) attempt { return attempt{state: attemptFound, id: id} }

func miss(err error) attempt { return attempt{state: attemptMiss, err: err} }

func failed(err error) attempt {
	if errors.Is(err, ErrAuth) {
		return attempt{state: attemptFatal, err: err}
	}
	return miss(err)
}

type strategy struct {
	name string
	run  func(ctx context.Context, ref communityRef) attempt
}

// Resolver превращает id или screen_name сообщества в каноничный положительный id.
// Состояния между вызовами нет, можно дёргать конкурентно.
type Resolver struct {
	api        CommunityAPI
	log        *slog.Logger
	strategies []strategy
}

type ResolverOption func(*Resolver)

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func NewResolver(api CommunityAPI, opts ...ResolverOption) *Resolver {
	r := &Resolver{api: api, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.strategies = []strategy{
		{name: "direct_lookup", run: r.directLookup},
		{name: "screen_name", run: r.screenName},
		{name: "wall_probe", run: r.wallProbe},
	}
	return r
}

// Resolve возвращает id сообщества без знака, *NotFoundError или *AuthError.
func (r *Resolver) Resolve(ctx context.Context, reference string) (string, error) {
	ref, err := parseReference(reference)
	if err != nil {
		return "", err
	}

	var misses []error
	for _, s := range r.strategies {
		a := s.run(ctx, ref)
		switch a.state {
		case attemptFound:
			r.log.DebugContext(ctx, "community resolved",
				"reference", reference, "strategy", s.name, "community_id", a.id)
			return a.id, nil
		case attemptFatal:
			r.log.ErrorContext(ctx, "vk rejected credentials",
				"reference", reference, "strategy", s.name, "error", a.err)
			return "", &AuthError{Reference: reference, Strategy: s.name, Err: a.err}
		}

		if a.err != nil {
			r.log.DebugContext(ctx, "resolve strategy missed",
				"reference", reference, "strategy", s.name, "error", a.err)
			misses = append(misses, fmt.Errorf("%s: %w", s.name, a.err))
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("resolve %q: %w", reference, err)
		}
	}

	r.log.WarnContext(ctx, "community not resolved",
		"reference", reference, "error", errors.Join(misses...))
	return "", &NotFoundError{Reference: reference, Attempts: misses}
}

func (r *Resolver) directLookup(ctx context.Context, ref communityRef) attempt {
	q := ref.raw
	if ref.numeric {
		q = ref.digits
	}
	g, err := r.api.GroupByID(ctx, q)
	if err != nil {
		return failed(err)
	}
	return found(g.ID)
}

// screenName: цифровые ссылки сюда не попадают, их не отличить от id.
func (r *Resolver) screenName(ctx context.Context, ref communityRef) attempt {
	if ref.numeric {
		return attempt{state: attemptMiss}
	}
	res, err := r.api.ResolveScreenName(ctx, ref.raw)
	if err != nil {
		return failed(err)
	}
	if res.Kind != KindCommunity {
		return miss(fmt.Errorf("%w: %s", errNotCommunity, res.Kind))
	}
	return found(res.ID)
}

// wallProbe: у сообществ owner_id отрицательный. Любой ответ wall.get, даже пустой, = успех.
func (r *Resolver) wallProbe(ctx context.Context, ref communityRef) attempt {
	var owner, id string
	literal := false
	switch {
	case ref.numeric:
		id = ref.digits
		owner = negate(id)
	default:
		res, err := r.api.ResolveScreenName(ctx, ref.raw)
		if err != nil {
			if a := failed(err); a.state == attemptFatal {
				return a
			}
		}
		if err == nil && res.Kind == KindCommunity {
			id = unsigned(res.ID)
			owner = negate(id)
		} else {
			owner = ref.raw
			literal = true
		}
	}

	page, err := r.api.WallGet(ctx, owner, 1, 0)
	if err != nil {
		return failed(err)
	}
	if !literal {
		return foundDigits(id)
	}
	// по domain числового owner нет, берём его из самого поста
	if len(page.Items) > 0 && page.Items[0].OwnerID != 0 {
		return found(page.Items[0].OwnerID)
	}
	return miss(errLiteralOwner)
}

// unsigned: модуль id строкой. Через uint64, чтобы MinInt64 не остался отрицательным.
func unsigned(v int64) string {
	if v < 0 {
		return strconv.FormatUint(uint64(-(v+1))+1, 10)
	}
	return strconv.FormatInt(v, 10)
}

// negate: owner_id сообщества для wall.get.
func negate(digits string) string {
	if digits == "0" {
		return "0"
	}
	return "-" + digits
}
