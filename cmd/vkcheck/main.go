package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/G1P0/viralforward/internal/app"
	"github.com/G1P0/viralforward/internal/config"
	"github.com/G1P0/viralforward/internal/vk"
)

func main() {
	limit := flag.Int("n", 20, "how many wall items to fetch")
	videos := flag.Bool("videos", true, "try to extract playable video URLs")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: vkcheck [-n 20] [-videos=false] <community link | screen_name | id>")
	}
	ref := flag.Arg(0)

	a, err := app.New(config.MustLoad())
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	id, err := a.Resolver.Resolve(ctx, ref)
	var nf *vk.NotFoundError
	switch {
	case errors.Is(err, vk.ErrAuth):
		log.Fatalf("VK token rejected: %v", err)
	case errors.As(err, &nf):
		for _, e := range nf.Attempts {
			fmt.Println("  attempt:", e)
		}
		log.Fatalf("community %q not found", ref)
	case err != nil:
		log.Fatalf("resolve: %v", err)
	}
	fmt.Printf("%s -> community_id=%s\n", ref, id)

	owner := "-" + id
	items, err := a.VK.FetchWall(ctx, owner, *limit)
	if err != nil {
		log.Fatalf("FetchWall error: %v", err)
	}

	posts := vk.ExtractPosts(owner, items)

	fmt.Printf("wall items=%d, posts_with_media=%d\n", len(items), len(posts))
	if len(posts) == 0 {
		fmt.Printf("no media posts found in first %d items. try bigger -n.\n", *limit)
		return
	}

	p := posts[0]
	fmt.Println("example post:")
	fmt.Println("  vk_full_id:", p.VKFullID)
	fmt.Println("  link:", p.Link)
	fmt.Println("  text_len:", len([]rune(p.Text)))
	fmt.Println("  photos:", len(p.MediaURLs))
	if len(p.MediaURLs) > 0 {
		fmt.Println("  first_photo_url:", p.MediaURLs[0])
	}
	fmt.Println("  videos:", len(p.Videos))

	if !*videos {
		return
	}
	for _, post := range posts {
		for _, v := range post.Videos {
			u, ok := a.Videos.PlayableURL(ctx, v.Ref)
			if !ok {
				fmt.Printf("  video %s: no playable url (thumb=%s)\n", v.Ref, v.Thumb)
				continue
			}
			fmt.Printf("  video %s: %s\n", v.Ref, u)
		}
	}
}
