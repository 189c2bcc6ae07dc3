// Package sources читает список VK-сообществ, которые надо опрашивать.
package sources

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNoSources = errors.New("sources: list is empty")

type Source struct {
	Ref       string `yaml:"ref"`
	ChannelID int64  `yaml:"channel"`
	WallLimit int    `yaml:"wall_limit"`
}

type File struct {
	DefaultChannel int64    `yaml:"default_channel"`
	Sources        []Source `yaml:"sources"`
}

// Load читает YAML и заполняет пропуски: канал из default_channel (или defChannel),
// лимит стены из defLimit.
func Load(path string, defChannel int64, defLimit int) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return Parse(data, defChannel, defLimit)
}

func Parse(data []byte, defChannel int64, defLimit int) ([]Source, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, ErrNoSources
	}
	if f.DefaultChannel == 0 {
		f.DefaultChannel = defChannel
	}

	seen := make(map[string]struct{}, len(f.Sources))
	out := make([]Source, 0, len(f.Sources))
	for i, s := range f.Sources {
		s.Ref = strings.TrimSpace(s.Ref)
		if s.Ref == "" {
			return nil, fmt.Errorf("sources[%d]: empty ref", i)
		}
		key := strings.ToLower(s.Ref)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("sources[%d]: duplicate ref %q", i, s.Ref)
		}
		seen[key] = struct{}{}

		if s.ChannelID == 0 {
			s.ChannelID = f.DefaultChannel
		}
		if s.WallLimit <= 0 {
			s.WallLimit = defLimit
		}
		out = append(out, s)
	}
	return out, nil
}
