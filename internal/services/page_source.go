package services

import (
	"context"
	"fmt"
	"os"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/interfaces"
	"snow-extractor/internal/models"
)

type filePageSource struct {
	path  string
	url   string
	token string
}

// NewFilePageSource serves a saved page from disk. The session token is
// scraped from the markup when not given.
func NewFilePageSource(path, url, token string) interfaces.PageSource {
	return &filePageSource{
		path:  path,
		url:   url,
		token: token,
	}
}

func (s *filePageSource) FetchPage(ctx context.Context) (*models.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page file %s: %w", s.path, err)
	}

	content := string(data)
	token := s.token
	if token == "" {
		token = FindSessionToken(content)
	}

	return &models.Page{
		URL:          s.url,
		HTML:         content,
		SessionToken: token,
	}, nil
}
